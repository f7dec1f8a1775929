package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed trace store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS traces (
		id              TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL,
		agent_id        TEXT NOT NULL,
		timestamp       DATETIME NOT NULL,
		action_type     TEXT NOT NULL,
		action_name     TEXT,
		request_body    TEXT,
		response_body   TEXT,
		status          TEXT NOT NULL,
		policy_name     TEXT,
		policy_reason   TEXT,
		latency_ms      INTEGER,
		risk_score      REAL DEFAULT 0,
		risk_level      TEXT,
		policies_triggered TEXT,
		metadata        TEXT,
		prev_hash       TEXT,
		hash            TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS approvals (
		id              TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL,
		trace_id        TEXT NOT NULL,
		policy_name     TEXT NOT NULL,
		action_summary  TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		created_at      DATETIME NOT NULL,
		resolved_at     DATETIME,
		resolved_by     TEXT,
		timeout_at      DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS violations (
		id              TEXT PRIMARY KEY,
		trace_id        TEXT NOT NULL,
		session_id      TEXT NOT NULL,
		agent_id        TEXT NOT NULL,
		policy_name     TEXT NOT NULL,
		effect          TEXT NOT NULL,
		timestamp       DATETIME NOT NULL,
		action_summary  TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_traces_session ON traces(session_id);
	CREATE INDEX IF NOT EXISTS idx_traces_agent ON traces(agent_id);
	CREATE INDEX IF NOT EXISTS idx_traces_timestamp ON traces(timestamp);
	CREATE INDEX IF NOT EXISTS idx_traces_action_type ON traces(action_type);
	CREATE INDEX IF NOT EXISTS idx_violations_agent ON violations(agent_id);
	CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Traces ---

func (s *SQLiteStore) InsertTrace(t *Trace) error {
	_, err := s.db.Exec(`INSERT INTO traces (id, session_id, agent_id, timestamp, action_type, action_name,
		request_body, response_body, status, policy_name, policy_reason, latency_ms,
		risk_score, risk_level, policies_triggered, metadata, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.AgentID, t.Timestamp, t.ActionType, t.ActionName,
		nullableJSON(t.RequestBody), nullableJSON(t.ResponseBody),
		t.Status, nullStr(t.PolicyName), nullStr(t.PolicyReason), t.LatencyMs,
		t.RiskScore, nullStr(t.RiskLevel), nullableJSON(t.PoliciesTriggered),
		nullableJSON(t.Metadata), t.PrevHash, t.Hash,
	)
	return err
}

func (s *SQLiteStore) GetTrace(id string) (*Trace, error) {
	t := &Trace{}
	var reqBody, respBody, metadata, policiesTriggered sql.NullString
	var policyName, policyReason, riskLevel, actionName sql.NullString

	err := s.db.QueryRow(`SELECT id, session_id, agent_id, timestamp, action_type, action_name,
		request_body, response_body, status, policy_name, policy_reason, latency_ms,
		risk_score, risk_level, policies_triggered, metadata, prev_hash, hash
		FROM traces WHERE id = ?`, id).Scan(
		&t.ID, &t.SessionID, &t.AgentID, &t.Timestamp, &t.ActionType, &actionName,
		&reqBody, &respBody, &t.Status, &policyName, &policyReason, &t.LatencyMs,
		&t.RiskScore, &riskLevel, &policiesTriggered, &metadata, &t.PrevHash, &t.Hash,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t.RequestBody = jsonOrNil(reqBody)
	t.ResponseBody = jsonOrNil(respBody)
	t.PolicyName = policyName.String
	t.PolicyReason = policyReason.String
	t.RiskLevel = riskLevel.String
	t.PoliciesTriggered = jsonOrNil(policiesTriggered)
	t.Metadata = jsonOrNil(metadata)
	t.ActionName = actionName.String

	return t, nil
}

func (s *SQLiteStore) ListTraces(filter TraceFilter) ([]*Trace, int, error) {
	where, args := buildTraceWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	// Count
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM traces"+where, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Rows
	query := "SELECT id, session_id, agent_id, timestamp, action_type, action_name, status, latency_ms, risk_score, risk_level, policies_triggered, policy_name, hash FROM traces" + where + " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var traces []*Trace
	for rows.Next() {
		t := &Trace{}
		var actionName, riskLevel, policiesTriggered, policyName sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionID, &t.AgentID, &t.Timestamp, &t.ActionType,
			&actionName, &t.Status, &t.LatencyMs, &t.RiskScore, &riskLevel,
			&policiesTriggered, &policyName, &t.Hash); err != nil {
			return nil, 0, err
		}
		t.ActionName = actionName.String
		t.RiskLevel = riskLevel.String
		t.PoliciesTriggered = jsonOrNil(policiesTriggered)
		t.PolicyName = policyName.String
		traces = append(traces, t)
	}
	return traces, count, nil
}

func (s *SQLiteStore) SearchTraces(query string, limit int) ([]*Trace, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + query + "%"
	rows, err := s.db.Query(`SELECT id, session_id, agent_id, timestamp, action_type, action_name, status, latency_ms, risk_score, risk_level, hash
		FROM traces WHERE request_body LIKE ? OR response_body LIKE ? OR action_name LIKE ?
		ORDER BY timestamp DESC LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var traces []*Trace
	for rows.Next() {
		t := &Trace{}
		var actionName, riskLevel sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionID, &t.AgentID, &t.Timestamp, &t.ActionType,
			&actionName, &t.Status, &t.LatencyMs, &t.RiskScore, &riskLevel, &t.Hash); err != nil {
			return nil, err
		}
		t.ActionName = actionName.String
		t.RiskLevel = riskLevel.String
		traces = append(traces, t)
	}
	return traces, nil
}

// --- Approvals ---

func (s *SQLiteStore) InsertApproval(a *Approval) error {
	_, err := s.db.Exec(`INSERT INTO approvals (id, session_id, trace_id, policy_name, action_summary, status, created_at, timeout_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.TraceID, a.PolicyName, string(a.ActionSummary), a.Status, a.CreatedAt, a.TimeoutAt,
	)
	return err
}

func (s *SQLiteStore) GetApproval(id string) (*Approval, error) {
	a := &Approval{}
	var actionSummary string
	err := s.db.QueryRow(`SELECT id, session_id, trace_id, policy_name, action_summary, status, created_at, resolved_at, resolved_by, timeout_at
		FROM approvals WHERE id = ?`, id).Scan(
		&a.ID, &a.SessionID, &a.TraceID, &a.PolicyName, &actionSummary, &a.Status,
		&a.CreatedAt, &a.ResolvedAt, &a.ResolvedBy, &a.TimeoutAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.ActionSummary = json.RawMessage(actionSummary)
	return a, nil
}

func (s *SQLiteStore) ListPendingApprovals() ([]*Approval, error) {
	rows, err := s.db.Query(`SELECT id, session_id, trace_id, policy_name, action_summary, status, created_at, timeout_at
		FROM approvals WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approvals []*Approval
	for rows.Next() {
		a := &Approval{}
		var actionSummary string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.TraceID, &a.PolicyName, &actionSummary, &a.Status, &a.CreatedAt, &a.TimeoutAt); err != nil {
			return nil, err
		}
		a.ActionSummary = json.RawMessage(actionSummary)
		approvals = append(approvals, a)
	}
	return approvals, nil
}

func (s *SQLiteStore) ResolveApproval(id, status, resolvedBy string) error {
	now := time.Now()
	_, err := s.db.Exec("UPDATE approvals SET status = ?, resolved_at = ?, resolved_by = ? WHERE id = ?",
		status, now, resolvedBy, id)
	return err
}

// --- Violations ---

func (s *SQLiteStore) InsertViolation(v *Violation) error {
	_, err := s.db.Exec(`INSERT INTO violations (id, trace_id, session_id, agent_id, policy_name, effect, timestamp, action_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.TraceID, v.SessionID, v.AgentID, v.PolicyName, v.Effect, v.Timestamp, nullableJSON(v.ActionSummary),
	)
	return err
}

func (s *SQLiteStore) ListViolations(agentID string, limit int) ([]*Violation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT id, trace_id, session_id, agent_id, policy_name, effect, timestamp FROM violations"
	var args []interface{}
	if agentID != "" {
		query += " WHERE agent_id = ?"
		args = append(args, agentID)
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []*Violation
	for rows.Next() {
		v := &Violation{}
		if err := rows.Scan(&v.ID, &v.TraceID, &v.SessionID, &v.AgentID, &v.PolicyName, &v.Effect, &v.Timestamp); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, nil
}

// --- Maintenance ---

func (s *SQLiteStore) PruneOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result, err := s.db.Exec("DELETE FROM traces WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) VerifyHashChain(sessionID string) (bool, int, error) {
	rows, err := s.db.Query(`SELECT id, session_id, action_type, request_body, response_body, prev_hash, hash
		FROM traces WHERE session_id = ? ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return false, 0, err
	}
	defer rows.Close()

	var traces []*Trace
	for rows.Next() {
		t := &Trace{}
		var reqBody, respBody sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionID, &t.ActionType, &reqBody, &respBody, &t.PrevHash, &t.Hash); err != nil {
			return false, 0, err
		}
		t.RequestBody = jsonOrNil(reqBody)
		t.ResponseBody = jsonOrNil(respBody)
		traces = append(traces, t)
	}

	valid, brokenAt := VerifyChain(traces)
	return valid, brokenAt, nil
}

// --- System Stats ---

func (s *SQLiteStore) GetSystemStats() (*SystemStats, error) {
	stats := &SystemStats{}
	s.db.QueryRow("SELECT COUNT(*) FROM traces").Scan(&stats.TotalTraces)
	s.db.QueryRow("SELECT COUNT(*) FROM violations").Scan(&stats.TotalViolations)
	s.db.QueryRow("SELECT COUNT(*) FROM approvals WHERE status = 'pending'").Scan(&stats.PendingApprovals)
	return stats, nil
}

// --- Helpers ---

func buildTraceWhere(f TraceFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if f.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, f.AgentID)
	}
	if f.ActionType != "" {
		conditions = append(conditions, "action_type = ?")
		args = append(args, f.ActionType)
	}
	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, f.Status)
	}
	if f.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *f.Since)
	}
	if f.Until != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *f.Until)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableJSON(data json.RawMessage) sql.NullString {
	if data == nil || string(data) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
