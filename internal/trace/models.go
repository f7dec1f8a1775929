package trace

import (
	"encoding/json"
	"time"
)

// ActionType categorizes the kind of gateway dispatch a trace records.
type ActionType string

const (
	// ActionGatewayRequest is a single Gateway.ProcessRequest dispatch.
	ActionGatewayRequest ActionType = "gateway.request"
	// ActionWorkflowStep is one step inside an orchestrated multi-agent
	// workflow run.
	ActionWorkflowStep ActionType = "workflow.step"
)

// TraceStatus represents the policy evaluation result.
type TraceStatus string

const (
	StatusAllowed    TraceStatus = "allowed"
	StatusDenied     TraceStatus = "denied"
	StatusTerminated TraceStatus = "terminated"
	StatusApproved   TraceStatus = "approved"
	StatusPending    TraceStatus = "pending"
	StatusThrottled  TraceStatus = "throttled"
)

// Trace represents a single gateway dispatch or workflow step, hash-chained
// within its session for tamper-evident forensic review.
type Trace struct {
	ID                string          `json:"id" db:"id"`
	SessionID         string          `json:"session_id" db:"session_id"`
	AgentID           string          `json:"agent_id" db:"agent_id"`
	Timestamp         time.Time       `json:"timestamp" db:"timestamp"`
	ActionType        ActionType      `json:"action_type" db:"action_type"`
	ActionName        string          `json:"action_name,omitempty" db:"action_name"`
	RequestBody       json.RawMessage `json:"request_body,omitempty" db:"request_body"`
	ResponseBody      json.RawMessage `json:"response_body,omitempty" db:"response_body"`
	Status            TraceStatus     `json:"status" db:"status"`
	PolicyName        string          `json:"policy_name,omitempty" db:"policy_name"`
	PolicyReason      string          `json:"policy_reason,omitempty" db:"policy_reason"`
	LatencyMs         int64           `json:"latency_ms" db:"latency_ms"`
	RiskScore         float64         `json:"risk_score" db:"risk_score"`
	RiskLevel         string          `json:"risk_level,omitempty" db:"risk_level"`
	PoliciesTriggered json.RawMessage `json:"policies_triggered,omitempty" db:"policies_triggered"`
	Metadata          json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	PrevHash          string          `json:"prev_hash" db:"prev_hash"`
	Hash              string          `json:"hash" db:"hash"`
}

// Approval represents a pending human approval request.
type Approval struct {
	ID            string          `json:"id" db:"id"`
	SessionID     string          `json:"session_id" db:"session_id"`
	TraceID       string          `json:"trace_id" db:"trace_id"`
	PolicyName    string          `json:"policy_name" db:"policy_name"`
	ActionSummary json.RawMessage `json:"action_summary" db:"action_summary"`
	Status        string          `json:"status" db:"status"` // pending, approved, denied, timed_out
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy    string          `json:"resolved_by,omitempty" db:"resolved_by"`
	TimeoutAt     time.Time       `json:"timeout_at" db:"timeout_at"`
}

// Violation records a policy violation event.
type Violation struct {
	ID            string          `json:"id" db:"id"`
	TraceID       string          `json:"trace_id" db:"trace_id"`
	SessionID     string          `json:"session_id" db:"session_id"`
	AgentID       string          `json:"agent_id" db:"agent_id"`
	PolicyName    string          `json:"policy_name" db:"policy_name"`
	Effect        string          `json:"effect" db:"effect"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
	ActionSummary json.RawMessage `json:"action_summary,omitempty" db:"action_summary"`
}

// TraceFilter defines query parameters for listing traces.
type TraceFilter struct {
	SessionID  string
	AgentID    string
	ActionType ActionType
	Status     TraceStatus
	Since      *time.Time
	Until      *time.Time
	Query      string // full-text search
	Limit      int
	Offset     int
}

