package tirs

import (
	"fmt"
	"log/slog"

	"github.com/armoriq/sentinel/internal/embedding"
	"github.com/armoriq/sentinel/internal/killswitch"
)

// AuditEntry is the single audit record produced by one AnalyzeIntent call,
// correlating the drift result and explanation for downstream logging.
type AuditEntry struct {
	ID         string
	AgentID    string
	DriftResult DriftResult
	Explanation Explanation
	SnapshotID string
}

// IntentAnalysis is the TIRS facade's single combined result, per spec §4.7.
type IntentAnalysis struct {
	RiskScore     float64
	RiskLevel     RiskLevel
	AgentStatus   AgentStatus
	DriftResult   DriftResult
	Explanation   Explanation
	AuditEntryID  string
	SnapshotID    string
}

// TIRS is the single entry point combining detector, explainer, snapshot
// manager, and enforcement (kill switch) into one facade, per spec §4.7.
type TIRS struct {
	cfg        DetectorConfig
	profiles   *ProfileStore
	detector   *Detector
	explainer  *DriftExplainer
	snapshots  *SnapshotManager
	thresholds *ContextualThresholds
	velocity   *VelocityTracker
	killSwitch *killswitch.KillSwitch
	auditSeq   int64
	logger     *slog.Logger
}

// Config bundles TIRS's constructor dependencies.
type Config struct {
	Detector   DetectorConfig
	Dimension  int
	StorageDir string
	Oracle     embedding.Oracle
	KillSwitch *killswitch.KillSwitch
	Logger     *slog.Logger
}

// New constructs a fully-wired TIRS facade.
func New(cfg Config) (*TIRS, error) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = embedding.DefaultDimension
	}
	if cfg.Oracle == nil {
		cfg.Oracle = embedding.NewHashingOracle(cfg.Dimension)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	detCfg := cfg.Detector
	if detCfg.Weights == nil {
		detCfg = DefaultDetectorConfig()
	}

	profiles := NewProfileStore(cfg.Dimension)
	velocity := NewVelocityTracker(DefaultVelocityConfig())
	thresholds := NewContextualThresholds(detCfg.ThresholdBase)

	detector, err := NewDetector(detCfg, cfg.Oracle, profiles, velocity, thresholds)
	if err != nil {
		return nil, err
	}

	return &TIRS{
		cfg:        detCfg,
		profiles:   profiles,
		detector:   detector,
		explainer:  NewDriftExplainer(),
		snapshots:  NewSnapshotManager(cfg.StorageDir),
		thresholds: thresholds,
		velocity:   velocity,
		killSwitch: cfg.KillSwitch,
		logger:     cfg.Logger.With("component", "tirs.TIRS"),
	}, nil
}

// AnalyzeIntent sequences velocity record → drift detect → explainer →
// state transition → snapshot (if triggered), per spec §4.7. policiesTriggered
// is the optional list of Compliance policy names that fired on the same
// action, carried into the forensic snapshot's PoliciesTriggered field when
// one is captured.
func (t *TIRS) AnalyzeIntent(agentID, intentText string, capabilities []string, wasAllowed bool, bctx BusinessContext, policiesTriggered ...string) IntentAnalysis {
	result := t.detector.Analyze(agentID, intentText, capabilities, wasAllowed, bctx)
	explanation := t.explainer.Explain(result.Drift)

	t.auditSeq++
	auditID := fmt.Sprintf("AUD-%d", t.auditSeq)

	var snapshotID string
	if result.SnapshotTriggered {
		if profile, ok := t.profiles.Get(agentID); ok {
			env := map[string]string{"department": string(bctx.Department), "role": string(bctx.Role)}
			snap, err := t.snapshots.Create(agentID, result.Trigger, profile, env, policiesTriggered)
			if err != nil {
				t.logger.Error("snapshot persistence failed", "agent_id", agentID, "error", err)
			}
			snapshotID = snap.SnapshotID
		}
	}

	return IntentAnalysis{
		RiskScore:    result.Drift.RiskScore,
		RiskLevel:    result.Drift.RiskLevel,
		AgentStatus:  result.Drift.AgentStatusAfter,
		DriftResult:  result.Drift,
		Explanation:  explanation,
		AuditEntryID: auditID,
		SnapshotID:   snapshotID,
	}
}

// GetAgentStatus returns the current enforcement status for agentID, or
// StatusActive if the agent has no profile yet.
func (t *TIRS) GetAgentStatus(agentID string) AgentStatus {
	if t.killSwitch != nil {
		if blocked, _ := t.killSwitch.IsBlocked(agentID, ""); blocked {
			return StatusKilled
		}
	}
	profile, ok := t.profiles.Get(agentID)
	if !ok {
		return StatusActive
	}
	profile.mu.Lock()
	defer profile.mu.Unlock()
	return profile.Status
}

// CurrentRiskScore returns agentID's most recently computed composite risk
// score, or 0 if the agent has no profile yet. Callers use this to refresh
// a live health view (e.g. the capability router's scoring) between
// AnalyzeIntent calls.
func (t *TIRS) CurrentRiskScore(agentID string) float64 {
	profile, ok := t.profiles.Get(agentID)
	if !ok {
		return 0
	}
	profile.mu.Lock()
	defer profile.mu.Unlock()
	return profile.CurrentRiskScore
}

// Resume transitions an agent out of Throttled/Paused back to Active,
// clearing the history tail if it was Paused, per the §4.2 admin-resume
// column.
func (t *TIRS) Resume(agentID string) error {
	profile, ok := t.profiles.Get(agentID)
	if !ok {
		return fmt.Errorf("tirs: unknown agent %q", agentID)
	}
	profile.mu.Lock()
	defer profile.mu.Unlock()

	switch profile.Status {
	case StatusThrottled:
		profile.Status = StatusActive
	case StatusPaused:
		profile.Status = StatusActive
		profile.RiskHistory = nil
	case StatusKilled:
		return fmt.Errorf("tirs: agent %q is killed; use Resurrect", agentID)
	default:
		// Active/Resurrected: resume is a no-op.
	}
	return nil
}

// Kill forcibly transitions agentID to Killed, e.g. via operator action or
// the global/agent kill switch.
func (t *TIRS) Kill(agentID string) {
	profile := t.profiles.GetOrCreate(agentID)
	profile.mu.Lock()
	profile.Status = StatusKilled
	profile.mu.Unlock()
	if t.killSwitch != nil {
		t.killSwitch.TriggerAgent(agentID, "tirs.Kill invoked", "tirs")
	}
}

// Resurrect transitions a Killed agent to Resurrected, resetting the
// baseline centroid and clearing risk_history while preserving
// resurrection_count and violation_count, per the resolved open question in
// SPEC_FULL.md §9.
func (t *TIRS) Resurrect(agentID string, dim int) error {
	profile, ok := t.profiles.Get(agentID)
	if !ok {
		return fmt.Errorf("tirs: unknown agent %q", agentID)
	}
	profile.mu.Lock()
	defer profile.mu.Unlock()

	if profile.Status != StatusKilled {
		return fmt.Errorf("tirs: agent %q is not killed, cannot resurrect", agentID)
	}
	profile.resurrect(dim)
	if t.velocity != nil {
		t.velocity.Reset(agentID)
	}
	return nil
}

// Dashboard returns a point-in-time summary across all known agents.
type Dashboard struct {
	Agents []AgentSummary
}

// AgentSummary is one row of the TIRS dashboard.
type AgentSummary struct {
	AgentID           string
	Status            AgentStatus
	CurrentRiskScore  float64
	TotalIntents      int
	ViolationCount    int
	ResurrectionCount int
}

// Dashboard aggregates a summary row per known agent.
func (t *TIRS) Dashboard() Dashboard {
	var out Dashboard
	for _, p := range t.profiles.All() {
		p.mu.Lock()
		out.Agents = append(out.Agents, AgentSummary{
			AgentID:           p.AgentID,
			Status:            p.Status,
			CurrentRiskScore:  p.CurrentRiskScore,
			TotalIntents:      p.TotalIntents,
			ViolationCount:    p.ViolationCount,
			ResurrectionCount: p.ResurrectionCount,
		})
		p.mu.Unlock()
	}
	return out
}

// VerifyChain exposes the snapshot manager's chain verification.
func (t *TIRS) VerifyChain(agentID string) (valid bool, failureIndex int) {
	return t.snapshots.VerifyChain(agentID)
}

// Snapshots exposes the underlying manager for CLI/API callers that need
// Export or direct chain access.
func (t *TIRS) Snapshots() *SnapshotManager { return t.snapshots }
