package orchestrator

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/armoriq/sentinel/internal/policy"
	"github.com/armoriq/sentinel/internal/tirs"
)

// HandoffResult is the outcome of verifying one agent-to-agent handoff.
type HandoffResult struct {
	Allowed          bool
	FromAgent        string
	ToAgent          string
	Action           string
	CompliancePassed bool
	TIRSPassed       bool
	RiskScore        float64
	RiskDelta        float64
	BlockedReason    string
	BlockedPolicy    string
	Suggestion       string
	ModifiedPayload  map[string]interface{}
	RequiresApproval bool
	ApprovalType     string
	HandoffID        string
}

// HandoffVerifier runs Compliance then TIRS under the receiving agent's
// identity before a handoff between two agents is allowed to proceed.
type HandoffVerifier struct {
	compliance *policy.Engine
	tirs       *tirs.TIRS
	counter    int64
}

// NewHandoffVerifier wires a verifier against the shared Compliance engine
// and TIRS facade.
func NewHandoffVerifier(compliance *policy.Engine, t *tirs.TIRS) *HandoffVerifier {
	return &HandoffVerifier{compliance: compliance, tirs: t}
}

// nextHandoffID produces a stable HO-{timestamp}-{counter:04d} identifier.
// timestamp is supplied by the caller since time.Now is not deterministic
// test-side; the gateway layer stamps it from the wall clock at call time.
func (v *HandoffVerifier) nextHandoffID(timestamp string) string {
	n := atomic.AddInt64(&v.counter, 1)
	return fmt.Sprintf("HO-%s-%04d", timestamp, n)
}

// Verify runs the two-stage handoff gate: Compliance evaluation of the
// action/payload, then a TIRS intent analysis against the receiving
// agent's behavioral profile.
func (v *HandoffVerifier) Verify(fromAgent, toAgent, action string, payload, context map[string]interface{}, timestamp string) HandoffResult {
	handoffID := v.nextHandoffID(timestamp)

	if context == nil {
		context = make(map[string]interface{})
	}
	context["from_agent"] = fromAgent
	context["to_agent"] = toAgent
	context["handoff_id"] = handoffID

	result := HandoffResult{
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		Action:    action,
		HandoffID: handoffID,
	}

	aggregate := v.compliance.Evaluate(action, payload, context)
	result.RiskDelta = aggregate.TotalRiskDelta

	if !aggregate.Allowed {
		result.CompliancePassed = false
		result.TIRSPassed = true
		if aggregate.PrimaryBlocker != nil {
			result.BlockedReason = aggregate.PrimaryBlocker.Reason
			result.BlockedPolicy = aggregate.PrimaryBlocker.PolicyName
		}
		result.RequiresApproval = aggregate.Verdict == policy.VerdictEscalate
		result.ApprovalType = determineApprovalType(action)
		return result
	}

	result.CompliancePassed = true
	if aggregate.Verdict == policy.VerdictModify {
		result.ModifiedPayload = aggregate.MergedPayload
	}
	if aggregate.Verdict == policy.VerdictEscalate {
		result.RequiresApproval = true
		result.ApprovalType = determineApprovalType(action)
	}

	capabilities := []string{action}
	intentText := fmt.Sprintf("Handoff from %s: %s", fromAgent, action)
	analysis := v.tirs.AnalyzeIntent(toAgent, intentText, capabilities, true, tirs.BusinessContext{
		Time:       tirs.TimeBusiness,
		Season:     tirs.SeasonNormal,
		Role:       tirs.RoleStandard,
		Department: tirs.DeptGeneral,
	})
	result.RiskScore = analysis.RiskScore

	if analysis.AgentStatus == tirs.StatusKilled || analysis.AgentStatus == tirs.StatusPaused {
		result.TIRSPassed = false
		result.Allowed = false
		result.BlockedReason = fmt.Sprintf("receiving agent %s entered %s state during handoff", toAgent, analysis.AgentStatus)
		return result
	}

	result.TIRSPassed = true
	result.Allowed = true
	return result
}

// determineApprovalType maps an action's surface keywords to the
// escalation queue that should own the approval.
func determineApprovalType(action string) string {
	a := strings.ToLower(action)
	switch {
	case strings.Contains(a, "salary") || strings.Contains(a, "payment") || strings.Contains(a, "expense"):
		return "finance"
	case strings.Contains(a, "contract") || strings.Contains(a, "nda"):
		return "legal"
	case strings.Contains(a, "hire") || strings.Contains(a, "terminate") || strings.Contains(a, "offer"):
		return "hr"
	case strings.Contains(a, "access") || strings.Contains(a, "security"):
		return "security"
	default:
		return "manager"
	}
}
