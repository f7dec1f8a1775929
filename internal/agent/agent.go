// Package agent defines the domain agent plug-in interface and a base
// implementation wiring every action through Compliance and TIRS before
// delegating to the concrete domain logic.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/armoriq/sentinel/internal/approval"
	"github.com/armoriq/sentinel/internal/capability"
	"github.com/armoriq/sentinel/internal/iap"
	"github.com/armoriq/sentinel/internal/policy"
	"github.com/armoriq/sentinel/internal/reasoning"
	"github.com/armoriq/sentinel/internal/tirs"
)

// ActionResult is the outcome of one Execute call.
type ActionResult struct {
	Success            bool
	Action             string
	AgentID            string
	ResultData         map[string]interface{}
	CompliancePassed   bool
	PoliciesTriggered  []string
	RiskScore          float64
	RiskLevel          tirs.RiskLevel
	AuditEntryID       string
	Suggestion         string
	Timestamp          time.Time
}

// Executor is the domain-specific part of an agent: the business logic
// invoked once compliance and TIRS have both cleared an action.
type Executor interface {
	ExecuteAction(ctx context.Context, action string, payload, actionContext map[string]interface{}) (map[string]interface{}, error)
}

// Config describes one domain agent's identity and capability surface.
type Config struct {
	Name             string
	AgentType        string
	Capabilities     []string
	PolicyCategories []policy.Category
}

// Agent is the base class every domain agent embeds. It wires capability
// authorization, Compliance evaluation, and TIRS intent analysis around a
// caller-supplied Executor, per the teacher's execute() pipeline.
type Agent struct {
	cfg       Config
	agentID   string
	executor  Executor
	compliance *policy.Engine
	tirs      *tirs.TIRS
	scope     *capability.Engine
	approvals *approval.Queue
	oracle    *reasoning.Oracle
	iapClient iap.Client
	logger    *slog.Logger

	actionCount  int64
	blockedCount int64
	approvalSeq  int64
}

// SetApprovals attaches the human-approval queue. When set, an Escalate
// verdict from Compliance blocks Execute until the request is resolved or
// times out, instead of proceeding straight through per §4.9/§5's
// suspension-point handling. Agents with no queue attached treat Escalate
// as pass-through, matching the Compliance engine's own Aggregate.Allowed
// semantics for an isolated unit test.
func (a *Agent) SetApprovals(q *approval.Queue) { a.approvals = q }

// SetScope attaches a capability boundary engine to the agent. When set,
// Execute consults it ahead of Compliance for the handful of actions that
// map onto a structural quota (financial transaction ceilings, shell/
// network/filesystem reach) instead of a content policy. Agents with no
// scope attached skip this layer entirely.
func (a *Agent) SetScope(scope *capability.Engine) { a.scope = scope }

// SetOracle attaches a Reasoning Oracle second opinion. When set, an
// Escalate verdict that clears reasoning.ShouldInvoke's risk gate is put to
// the oracle before falling back to the human approval queue, per §6.
func (a *Agent) SetOracle(o *reasoning.Oracle) { a.oracle = o }

// SetIAP attaches an external Identity & Access Proxy second opinion,
// consulted ahead of the Reasoning Oracle for every Escalate verdict. A nil
// or unreachable IAP is equivalent to not having one: its verdict is
// "unknown" and control falls through to the oracle/approval queue.
func (a *Agent) SetIAP(c iap.Client) { a.iapClient = c }

// scopeCheck maps an action onto the capability engine's quota categories,
// returning ok=false when the action has no structural-boundary
// equivalent (most actions are content-policed by Compliance alone).
func (a *Agent) scopeCheck(action string, payload map[string]interface{}) (capability.CheckResult, bool) {
	if a.scope == nil {
		return capability.CheckResult{}, false
	}
	lowered := strings.ToLower(action)
	switch {
	case strings.Contains(lowered, "payment") || strings.Contains(lowered, "expense") || strings.Contains(lowered, "payroll"):
		amount, _ := payload["amount"].(float64)
		return a.scope.Check(a.agentID, "financial.transfer", map[string]interface{}{"amount": amount}), true
	case strings.Contains(lowered, "access") || strings.Contains(lowered, "provision") || strings.Contains(lowered, "deploy"):
		return a.scope.Check(a.agentID, "tool.call", map[string]interface{}{"command": action}), true
	default:
		return capability.CheckResult{}, false
	}
}

// New wires an Agent around the given Executor, Compliance engine, and
// TIRS facade.
func New(cfg Config, executor Executor, compliance *policy.Engine, t *tirs.TIRS, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		cfg:        cfg,
		agentID:    fmt.Sprintf("%s_%s", cfg.AgentType, cfg.Name),
		executor:   executor,
		compliance: compliance,
		tirs:       t,
		logger:     logger.With("agent_id", fmt.Sprintf("%s_%s", cfg.AgentType, cfg.Name)),
	}
}

// AgentID returns the agent's stable identifier.
func (a *Agent) AgentID() string { return a.agentID }

// Capabilities returns the agent's declared capability list.
func (a *Agent) Capabilities() []string { return a.cfg.Capabilities }

// Type returns the agent's domain type (finance, legal, it, hr, ...).
func (a *Agent) Type() string { return a.cfg.AgentType }

// CanExecute reports whether capability is registered and the agent's
// current TIRS status permits execution.
func (a *Agent) CanExecute(capability string) (bool, string) {
	if capability != "" && !a.hasCapability(capability) {
		return false, fmt.Sprintf("capability %s not registered for this agent", capability)
	}
	switch a.tirs.GetAgentStatus(a.agentID) {
	case tirsStatusKilled:
		return false, "agent is killed, cannot execute"
	case tirsStatusPaused:
		return false, "agent is paused, awaiting approval"
	}
	return true, "OK"
}

func (a *Agent) hasCapability(capability string) bool {
	for _, c := range a.cfg.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// actionToCapability maps a free-form action string to a declared
// capability via exact then substring match, per the teacher's
// _action_to_capability.
func (a *Agent) actionToCapability(action string) string {
	normalized := strings.ToLower(action)
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	for _, c := range a.cfg.Capabilities {
		if c == normalized {
			return c
		}
	}
	for _, c := range a.cfg.Capabilities {
		if strings.Contains(normalized, c) || strings.Contains(c, normalized) {
			return c
		}
	}
	return ""
}

// Execute runs the full authorize → comply → analyze → perform pipeline
// for one action, per the teacher's EnterpriseAgent.execute.
func (a *Agent) Execute(ctx context.Context, action string, payload, actionContext map[string]interface{}) ActionResult {
	if actionContext == nil {
		actionContext = make(map[string]interface{})
	}
	actionContext["agent_id"] = a.agentID
	actionContext["department"] = a.cfg.AgentType

	atomic.AddInt64(&a.actionCount, 1)

	capability := a.actionToCapability(action)
	if ok, reason := a.CanExecute(capability); !ok {
		atomic.AddInt64(&a.blockedCount, 1)
		return ActionResult{
			Action:           action,
			AgentID:          a.agentID,
			ResultData:       map[string]interface{}{"error": reason},
			CompliancePassed: false,
			Timestamp:        time.Now(),
		}
	}

	if result, checked := a.scopeCheck(action, payload); checked && !result.Allowed {
		atomic.AddInt64(&a.blockedCount, 1)
		return ActionResult{
			Action:           action,
			AgentID:          a.agentID,
			ResultData:       map[string]interface{}{"error": result.Reason},
			CompliancePassed: false,
			Timestamp:        time.Now(),
		}
	}

	aggregate := a.compliance.Evaluate(action, payload, actionContext, a.cfg.PolicyCategories...)

	if !aggregate.Allowed {
		atomic.AddInt64(&a.blockedCount, 1)

		intentCaps := []string{action}
		if capability != "" {
			intentCaps = []string{capability}
		}
		var triggered []string
		for _, r := range aggregate.Results {
			if r.Verdict != policy.VerdictAllow {
				triggered = append(triggered, r.PolicyName)
			}
		}
		analysis := a.tirs.AnalyzeIntent(a.agentID, fmt.Sprintf("%s: %v", action, payload), intentCaps, false, defaultBusinessContext(), triggered...)

		var reason, suggestion string
		if aggregate.PrimaryBlocker != nil {
			reason = aggregate.PrimaryBlocker.Reason
		}

		return ActionResult{
			Action:            action,
			AgentID:           a.agentID,
			ResultData:        map[string]interface{}{"error": reason, "suggestion": suggestion},
			CompliancePassed:  false,
			PoliciesTriggered: triggered,
			RiskScore:         analysis.RiskScore,
			RiskLevel:         analysis.RiskLevel,
			AuditEntryID:      analysis.AuditEntryID,
			Timestamp:         time.Now(),
		}
	}

	if aggregate.Verdict == policy.VerdictModify && aggregate.MergedPayload != nil {
		merged := make(map[string]interface{}, len(payload)+len(aggregate.MergedPayload))
		for k, v := range payload {
			merged[k] = v
		}
		for k, v := range aggregate.MergedPayload {
			merged[k] = v
		}
		payload = merged
	}

	var triggered []string
	for _, r := range aggregate.Results {
		if r.Verdict != policy.VerdictAllow {
			triggered = append(triggered, r.PolicyName)
		}
	}

	intentCaps := []string{action}
	if capability != "" {
		intentCaps = []string{capability}
	}
	analysis := a.tirs.AnalyzeIntent(a.agentID, fmt.Sprintf("%s: %v", action, payload), intentCaps, true, defaultBusinessContext(), triggered...)

	if aggregate.Verdict == policy.VerdictEscalate {
		if blocked, result := a.resolveEscalation(ctx, action, payload, aggregate, analysis); blocked {
			return result
		}
	}

	if analysis.AgentStatus == tirsStatusKilled || analysis.AgentStatus == tirsStatusPaused {
		return ActionResult{
			Action:     action,
			AgentID:    a.agentID,
			ResultData: map[string]interface{}{"error": fmt.Sprintf("agent %s by TIRS", analysis.AgentStatus)},
			RiskScore:  analysis.RiskScore,
			RiskLevel:  analysis.RiskLevel,
			Timestamp:  time.Now(),
		}
	}

	resultData, err := a.executor.ExecuteAction(ctx, action, payload, actionContext)
	if err != nil {
		a.logger.Error("action execution error", "action", action, "error", err)
		return ActionResult{
			Action:     action,
			AgentID:    a.agentID,
			ResultData: map[string]interface{}{"error": err.Error()},
			RiskScore:  analysis.RiskScore,
			RiskLevel:  analysis.RiskLevel,
			Timestamp:  time.Now(),
		}
	}

	return ActionResult{
		Success:          true,
		Action:           action,
		AgentID:          a.agentID,
		ResultData:       resultData,
		CompliancePassed: true,
		RiskScore:        analysis.RiskScore,
		RiskLevel:        analysis.RiskLevel,
		AuditEntryID:     analysis.AuditEntryID,
		Timestamp:        time.Now(),
	}
}

// resolveEscalation implements the §6 decision order for an ambiguous
// Compliance verdict: policy and drift disagreed enough to escalate, so
// before suspending on a human approval queue, consult the external IAP
// second opinion and, when risk clears reasoning.ShouldInvoke's gate, the
// Reasoning Oracle. Either may clear the action outright or deny it; an
// unreachable/timed-out/absent second opinion is always treated as unknown
// and control falls through to the next stage, ending at the approval
// queue exactly as before either client existed.
func (a *Agent) resolveEscalation(ctx context.Context, action string, payload map[string]interface{}, aggregate policy.Aggregate, analysis tirs.IntentAnalysis) (blocked bool, result ActionResult) {
	var policyName string
	for _, r := range aggregate.Results {
		if r.Verdict == policy.VerdictEscalate {
			policyName = r.PolicyName
			break
		}
	}

	if a.iapClient != nil {
		iapResult, err := a.iapClient.Verify(ctx, a.agentID, action, payload)
		if err == nil {
			switch iapResult.Verdict {
			case iap.VerdictDeny:
				atomic.AddInt64(&a.blockedCount, 1)
				return true, ActionResult{
					Action:            action,
					AgentID:           a.agentID,
					ResultData:        map[string]interface{}{"error": "iap denied escalated action: " + iapResult.Reason},
					CompliancePassed:  false,
					PoliciesTriggered: []string{policyName},
					RiskScore:         analysis.RiskScore,
					RiskLevel:         analysis.RiskLevel,
					Timestamp:         time.Now(),
				}
			case iap.VerdictAllow:
				return false, ActionResult{}
			}
		}
	}

	if a.oracle != nil && reasoning.ShouldInvoke(analysis.RiskScore, true) {
		assessment, err := a.oracle.Assess(ctx, reasoning.AssessInput{
			AgentID:   a.agentID,
			Action:    action,
			Payload:   payload,
			TIRSScore: analysis.RiskScore,
			TIRSLevel: string(analysis.RiskLevel),
		})
		if err != nil {
			a.logger.Warn("reasoning oracle unavailable, falling back to local decision", "action", action, "error", err)
		} else {
			switch assessment.Recommendation {
			case reasoning.RecommendDeny:
				atomic.AddInt64(&a.blockedCount, 1)
				return true, ActionResult{
					Action:            action,
					AgentID:           a.agentID,
					ResultData:        map[string]interface{}{"error": "reasoning oracle denied escalated action: " + assessment.Reasoning},
					CompliancePassed:  false,
					PoliciesTriggered: []string{policyName},
					RiskScore:         analysis.RiskScore,
					RiskLevel:         analysis.RiskLevel,
					Timestamp:         time.Now(),
				}
			case reasoning.RecommendProceed:
				if assessment.CanOverrideTIRS(analysis.RiskScore, tirs.DefaultThresholdBase().Critical) {
					return false, ActionResult{}
				}
			}
		}
	}

	if a.approvals == nil {
		return false, ActionResult{}
	}

	seq := atomic.AddInt64(&a.approvalSeq, 1)
	approved, err := a.approvals.Submit(ctx, &approval.Request{
		ID:            fmt.Sprintf("AP-%s-%04d", a.agentID, seq),
		PolicyName:    policyName,
		ActionSummary: map[string]interface{}{"action": action, "agent_id": a.agentID, "payload": payload},
		Timeout:       5 * time.Minute,
		TimeoutEffect: "deny",
	})
	if err != nil || !approved {
		atomic.AddInt64(&a.blockedCount, 1)
		reason := "escalated action was not approved"
		if err != nil {
			reason = fmt.Sprintf("approval wait failed: %v", err)
		}
		return true, ActionResult{
			Action:            action,
			AgentID:           a.agentID,
			ResultData:        map[string]interface{}{"error": reason},
			CompliancePassed:  false,
			PoliciesTriggered: []string{policyName},
			RiskScore:         analysis.RiskScore,
			RiskLevel:         analysis.RiskLevel,
			Timestamp:         time.Now(),
		}
	}
	return false, ActionResult{}
}

// Status is the agent's point-in-time dashboard row.
type Status struct {
	AgentID      string
	Name         string
	Type         string
	TIRSStatus   tirs.AgentStatus
	Capabilities []string
	ActionCount  int64
	BlockedCount int64
	BlockRate    float64
	RiskScore    float64
}

// GetStatus summarizes the agent's current state for the gateway's system
// status endpoint.
func (a *Agent) GetStatus() Status {
	actionCount := atomic.LoadInt64(&a.actionCount)
	blockedCount := atomic.LoadInt64(&a.blockedCount)
	var blockRate float64
	if actionCount > 0 {
		blockRate = float64(blockedCount) / float64(actionCount)
	}

	return Status{
		AgentID:      a.agentID,
		Name:         a.cfg.Name,
		Type:         a.cfg.AgentType,
		TIRSStatus:   a.tirs.GetAgentStatus(a.agentID),
		Capabilities: a.cfg.Capabilities,
		ActionCount:  actionCount,
		BlockedCount: blockedCount,
		BlockRate:    blockRate,
		RiskScore:    a.tirs.CurrentRiskScore(a.agentID),
	}
}

const (
	tirsStatusKilled = tirs.StatusKilled
	tirsStatusPaused = tirs.StatusPaused
)

func defaultBusinessContext() tirs.BusinessContext {
	return tirs.BusinessContext{
		Time:       tirs.TimeBusiness,
		Season:     tirs.SeasonNormal,
		Role:       tirs.RoleStandard,
		Department: tirs.DeptGeneral,
	}
}
