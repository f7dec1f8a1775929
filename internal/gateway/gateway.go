// Package gateway implements the root orchestrator entry point: request
// routing, workflow dispatch, and system status aggregation across every
// registered domain agent.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/armoriq/sentinel/internal/agent"
	"github.com/armoriq/sentinel/internal/approval"
	"github.com/armoriq/sentinel/internal/capability"
	"github.com/armoriq/sentinel/internal/iap"
	"github.com/armoriq/sentinel/internal/orchestrator"
	"github.com/armoriq/sentinel/internal/policy"
	"github.com/armoriq/sentinel/internal/reasoning"
	"github.com/armoriq/sentinel/internal/tirs"
	"github.com/armoriq/sentinel/internal/trace"
)

// traceSessionKey is the shared-workflow-context key a workflow run's
// generated session ID is stashed under, since StepExecutor has no other
// channel to carry it into executeStep.
const traceSessionKey = "_trace_session_id"

// Config bundles the gateway's tunables, per the teacher's GatewayConfig.
type Config struct {
	MaxConcurrentWorkflows int
	DefaultTimeout         time.Duration
}

// DefaultConfig returns the teacher's defaults (5 concurrent workflows,
// 300s timeout).
func DefaultConfig() Config {
	return Config{MaxConcurrentWorkflows: 5, DefaultTimeout: 300 * time.Second}
}

// RequestResult is the outcome of one Gateway.ProcessRequest call.
type RequestResult struct {
	Success           bool
	RequestID         string
	Action            string
	RoutedTo          string
	ResultData        map[string]interface{}
	Error             string
	CompliancePassed  bool
	PoliciesTriggered []string
	RiskScore         float64
	RiskLevel         tirs.RiskLevel
	Timestamp         time.Time
	DurationMS        float64
}

// Gateway is the root orchestrator wiring Router, HandoffVerifier,
// WorkflowEngine, Compliance, and TIRS around a registry of domain agents.
type Gateway struct {
	cfg        Config
	compliance *policy.Engine
	tirs       *tirs.TIRS
	router     *orchestrator.CapabilityRouter
	handoff    *orchestrator.HandoffVerifier
	workflows  *orchestrator.WorkflowEngine
	agents     map[string]*agent.Agent
	logger     *slog.Logger
	store      trace.Store

	requestCounter int64

	traceMu  sync.Mutex
	lastHash map[string]string
}

// New wires a Gateway around an already-constructed Compliance engine and
// TIRS facade, registering the reference domain agents from package agent.
func New(cfg Config, compliance *policy.Engine, t *tirs.TIRS, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		cfg:        cfg,
		compliance: compliance,
		tirs:       t,
		router:     orchestrator.NewCapabilityRouter(),
		logger:     logger.With("component", "gateway.Gateway"),
		lastHash:   make(map[string]string),
	}
	g.handoff = orchestrator.NewHandoffVerifier(compliance, t)

	g.agents = agent.RegisterAll(compliance, t, func(agentID string, capabilities []string) {
		g.router.RegisterAgent(orchestrator.AgentInfo{
			AgentID:      agentID,
			Capabilities: capabilities,
			Status:       tirs.StatusActive,
		})
	})

	scope := capability.NewEngine(logger)
	for agentID, a := range g.agents {
		if bounds := capability.DefaultBoundsFor(a.Type()); a.Type() == "finance" || a.Type() == "it" {
			scope.SetCapabilities(agentID, bounds)
			a.SetScope(scope)
		}
		// Every agent gets an IAP client wired in from construction, even
		// though the default is a no-op: Execute's escalation path always
		// consults one, per §6, rather than skipping the stage entirely
		// when no external IAP is configured.
		a.SetIAP(iap.NoOp{})
	}

	g.workflows = orchestrator.NewWorkflowEngine(g.executeStep, cfg.MaxConcurrentWorkflows)
	g.registerWorkflowTemplates()

	return g
}

// executeStep resolves the step's target agent via the router, runs a
// handoff verification, and dispatches to the agent's Execute.
func (g *Gateway) executeStep(ctx context.Context, step *orchestrator.WorkflowStep, shared map[string]interface{}) (map[string]interface{}, error) {
	route := g.router.Route(step.Action)
	if route.AgentID == "" {
		return nil, fmt.Errorf("no agent found for action %q", step.Action)
	}

	timestamp := time.Now().Format("20060102150405")
	hoResult := g.handoff.Verify("gateway", route.AgentID, step.Action, step.Payload, nil, timestamp)
	if !hoResult.Allowed {
		return nil, fmt.Errorf("handoff blocked: %s", hoResult.BlockedReason)
	}

	target, ok := g.agents[route.AgentID]
	if !ok {
		return nil, fmt.Errorf("routed agent %q is not registered", route.AgentID)
	}

	payload := step.Payload
	if hoResult.ModifiedPayload != nil {
		payload = hoResult.ModifiedPayload
	}

	start := time.Now()
	result := target.Execute(ctx, step.Action, payload, nil)
	g.refreshAgentHealth(target)

	sessionID, _ := shared[traceSessionKey].(string)
	if sessionID == "" {
		sessionID = "wf-" + route.AgentID
	}
	status := trace.StatusAllowed
	if !result.Success {
		status = trace.StatusDenied
	}
	g.recordTrace(sessionID, route.AgentID, trace.ActionWorkflowStep, step.Action, status, time.Since(start).Milliseconds(), result)

	if !result.Success {
		errMsg, _ := result.ResultData["error"].(string)
		if errMsg == "" {
			errMsg = "action execution failed"
		}
		return nil, fmt.Errorf("%s", errMsg)
	}
	return result.ResultData, nil
}

func (g *Gateway) nextRequestID() string {
	n := atomic.AddInt64(&g.requestCounter, 1)
	return fmt.Sprintf("REQ-%s-%06d", time.Now().Format("20060102150405"), n)
}

// ProcessRequest routes a single action to the best-matching domain agent
// and executes it, per the teacher's process_request.
func (g *Gateway) ProcessRequest(ctx context.Context, action string, payload, requestContext map[string]interface{}) RequestResult {
	start := time.Now()
	requestID := g.nextRequestID()

	if requestContext == nil {
		requestContext = make(map[string]interface{})
	}
	requestContext["request_id"] = requestID

	route := g.router.Route(action)
	if route.AgentID == "" {
		return RequestResult{
			Success:    false,
			RequestID:  requestID,
			Action:     action,
			Error:      fmt.Sprintf("no agent found for action: %s", action),
			Timestamp:  start,
			DurationMS: msSince(start),
		}
	}

	target, ok := g.agents[route.AgentID]
	if !ok {
		return RequestResult{
			Success:    false,
			RequestID:  requestID,
			Action:     action,
			RoutedTo:   route.AgentID,
			Error:      fmt.Sprintf("routed agent %s is not registered", route.AgentID),
			Timestamp:  start,
			DurationMS: msSince(start),
		}
	}

	result := target.Execute(ctx, action, payload, requestContext)
	g.refreshAgentHealth(target)

	traceStatus := trace.StatusAllowed
	if !result.Success {
		traceStatus = trace.StatusDenied
	}
	g.recordTrace(requestID, route.AgentID, trace.ActionGatewayRequest, action, traceStatus, time.Since(start).Milliseconds(), result)

	var errMsg string
	if !result.Success {
		if e, ok := result.ResultData["error"].(string); ok {
			errMsg = e
		}
	}

	return RequestResult{
		Success:           result.Success,
		RequestID:         requestID,
		Action:            action,
		RoutedTo:          route.AgentID,
		ResultData:        result.ResultData,
		Error:             errMsg,
		CompliancePassed:  result.CompliancePassed,
		PoliciesTriggered: result.PoliciesTriggered,
		RiskScore:         result.RiskScore,
		RiskLevel:         result.RiskLevel,
		Timestamp:         start,
		DurationMS:        msSince(start),
	}
}

// refreshAgentHealth pushes an agent's latest status, risk score, and block
// rate into the capability router so selectAgent's health-weighted scoring
// reflects live state instead of the pristine snapshot taken at
// registration, per §4.10's routing-preference requirement.
func (g *Gateway) refreshAgentHealth(a *agent.Agent) {
	st := a.GetStatus()
	g.router.UpdateAgent(orchestrator.AgentInfo{
		AgentID:      st.AgentID,
		Status:       st.TIRSStatus,
		RiskScore:    st.RiskScore,
		BlockedCount: st.BlockedCount,
		ActionCount:  st.ActionCount,
	})
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// ExecuteWorkflow runs a registered workflow by ID. Every step's audit trace
// is chained under one session ID for the whole run, so VerifyHashChain can
// validate an entire workflow execution as a unit.
func (g *Gateway) ExecuteWorkflow(ctx context.Context, workflowID string, parameters map[string]interface{}) (orchestrator.WorkflowResult, error) {
	n := atomic.AddInt64(&g.requestCounter, 1)
	runParams := make(map[string]interface{}, len(parameters)+1)
	for k, v := range parameters {
		runParams[k] = v
	}
	runParams[traceSessionKey] = fmt.Sprintf("WF-%s-%s-%06d", workflowID, time.Now().Format("20060102150405"), n)
	return g.workflows.Execute(ctx, workflowID, runParams)
}

// CreateCustomWorkflow registers an ad-hoc workflow from step definitions
// and returns its generated ID, per the teacher's create_custom_workflow.
func (g *Gateway) CreateCustomWorkflow(name string, steps []StepDefinition, parallel bool) string {
	n := atomic.AddInt64(&g.requestCounter, 1)
	workflowID := fmt.Sprintf("wf_custom_%d", n)

	wf := &orchestrator.Workflow{ID: workflowID, Name: name, Parallel: parallel}
	for _, s := range steps {
		wf.AddStep(s.Name, s.Action, s.Payload, s.AgentType, s.DependsOn...)
	}
	g.workflows.RegisterWorkflow(wf)
	return workflowID
}

// StepDefinition is a caller-supplied workflow step for CreateCustomWorkflow.
type StepDefinition struct {
	Name      string
	Action    string
	Payload   map[string]interface{}
	AgentType string
	DependsOn []string
}

func (g *Gateway) registerWorkflowTemplates() {
	newHire := &orchestrator.Workflow{ID: "wf_new_hire", Name: "New Hire Onboarding"}
	newHire.AddStep("search", "search_candidates", map[string]interface{}{"count": 10}, "hr")
	newHire.AddStep("screen", "screen_resume", nil, "hr", "search")
	newHire.AddStep("interview", "schedule_interview", nil, "hr", "screen")
	newHire.AddStep("offer", "generate_offer", nil, "hr", "interview")
	newHire.AddStep("i9", "verify_i9", nil, "hr", "offer")
	newHire.AddStep("access", "provision_access", nil, "it", "i9")
	newHire.AddStep("onboard", "onboard_employee", nil, "hr", "access")
	g.workflows.RegisterWorkflow(newHire)

	vendor := &orchestrator.Workflow{ID: "wf_vendor_onboard", Name: "Vendor Onboarding"}
	vendor.AddStep("approve", "approve_vendor", map[string]interface{}{"operation": "check"}, "procurement")
	vendor.AddStep("contract", "review_contract", nil, "legal", "approve")
	vendor.AddStep("invoice", "verify_invoice", nil, "finance", "contract")
	vendor.AddStep("access", "provision_access", nil, "it", "invoice")
	g.workflows.RegisterWorkflow(vendor)

	expense := &orchestrator.Workflow{ID: "wf_expense", Name: "Expense Processing"}
	expense.AddStep("process", "process_expense", nil, "finance")
	expense.AddStep("approve", "approve_expense", nil, "finance", "process")
	g.workflows.RegisterWorkflow(expense)
}

// SystemStatus is the gateway's comprehensive point-in-time status,
// combining agent, TIRS, compliance, and workflow summaries.
type SystemStatus struct {
	RequestCount int64
	Agents       map[string]agent.Status
	TIRS         tirs.Dashboard
	Workflows    []string
}

// GetSystemStatus aggregates status across every wired subsystem.
func (g *Gateway) GetSystemStatus() SystemStatus {
	agents := make(map[string]agent.Status, len(g.agents))
	for id, a := range g.agents {
		agents[id] = a.GetStatus()
	}
	return SystemStatus{
		RequestCount: atomic.LoadInt64(&g.requestCounter),
		Agents:       agents,
		TIRS:         g.tirs.Dashboard(),
		Workflows:    g.workflows.ListWorkflows(),
	}
}

// SetStore attaches the hash-chained audit trail backing store. Call once
// during startup after the store is initialized; leave unset to run without
// trace persistence (e.g. in tests).
func (g *Gateway) SetStore(s trace.Store) {
	g.store = s
}

// recordTrace appends one hash-chained audit record for sessionID, linking
// to whatever trace was last recorded for that session (or the session seed
// if this is the first). Failures are logged, not propagated: a broken
// audit write must never fail the action it's recording.
func (g *Gateway) recordTrace(sessionID, agentID string, actionType trace.ActionType, actionName string, status trace.TraceStatus, latencyMs int64, result agent.ActionResult) {
	if g.store == nil {
		return
	}

	g.traceMu.Lock()
	prev, ok := g.lastHash[sessionID]
	if !ok {
		prev = trace.ComputeSessionSeed(sessionID)
	}

	t := &trace.Trace{
		ID:           fmt.Sprintf("TR-%s-%d", sessionID, time.Now().UnixNano()),
		SessionID:    sessionID,
		AgentID:      agentID,
		Timestamp:    time.Now(),
		ActionType:   actionType,
		ActionName:   actionName,
		Status:       status,
		LatencyMs:    latencyMs,
		RiskScore:    result.RiskScore,
		RiskLevel:    string(result.RiskLevel),
		PrevHash:     prev,
	}
	if len(result.PoliciesTriggered) > 0 {
		if b, err := json.Marshal(result.PoliciesTriggered); err == nil {
			t.PoliciesTriggered = b
		}
	}
	t.Hash = trace.ComputeHash(t)
	g.lastHash[sessionID] = t.Hash
	g.traceMu.Unlock()

	if err := g.store.InsertTrace(t); err != nil {
		g.logger.Warn("failed to persist audit trace", "session_id", sessionID, "error", err)
	}
}

// SetApprovals attaches a human-approval queue to every registered domain
// agent, so a Compliance Escalate verdict suspends the action pending a
// human decision instead of passing straight through. Call once during
// startup after the backing trace store is ready; safe to call with nil
// to detach (e.g. in tests that don't need the approval path).
func (g *Gateway) SetApprovals(q *approval.Queue) {
	for _, a := range g.agents {
		a.SetApprovals(q)
	}
}

// SetOracle attaches a live Reasoning Oracle to every registered domain
// agent, so an Escalate verdict that clears the risk gate is put to the
// oracle ahead of the human approval queue, per §6. Call once during
// startup when an Anthropic API key is configured; leave unset to keep the
// oracle stage dormant (every Escalate falls straight through to IAP/
// approval, as it did before the oracle existed).
func (g *Gateway) SetOracle(o *reasoning.Oracle) {
	for _, a := range g.agents {
		a.SetOracle(o)
	}
}

// SetIAP overrides the default no-op IAP client on every registered domain
// agent with a live external Identity & Access Proxy integration.
func (g *Gateway) SetIAP(c iap.Client) {
	for _, a := range g.agents {
		a.SetIAP(c)
	}
}

// GetAgent returns a domain agent by ID, if registered.
func (g *Gateway) GetAgent(agentID string) (*agent.Agent, bool) {
	a, ok := g.agents[agentID]
	return a, ok
}

// TIRS exposes the underlying facade for kill/resume/resurrect admin ops.
func (g *Gateway) TIRS() *tirs.TIRS { return g.tirs }

// Compliance exposes the underlying engine for dynamic policy registration.
func (g *Gateway) Compliance() *policy.Engine { return g.compliance }

// Router exposes the capability router for status/debug endpoints.
func (g *Gateway) Router() *orchestrator.CapabilityRouter { return g.router }
