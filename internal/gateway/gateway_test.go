package gateway

import (
	"context"
	"log/slog"
	"testing"

	"github.com/armoriq/sentinel/internal/policy"
	"github.com/armoriq/sentinel/internal/tirs"
	"github.com/armoriq/sentinel/internal/trace"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	compliance := policy.NewEngine(slog.Default())
	tt, err := tirs.New(tirs.Config{StorageDir: t.TempDir()})
	if err != nil {
		t.Fatalf("tirs.New: %v", err)
	}
	return New(DefaultConfig(), compliance, tt, nil)
}

func TestProcessRequestRoutesToDomainAgent(t *testing.T) {
	g := newTestGateway(t)
	result := g.ProcessRequest(context.Background(), "process_expense", map[string]interface{}{"amount": 50.0}, nil)

	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.RoutedTo != "finance_finance" {
		t.Fatalf("expected routing to finance agent, got %q", result.RoutedTo)
	}
	if result.RequestID == "" {
		t.Fatal("expected a non-empty request ID")
	}
}

func TestProcessRequestNoAgentForAction(t *testing.T) {
	g := newTestGateway(t)
	result := g.ProcessRequest(context.Background(), "launch_satellite", nil, nil)
	if result.Success {
		t.Fatal("expected failure for unroutable action")
	}
	if result.RoutedTo != "" {
		t.Fatal("expected no routing target")
	}
}

func TestExecuteWorkflowRunsRegisteredTemplate(t *testing.T) {
	g := newTestGateway(t)
	result, err := g.ExecuteWorkflow(context.Background(), "wf_expense", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}
}

func TestCreateCustomWorkflowRegistersAndRuns(t *testing.T) {
	g := newTestGateway(t)
	id := g.CreateCustomWorkflow("ad hoc", []StepDefinition{
		{Name: "step1", Action: "process_expense", AgentType: "finance"},
	}, false)

	result, err := g.ExecuteWorkflow(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}
}

func TestGetSystemStatusReportsAllAgents(t *testing.T) {
	g := newTestGateway(t)
	status := g.GetSystemStatus()
	if len(status.Agents) != 6 {
		t.Fatalf("expected 6 registered domain agents, got %d", len(status.Agents))
	}
}

func TestProcessRequestRefreshesRouterHealth(t *testing.T) {
	g := newTestGateway(t)
	result := g.ProcessRequest(context.Background(), "process_expense", map[string]interface{}{"amount": 50.0}, nil)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}

	info, ok := g.Router().Agent(result.RoutedTo)
	if !ok {
		t.Fatalf("expected %q to be registered in the router", result.RoutedTo)
	}
	if info.ActionCount == 0 {
		t.Fatal("expected ProcessRequest to refresh the router's action count for the routed agent")
	}
}

func newTestStore(t *testing.T) trace.Store {
	t.Helper()
	store, err := trace.NewSQLiteStore(t.TempDir() + "/traces.db")
	if err != nil {
		t.Fatalf("trace.NewSQLiteStore: %v", err)
	}
	if err := store.Initialize(); err != nil {
		t.Fatalf("store.Initialize: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestProcessRequestPersistsHashChainedTrace(t *testing.T) {
	g := newTestGateway(t)
	store := newTestStore(t)
	g.SetStore(store)

	result := g.ProcessRequest(context.Background(), "process_expense", map[string]interface{}{"amount": 50.0}, nil)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}

	valid, brokenAt, err := store.VerifyHashChain(result.RequestID)
	if err != nil {
		t.Fatalf("VerifyHashChain: %v", err)
	}
	if !valid {
		t.Fatalf("expected a valid hash chain for session %q, broken at %d", result.RequestID, brokenAt)
	}

	traces, total, err := store.ListTraces(trace.TraceFilter{SessionID: result.RequestID})
	if err != nil {
		t.Fatalf("ListTraces: %v", err)
	}
	if total != 1 || len(traces) != 1 {
		t.Fatalf("expected exactly one persisted trace for the request, got %d", total)
	}
	if traces[0].ActionType != trace.ActionGatewayRequest {
		t.Fatalf("expected action type %q, got %q", trace.ActionGatewayRequest, traces[0].ActionType)
	}
}

func TestExecuteWorkflowPersistsOneChainedSessionPerRun(t *testing.T) {
	g := newTestGateway(t)
	store := newTestStore(t)
	g.SetStore(store)

	result, err := g.ExecuteWorkflow(context.Background(), "wf_expense", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}

	stats, err := store.GetSystemStats()
	if err != nil {
		t.Fatalf("GetSystemStats: %v", err)
	}
	if stats.TotalTraces != int64(len(result.Steps)) {
		t.Fatalf("expected one trace per workflow step (%d), got %d", len(result.Steps), stats.TotalTraces)
	}
}
