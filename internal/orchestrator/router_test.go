package orchestrator

import (
	"testing"

	"github.com/armoriq/sentinel/internal/tirs"
)

func TestRouteExactCapabilityMatch(t *testing.T) {
	r := NewCapabilityRouter()
	r.RegisterAgent(AgentInfo{AgentID: "finance-1", Capabilities: []string{"process_expense"}, Status: tirs.StatusActive})

	result := r.Route("process_expense")
	if result.AgentID != "finance-1" {
		t.Fatalf("expected finance-1, got %q", result.AgentID)
	}
}

func TestRouteKeywordOverlapFallback(t *testing.T) {
	r := NewCapabilityRouter()
	r.RegisterAgent(AgentInfo{AgentID: "hr-1", Capabilities: []string{"extend_offer"}, Status: tirs.StatusActive})

	result := r.Route("offer_extension_request")
	if result.AgentID != "hr-1" {
		t.Fatalf("expected keyword-overlap match to hr-1, got %q", result.AgentID)
	}
}

func TestRouteNoMatchReturnsEmpty(t *testing.T) {
	r := NewCapabilityRouter()
	r.RegisterAgent(AgentInfo{AgentID: "legal-1", Capabilities: []string{"review_contract"}, Status: tirs.StatusActive})

	result := r.Route("launch_rocket")
	if result.AgentID != "" {
		t.Fatalf("expected no match, got %q", result.AgentID)
	}
}

func TestRouteSkipsKilledAgents(t *testing.T) {
	r := NewCapabilityRouter()
	r.RegisterAgent(AgentInfo{AgentID: "it-1", Capabilities: []string{"provision_access"}, Status: tirs.StatusKilled})
	r.RegisterAgent(AgentInfo{AgentID: "it-2", Capabilities: []string{"provision_access"}, Status: tirs.StatusActive})

	result := r.Route("provision_access")
	if result.AgentID != "it-2" {
		t.Fatalf("expected live agent it-2, got %q", result.AgentID)
	}
}

func TestRoutePrefersLowerRiskCandidate(t *testing.T) {
	r := NewCapabilityRouter()
	r.RegisterAgent(AgentInfo{AgentID: "it-risky", Capabilities: []string{"provision_access"}, Status: tirs.StatusActive, RiskScore: 0.8})
	r.RegisterAgent(AgentInfo{AgentID: "it-safe", Capabilities: []string{"provision_access"}, Status: tirs.StatusActive, RiskScore: 0.1})

	result := r.Route("provision_access")
	if result.AgentID != "it-safe" {
		t.Fatalf("expected lower-risk candidate it-safe, got %q", result.AgentID)
	}
}

func TestRouteTieBreaksByInsertionOrder(t *testing.T) {
	r := NewCapabilityRouter()
	r.RegisterAgent(AgentInfo{AgentID: "first", Capabilities: []string{"audit_log"}, Status: tirs.StatusActive})
	r.RegisterAgent(AgentInfo{AgentID: "second", Capabilities: []string{"audit_log"}, Status: tirs.StatusActive})

	result := r.Route("audit_log")
	if result.AgentID != "first" {
		t.Fatalf("expected tie-break to favor first-registered agent, got %q", result.AgentID)
	}
}

func TestUnregisterAgentRemovesCapabilityMapping(t *testing.T) {
	r := NewCapabilityRouter()
	r.RegisterAgent(AgentInfo{AgentID: "ops-1", Capabilities: []string{"rate_check"}, Status: tirs.StatusActive})
	r.UnregisterAgent("ops-1")

	result := r.Route("rate_check")
	if result.AgentID != "" {
		t.Fatalf("expected no agent after unregister, got %q", result.AgentID)
	}
}
