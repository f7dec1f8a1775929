package api

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProcessRequestRejectsMissingAction(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/requests", strings.NewReader(`{"payload":{}}`))
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for missing required action field, got %d", rr.Code)
	}
}

func TestProcessRequestRejectsMalformedJSON(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/requests", strings.NewReader(`not json`))
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for malformed JSON, got %d", rr.Code)
	}
}

func TestAgentStatusUnknownAgentReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/agents/does-not-exist/status", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 404 {
		t.Fatalf("expected 404 for unknown agent, got %d", rr.Code)
	}
}

func TestVerifySnapshotsEmptyChainIsValid(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/snapshots/agent-1/verify", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"valid":true`) {
		t.Fatalf("expected a chain with no snapshots to verify as valid, got %s", rr.Body.String())
	}
}

func TestListPoliciesReturnsConfiguredPolicies(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/policies", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestReloadPoliciesFailsWithoutLoadedFile(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/policies/reload", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 500 {
		t.Fatalf("expected 500 since the loader was never pointed at a file, got %d", rr.Code)
	}
}

func TestListApprovalsEmptyQueue(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/approvals", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"approvals":null`) && !strings.Contains(rr.Body.String(), `"approvals":[]`) {
		t.Fatalf("expected an empty approvals list, got %s", rr.Body.String())
	}
}

func TestListTracesEmptyStore(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/traces", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestSearchTracesRequiresQueryParam(t *testing.T) {
	s, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/traces/search", nil)
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400 without a 'q' parameter, got %d", rr.Code)
	}
}
