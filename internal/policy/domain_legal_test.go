package policy

import "testing"

func TestNDAEnforcementDeniesUnknownCounterparty(t *testing.T) {
	p := NewNDAEnforcementPolicy()
	p.Add("acme-corp")
	r := p.Evaluate(EvalContext{Payload: map[string]interface{}{"counterparty": "unknown-llc"}})
	if r.Verdict != VerdictDeny {
		t.Fatalf("expected Deny for counterparty without an NDA, got %v", r.Verdict)
	}
}

func TestNDAEnforcementAllowsKnownCounterparty(t *testing.T) {
	p := NewNDAEnforcementPolicy()
	p.Add("acme-corp")
	r := p.Evaluate(EvalContext{Payload: map[string]interface{}{"counterparty": "acme-corp"}})
	if r.Verdict != VerdictAllow {
		t.Fatalf("expected Allow for counterparty with an NDA, got %v", r.Verdict)
	}
}

func TestLitigationHoldBlocksOnlyConfiguredActions(t *testing.T) {
	p := NewLitigationHoldPolicy()
	p.Add("doc-123")

	r := p.Evaluate(EvalContext{Action: "delete_document", Payload: map[string]interface{}{"document_id": "doc-123"}})
	if r.Verdict != VerdictDeny {
		t.Fatalf("expected Deny deleting a held document, got %v", r.Verdict)
	}

	r = p.Evaluate(EvalContext{Action: "read_document", Payload: map[string]interface{}{"document_id": "doc-123"}})
	if r.Verdict != VerdictAllow {
		t.Fatalf("expected Allow reading a held document, got %v", r.Verdict)
	}
}

func TestIPProtectionDeniesUnapprovedSourceCodeShare(t *testing.T) {
	p := NewIPProtectionPolicy()
	r := p.Evaluate(EvalContext{Action: "share_external", Payload: map[string]interface{}{"asset_type": "source_code"}})
	if r.Verdict != VerdictDeny {
		t.Fatalf("expected Deny, got %v", r.Verdict)
	}
}

func TestContractReviewEscalatesHighValue(t *testing.T) {
	p := NewContractReviewPolicy()
	r := p.Evaluate(EvalContext{Action: "execute_contract", Payload: map[string]interface{}{"contract_value": 100000.0}})
	if r.Verdict != VerdictEscalate {
		t.Fatalf("expected Escalate for high-value unreviewed contract, got %v", r.Verdict)
	}
}

func TestContractReviewAllowsWhenReviewed(t *testing.T) {
	p := NewContractReviewPolicy()
	r := p.Evaluate(EvalContext{Action: "execute_contract", Payload: map[string]interface{}{
		"contract_value": 100000.0,
		"legal_reviewed": true,
	}})
	if r.Verdict != VerdictAllow {
		t.Fatalf("expected Allow when already reviewed, got %v", r.Verdict)
	}
}
