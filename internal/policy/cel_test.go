package policy

import "testing"

func TestCELPredicateMatches(t *testing.T) {
	celEval, err := NewCELEvaluator(nil)
	if err != nil {
		t.Fatalf("NewCELEvaluator: %v", err)
	}

	pred, err := CELPredicate(celEval, `payload.amount > 1000.0`, VerdictEscalate, SeverityHigh, "amount exceeds limit")
	if err != nil {
		t.Fatalf("CELPredicate: %v", err)
	}

	result, matched := pred(EvalContext{Payload: map[string]interface{}{"amount": 5000.0}})
	if !matched {
		t.Fatal("expected predicate to match")
	}
	if result.Verdict != VerdictEscalate {
		t.Fatalf("expected Escalate, got %v", result.Verdict)
	}
	if result.RiskDelta <= 0 {
		t.Fatalf("expected positive risk_delta, got %v", result.RiskDelta)
	}
}

func TestCELPredicateNoMatch(t *testing.T) {
	celEval, err := NewCELEvaluator(nil)
	if err != nil {
		t.Fatalf("NewCELEvaluator: %v", err)
	}

	pred, err := CELPredicate(celEval, `payload.amount > 1000.0`, VerdictDeny, SeverityHigh, "too large")
	if err != nil {
		t.Fatalf("CELPredicate: %v", err)
	}

	_, matched := pred(EvalContext{Payload: map[string]interface{}{"amount": 10.0}})
	if matched {
		t.Fatal("expected predicate not to match")
	}
}

func TestCELPredicateMissingFieldDoesNotPanic(t *testing.T) {
	celEval, err := NewCELEvaluator(nil)
	if err != nil {
		t.Fatalf("NewCELEvaluator: %v", err)
	}

	pred, err := CELPredicate(celEval, `payload.amount > 1000.0`, VerdictDeny, SeverityHigh, "too large")
	if err != nil {
		t.Fatalf("CELPredicate: %v", err)
	}

	result, matched := pred(EvalContext{Payload: map[string]interface{}{}})
	// A missing map key surfaces as a CEL evaluation error, which the
	// predicate treats as fail-closed (Deny) rather than a silent pass.
	if !matched {
		t.Fatal("expected fail-closed behavior on missing field to report a match")
	}
	if result.Verdict != VerdictDeny {
		t.Fatalf("expected fail-closed Deny, got %v", result.Verdict)
	}
}

func TestRulePolicyFallsThroughToAllow(t *testing.T) {
	p := NewRulePolicy("always-allow", CategoryOperations, SeverityLow)
	result := p.Evaluate(EvalContext{})
	if result.Verdict != VerdictAllow {
		t.Fatalf("expected Allow with no predicates, got %v", result.Verdict)
	}
	evals, violations := p.Stats()
	if evals != 1 || violations != 0 {
		t.Fatalf("expected 1 eval 0 violations, got %d/%d", evals, violations)
	}
}
