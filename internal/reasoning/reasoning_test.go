package reasoning

import "testing"

func TestShouldInvokeOnHighRisk(t *testing.T) {
	if !ShouldInvoke(0.6, false) {
		t.Fatal("expected invoke when TIRS score >= 0.5")
	}
}

func TestShouldInvokeOnEscalation(t *testing.T) {
	if !ShouldInvoke(0.1, true) {
		t.Fatal("expected invoke when compliance escalated regardless of score")
	}
}

func TestShouldInvokeSkipsLowRiskNonEscalated(t *testing.T) {
	if ShouldInvoke(0.2, false) {
		t.Fatal("expected no invoke for low risk, non-escalated action")
	}
}

func TestParseAssessResponseStripsSurroundingText(t *testing.T) {
	raw := "Here is my answer:\n{\"recommendation\": \"deny\", \"confidence\": 0.95, \"reasoning\": \"too risky\"}\nThanks."
	result, err := parseAssessResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Recommendation != RecommendDeny {
		t.Fatalf("expected deny, got %v", result.Recommendation)
	}
	if result.Confidence != 0.95 {
		t.Fatalf("expected confidence 0.95, got %v", result.Confidence)
	}
}

func TestParseAssessResponseClampsConfidence(t *testing.T) {
	raw := `{"recommendation": "proceed", "confidence": 1.5, "reasoning": "fine"}`
	result, err := parseAssessResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Confidence != 1.0 {
		t.Fatalf("expected confidence clamped to 1.0, got %v", result.Confidence)
	}
}

func TestParseAssessResponseDefaultsUnknownRecommendationToEscalate(t *testing.T) {
	raw := `{"recommendation": "maybe", "confidence": 0.5, "reasoning": "unsure"}`
	result, err := parseAssessResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Recommendation != RecommendEscalate {
		t.Fatalf("expected fallback to escalate, got %v", result.Recommendation)
	}
}

func TestCanOverrideTIRSRequiresHighConfidenceAndSubcriticalScore(t *testing.T) {
	proceed := AssessResult{Recommendation: RecommendProceed, Confidence: 0.95}
	if !proceed.CanOverrideTIRS(0.6, 0.8) {
		t.Fatal("expected override allowed below critical with high confidence")
	}
	if proceed.CanOverrideTIRS(0.9, 0.8) {
		t.Fatal("expected no override at or above critical")
	}

	lowConfidence := AssessResult{Recommendation: RecommendProceed, Confidence: 0.5}
	if lowConfidence.CanOverrideTIRS(0.1, 0.8) {
		t.Fatal("expected no override with low confidence")
	}

	denyRec := AssessResult{Recommendation: RecommendDeny, Confidence: 0.99}
	if denyRec.CanOverrideTIRS(0.1, 0.8) {
		t.Fatal("expected no override for a deny recommendation")
	}
}
