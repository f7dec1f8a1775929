package tirs

import "testing"

func TestAdjustedThresholdsDefaultContext(t *testing.T) {
	c := NewContextualThresholds(DefaultThresholdBase())
	th := c.Adjusted(BusinessContext{Time: TimeBusiness, Season: SeasonNormal, Role: RoleStandard, Department: DeptGeneral})
	if th.Warning != 0.5 || th.Critical != 0.7 || th.Terminal != 0.85 {
		t.Fatalf("expected unmodified base thresholds, got %+v", th)
	}
}

func TestAdjustedThresholdsTighten(t *testing.T) {
	c := NewContextualThresholds(DefaultThresholdBase())
	th := c.Adjusted(BusinessContext{
		Time:       TimeWeekend,
		Season:     SeasonAudit,
		Role:       RoleExternal,
		Department: DeptSecurity,
		Sensitive:  true,
	})
	base := DefaultThresholdBase()
	if th.Warning >= base.Warning || th.Critical >= base.Critical || th.Terminal >= base.Terminal {
		t.Fatalf("expected tightened thresholds under high-risk context, got %+v", th)
	}
}

func TestClassifyBoundaryInclusive(t *testing.T) {
	c := NewContextualThresholds(DefaultThresholdBase())
	ctx := BusinessContext{Time: TimeBusiness, Season: SeasonNormal, Role: RoleStandard, Department: DeptGeneral}
	if level := c.Classify(0.85, ctx); level != RiskTerminal {
		t.Fatalf("score == 0.85 must classify as Terminal, got %v", level)
	}
	if level := c.Classify(0.7, ctx); level != RiskCritical {
		t.Fatalf("score == 0.70 must classify as Critical, got %v", level)
	}
	if level := c.Classify(0.5, ctx); level != RiskWarning {
		t.Fatalf("score == 0.50 must classify as Warning, got %v", level)
	}
}

func TestCustomRulePriorityOrder(t *testing.T) {
	c := NewContextualThresholds(DefaultThresholdBase())
	c.AddCustomRule(CustomRule{Name: "b", Priority: 2, Multiplier: 0.5, Match: func(BusinessContext) bool { return true }})
	c.AddCustomRule(CustomRule{Name: "a", Priority: 1, Multiplier: 0.9, Match: func(BusinessContext) bool { return true }})

	ctx := BusinessContext{Time: TimeBusiness, Season: SeasonNormal, Role: RoleStandard, Department: DeptGeneral}
	m := c.Multiplier(ctx)
	expected := 0.9 * 0.5
	if diff := m - expected; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected multiplier %v, got %v", expected, m)
	}
}
