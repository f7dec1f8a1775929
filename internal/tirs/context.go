package tirs

import (
	"fmt"
	"sync"
)

// ThresholdBase is the unadjusted {warning, critical, terminal} boundary
// set before contextual multipliers are applied.
type ThresholdBase struct {
	Warning  float64
	Critical float64
	Terminal float64
}

// DefaultThresholdBase matches spec §4.4.
func DefaultThresholdBase() ThresholdBase {
	return ThresholdBase{Warning: 0.5, Critical: 0.7, Terminal: 0.85}
}

var timeMultipliers = map[TimeContext]float64{
	TimeBusiness:   1.0,
	TimeAfterHours: 0.85,
	TimeWeekend:    0.75,
	TimeHoliday:    0.70,
}

var seasonMultipliers = map[Season]float64{
	SeasonNormal:     1.0,
	SeasonQuarterEnd: 0.90,
	SeasonYearEnd:    0.85,
	SeasonAudit:      0.80,
	SeasonPeak:       0.95,
}

var roleMultipliers = map[Role]float64{
	RoleAdmin:      0.90,
	RoleManager:    0.95,
	RoleStandard:   1.0,
	RoleContractor: 0.85,
	RoleExternal:   0.75,
}

var departmentMultipliers = map[Department]float64{
	DeptFinance:  0.90,
	DeptLegal:    0.85,
	DeptHR:       0.90,
	DeptSecurity: 0.80,
	DeptIT:       0.95,
	DeptGeneral:  1.0,
}

const sensitiveMultiplier = 0.85

// CustomRule is an additional multiplier applied in priority order, keyed
// by a predicate over BusinessContext.
type CustomRule struct {
	Name      string
	Priority  int
	Multiplier float64
	Match     func(BusinessContext) bool
}

// ContextualThresholds derives adjusted risk thresholds from a base set and
// the current BusinessContext.
type ContextualThresholds struct {
	mu    sync.RWMutex
	base  ThresholdBase
	rules []CustomRule
}

// NewContextualThresholds constructs a ContextualThresholds with the given
// base boundaries (DefaultThresholdBase() if zero-valued).
func NewContextualThresholds(base ThresholdBase) *ContextualThresholds {
	if base.Warning == 0 && base.Critical == 0 && base.Terminal == 0 {
		base = DefaultThresholdBase()
	}
	return &ContextualThresholds{base: base}
}

// AddCustomRule registers an additional multiplier, evaluated after the
// fixed dimension multipliers, sorted ascending by Priority.
func (c *ContextualThresholds) AddCustomRule(rule CustomRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule)
	// simple insertion sort by priority — rule sets are small and static.
	for i := len(c.rules) - 1; i > 0 && c.rules[i].Priority < c.rules[i-1].Priority; i-- {
		c.rules[i], c.rules[i-1] = c.rules[i-1], c.rules[i]
	}
}

// Multiplier computes the product of every applicable multiplier for ctx.
func (c *ContextualThresholds) Multiplier(ctx BusinessContext) float64 {
	m := 1.0
	if v, ok := timeMultipliers[ctx.Time]; ok {
		m *= v
	}
	if v, ok := seasonMultipliers[ctx.Season]; ok {
		m *= v
	}
	if v, ok := roleMultipliers[ctx.Role]; ok {
		m *= v
	}
	if v, ok := departmentMultipliers[ctx.Department]; ok {
		m *= v
	}
	if ctx.Sensitive {
		m *= sensitiveMultiplier
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rules {
		if r.Match != nil && r.Match(ctx) {
			m *= r.Multiplier
		}
	}
	return m
}

// Adjusted returns the base thresholds scaled by the context multiplier.
func (c *ContextualThresholds) Adjusted(ctx BusinessContext) ThresholdBase {
	m := c.Multiplier(ctx)
	return ThresholdBase{
		Warning:  c.base.Warning * m,
		Critical: c.base.Critical * m,
		Terminal: c.base.Terminal * m,
	}
}

// Classify maps a smoothed score to a RiskLevel using adjusted thresholds.
// Boundaries are inclusive on the upper side: score == terminal ⇒ Terminal.
func (c *ContextualThresholds) Classify(score float64, ctx BusinessContext) RiskLevel {
	th := c.Adjusted(ctx)
	switch {
	case score >= th.Terminal:
		return RiskTerminal
	case score >= th.Critical:
		return RiskCritical
	case score >= th.Warning:
		return RiskWarning
	case score > 0:
		return RiskElevated
	default:
		return RiskNominal
	}
}

// Explain renders a short human-readable justification for the adjusted
// thresholds under ctx.
func (c *ContextualThresholds) Explain(ctx BusinessContext) string {
	th := c.Adjusted(ctx)
	m := c.Multiplier(ctx)
	return fmt.Sprintf(
		"thresholds adjusted by %.3fx (time=%s season=%s role=%s dept=%s sensitive=%v) -> warning=%.3f critical=%.3f terminal=%.3f",
		m, ctx.Time, ctx.Season, ctx.Role, ctx.Department, ctx.Sensitive, th.Warning, th.Critical, th.Terminal,
	)
}
