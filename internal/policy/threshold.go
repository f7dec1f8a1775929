package policy

import "fmt"

// ThresholdPolicy reads a numeric field from the payload and compares it
// against up to three configured limits. The first exceeded limit, checked
// in deny/escalate/warn order, determines the verdict. A missing or
// non-numeric field always allows — threshold policies never fail closed
// on absent data.
type ThresholdPolicy struct {
	counters
	name     string
	category Category
	severity Severity
	field    string
	warn     *float64
	escalate *float64
	deny     *float64
}

// NewThresholdPolicy builds a ThresholdPolicy. Pass nil for any limit that
// does not apply.
func NewThresholdPolicy(name string, category Category, severity Severity, field string, warn, escalate, deny *float64) *ThresholdPolicy {
	return &ThresholdPolicy{name: name, category: category, severity: severity, field: field, warn: warn, escalate: escalate, deny: deny}
}

func (p *ThresholdPolicy) Name() string       { return p.name }
func (p *ThresholdPolicy) Category() Category { return p.category }
func (p *ThresholdPolicy) Severity() Severity { return p.severity }

func (p *ThresholdPolicy) Evaluate(ctx EvalContext) PolicyResult {
	value, ok := payloadNumber(ctx.Payload, p.field)
	if !ok {
		result := PolicyResult{PolicyName: p.name, Category: p.category, Severity: p.severity, Verdict: VerdictAllow}
		p.counters.record(result.Verdict)
		return result
	}

	result := PolicyResult{PolicyName: p.name, Category: p.category, Severity: p.severity, Verdict: VerdictAllow}

	switch {
	case p.deny != nil && value > *p.deny:
		result.Verdict = VerdictDeny
		result.Reason = fmt.Sprintf("%s %.2f exceeds deny threshold %.2f", p.field, value, *p.deny)
		result.RiskDelta = p.severity.scale() * overshoot(value, *p.deny)
	case p.escalate != nil && value > *p.escalate:
		result.Verdict = VerdictEscalate
		result.Reason = fmt.Sprintf("%s %.2f exceeds escalation threshold %.2f", p.field, value, *p.escalate)
		result.RiskDelta = p.severity.scale() * 0.75 * overshoot(value, *p.escalate)
	case p.warn != nil && value > *p.warn:
		result.Verdict = VerdictWarn
		result.Reason = fmt.Sprintf("%s %.2f exceeds warning threshold %.2f", p.field, value, *p.warn)
		result.RiskDelta = p.severity.scale() * 0.3 * overshoot(value, *p.warn)
	}

	p.counters.record(result.Verdict)
	return result
}

// overshoot returns a value in (0,1] that grows with how far value is past
// limit, used to scale risk_delta proportionally rather than as a flat
// per-severity constant. Clamped so a wildly large value never dominates
// the aggregate sum.
func overshoot(value, limit float64) float64 {
	if limit <= 0 {
		return 1
	}
	ratio := (value - limit) / limit
	if ratio > 1 {
		ratio = 1
	}
	return 0.5 + 0.5*ratio
}
