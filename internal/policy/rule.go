package policy

// Predicate inspects an EvalContext and either returns a PolicyResult (the
// rule fired) or reports no match so the RulePolicy moves to the next
// predicate. Predicates run in declaration order; the first match wins.
type Predicate func(ctx EvalContext) (PolicyResult, bool)

// RulePolicy evaluates an ordered list of predicates, falling through to
// Allow if none match. This is the shape used by fixed domain logic
// (hiring, termination, leave) where a CEL expression would be unwieldy.
type RulePolicy struct {
	counters
	name       string
	category   Category
	severity   Severity
	predicates []Predicate
}

// NewRulePolicy builds a RulePolicy from an ordered predicate list.
func NewRulePolicy(name string, category Category, severity Severity, predicates ...Predicate) *RulePolicy {
	return &RulePolicy{name: name, category: category, severity: severity, predicates: predicates}
}

func (p *RulePolicy) Name() string         { return p.name }
func (p *RulePolicy) Category() Category   { return p.category }
func (p *RulePolicy) Severity() Severity   { return p.severity }

func (p *RulePolicy) Evaluate(ctx EvalContext) PolicyResult {
	for _, pred := range p.predicates {
		if result, matched := pred(ctx); matched {
			if result.PolicyName == "" {
				result.PolicyName = p.name
			}
			if result.Category == "" {
				result.Category = p.category
			}
			if result.Severity == 0 {
				result.Severity = p.severity
			}
			p.counters.record(result.Verdict)
			return result
		}
	}
	result := PolicyResult{PolicyName: p.name, Category: p.category, Severity: p.severity, Verdict: VerdictAllow}
	p.counters.record(result.Verdict)
	return result
}

// denyResult and escalateResult are small helpers domain policies use to
// build predicate results with a consistent risk_delta scaling.
func denyResult(name string, category Category, severity Severity, reason string) PolicyResult {
	return PolicyResult{PolicyName: name, Category: category, Severity: severity, Verdict: VerdictDeny, Reason: reason, RiskDelta: severity.scale()}
}

func escalateResult(name string, category Category, severity Severity, reason string) PolicyResult {
	return PolicyResult{PolicyName: name, Category: category, Severity: severity, Verdict: VerdictEscalate, Reason: reason, RiskDelta: severity.scale() * 0.75}
}

func warnResult(name string, category Category, severity Severity, reason string) PolicyResult {
	return PolicyResult{PolicyName: name, Category: category, Severity: severity, Verdict: VerdictWarn, Reason: reason, RiskDelta: severity.scale() * 0.3}
}
