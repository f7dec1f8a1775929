// Package policy implements the Compliance engine's evaluation pipeline.
// Policies are grouped by category and evaluated in a deterministic order;
// results are merged into a single Aggregate per the teacher's
// deny-short-circuit pipeline idiom, generalized to five verdicts instead
// of two.
package policy

import (
	"log/slog"
	"sort"
	"sync"
)

// Aggregate is the merged outcome of evaluating every applicable policy
// against one action.
type Aggregate struct {
	Allowed        bool
	Verdict        Verdict
	PrimaryBlocker *PolicyResult
	MergedPayload  map[string]interface{}
	TotalRiskDelta float64
	Results        []PolicyResult
}

// Engine holds the registered policy set and evaluates actions against it.
// Safe for concurrent use; policies can be added or removed while
// evaluations are in flight.
type Engine struct {
	mu       sync.RWMutex
	policies []Policy
	logger   *slog.Logger
}

// NewEngine creates an empty compliance Engine. Use Register to add
// policies, typically once at startup from domain policy constructors.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("component", "policy.Engine")}
}

// Register adds one or more policies to the engine.
func (e *Engine) Register(policies ...Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, policies...)
}

// Policies returns a snapshot of currently registered policies.
func (e *Engine) Policies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Policy, len(e.policies))
	copy(out, e.policies)
	return out
}

// Evaluate runs every policy whose category intersects categories (or all
// policies if categories is empty) against the given action/payload/context
// and merges the results per the teacher's short-circuit-on-deny pipeline,
// generalized to the full Allow/Modify/Warn/Escalate/Deny verdict lattice.
func (e *Engine) Evaluate(action string, payload, context map[string]interface{}, categories ...Category) Aggregate {
	e.mu.RLock()
	policies := e.policies
	e.mu.RUnlock()

	ctx := EvalContext{Action: action, Payload: payload, Context: context}
	wanted := make(map[Category]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	var results []PolicyResult
	for _, p := range policies {
		if len(wanted) > 0 && !wanted[p.Category()] {
			continue
		}
		results = append(results, p.Evaluate(ctx))
	}

	return merge(payload, results)
}

// merge implements §4.9's deterministic merge: Deny > Escalate > Modify >
// Warn > Allow, with Modify's merged_payload built by overlaying each
// Modify result's modified_payload onto the original in evaluation order.
func merge(payload map[string]interface{}, results []PolicyResult) Aggregate {
	agg := Aggregate{Allowed: true, Verdict: VerdictAllow, Results: results}

	var denies, escalates, modifies, warns []PolicyResult
	for _, r := range results {
		agg.TotalRiskDelta += r.RiskDelta
		switch r.Verdict {
		case VerdictDeny:
			denies = append(denies, r)
		case VerdictEscalate:
			escalates = append(escalates, r)
		case VerdictModify:
			modifies = append(modifies, r)
		case VerdictWarn:
			warns = append(warns, r)
		}
	}

	if len(denies) > 0 {
		agg.Allowed = false
		agg.Verdict = VerdictDeny
		sort.SliceStable(denies, func(i, j int) bool { return denies[i].Severity > denies[j].Severity })
		blocker := denies[0]
		agg.PrimaryBlocker = &blocker
		return agg
	}

	if len(escalates) > 0 {
		agg.Verdict = VerdictEscalate
		return agg
	}

	if len(modifies) > 0 {
		agg.Verdict = VerdictModify
		merged := make(map[string]interface{}, len(payload))
		for k, v := range payload {
			merged[k] = v
		}
		for _, m := range modifies {
			for k, v := range m.ModifiedPayload {
				merged[k] = v
			}
		}
		agg.MergedPayload = merged
		return agg
	}

	if len(warns) > 0 {
		agg.Verdict = VerdictWarn
	}

	return agg
}
