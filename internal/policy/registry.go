package policy

import (
	"fmt"
	"sort"
	"sync"
)

// RegistryMode controls whether membership in a RegistryPolicy's set
// constitutes compliance or a violation.
type RegistryMode string

const (
	// ModeAllowlist: membership is required; absence is a violation.
	ModeAllowlist RegistryMode = "allowlist"
	// ModeBlocklist: membership itself is the violation (e.g. an active
	// litigation hold blocking deletion of a specific document).
	ModeBlocklist RegistryMode = "blocklist"
)

// RegistryPolicy maintains an in-memory set of keys (approved vendors,
// active NDAs, documents under litigation hold) and evaluates whether a
// value extracted from the payload is a member.
type RegistryPolicy struct {
	counters
	mu       sync.RWMutex
	name     string
	category Category
	severity Severity
	mode     RegistryMode
	verdict  Verdict
	field    string
	members  map[string]bool
	reason   string
	actions  map[string]bool
}

// ForActions restricts the registry check to the given action names; any
// other action is always allowed. Useful for a blocklist policy that
// should only fire on destructive actions (e.g. document deletion) and
// ignore reads of the same held document.
func (p *RegistryPolicy) ForActions(actions ...string) *RegistryPolicy {
	p.actions = make(map[string]bool, len(actions))
	for _, a := range actions {
		p.actions[a] = true
	}
	return p
}

// NewRegistryPolicy builds a RegistryPolicy. field names the payload key
// whose string value is looked up in the registry; verdict is returned
// when the membership check fails (absent for allowlist, present for
// blocklist).
func NewRegistryPolicy(name string, category Category, severity Severity, mode RegistryMode, field string, verdict Verdict, reason string) *RegistryPolicy {
	return &RegistryPolicy{
		name:     name,
		category: category,
		severity: severity,
		mode:     mode,
		field:    field,
		verdict:  verdict,
		reason:   reason,
		members:  make(map[string]bool),
	}
}

func (p *RegistryPolicy) Name() string       { return p.name }
func (p *RegistryPolicy) Category() Category { return p.category }
func (p *RegistryPolicy) Severity() Severity { return p.severity }

// Add registers a key as a member of the registry (an approved vendor, an
// active NDA counterparty, a document ID under hold).
func (p *RegistryPolicy) Add(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[key] = true
}

// Remove clears a key from the registry.
func (p *RegistryPolicy) Remove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members, key)
}

// Members returns a sorted snapshot of the registry's current keys.
func (p *RegistryPolicy) Members() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.members))
	for k := range p.members {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p *RegistryPolicy) Evaluate(ctx EvalContext) PolicyResult {
	result := PolicyResult{PolicyName: p.name, Category: p.category, Severity: p.severity, Verdict: VerdictAllow}

	if len(p.actions) > 0 && !p.actions[ctx.Action] {
		p.counters.record(result.Verdict)
		return result
	}

	key, ok := payloadString(ctx.Payload, p.field)
	if !ok || key == "" {
		p.counters.record(result.Verdict)
		return result
	}

	p.mu.RLock()
	isMember := p.members[key]
	p.mu.RUnlock()

	violated := (p.mode == ModeAllowlist && !isMember) || (p.mode == ModeBlocklist && isMember)
	if violated {
		result.Verdict = p.verdict
		result.Reason = fmt.Sprintf("%s: %s", p.reason, key)
		result.RiskDelta = p.severity.scale()
		if result.Verdict == VerdictEscalate {
			result.RiskDelta *= 0.75
		} else if result.Verdict == VerdictWarn {
			result.RiskDelta *= 0.3
		}
	}

	p.counters.record(result.Verdict)
	return result
}
