// Package orchestrator implements capability-based agent routing,
// cross-agent handoff verification, and DAG workflow execution.
package orchestrator

import (
	"strings"
	"sync"

	"github.com/armoriq/sentinel/internal/tirs"
)

// AgentInfo is the router's view of a registered agent: enough to score
// and select among candidates without depending on the concrete agent
// implementation.
type AgentInfo struct {
	AgentID      string
	Capabilities []string
	Status       tirs.AgentStatus
	RiskScore    float64
	BlockedCount int64
	ActionCount  int64
}

func (a AgentInfo) blockRate() float64 {
	if a.ActionCount <= 0 {
		return 0
	}
	return float64(a.BlockedCount) / float64(a.ActionCount)
}

func statusScore(status tirs.AgentStatus) float64 {
	switch status {
	case tirs.StatusActive, tirs.StatusResurrected:
		return 10
	case tirs.StatusThrottled:
		return 5
	default:
		return 0
	}
}

// RouteResult is the outcome of a routing decision.
type RouteResult struct {
	AgentID      string
	Capability   string
	Confidence   float64
	Alternatives []string
}

// CapabilityRouter maps capability strings to the agents that advertise
// them and scores candidates at route time.
type CapabilityRouter struct {
	mu           sync.RWMutex
	agents       map[string]AgentInfo
	capabilities map[string][]string // capability -> ordered agent IDs (insertion order)
}

// NewCapabilityRouter creates an empty router.
func NewCapabilityRouter() *CapabilityRouter {
	return &CapabilityRouter{
		agents:       make(map[string]AgentInfo),
		capabilities: make(map[string][]string),
	}
}

// RegisterAgent records an agent and the capabilities it advertises.
func (r *CapabilityRouter) RegisterAgent(info AgentInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[info.AgentID] = info
	for _, cap := range info.Capabilities {
		ids := r.capabilities[cap]
		found := false
		for _, id := range ids {
			if id == info.AgentID {
				found = true
				break
			}
		}
		if !found {
			r.capabilities[cap] = append(ids, info.AgentID)
		}
	}
}

// UpdateAgent refreshes an already-registered agent's mutable scoring
// fields (status, risk score, block counters) without re-touching its
// capability mappings.
func (r *CapabilityRouter) UpdateAgent(info AgentInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.agents[info.AgentID]; ok {
		info.Capabilities = existing.Capabilities
	}
	r.agents[info.AgentID] = info
}

// UnregisterAgent removes an agent from the router entirely.
func (r *CapabilityRouter) UnregisterAgent(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return
	}
	for _, cap := range agent.Capabilities {
		ids := r.capabilities[cap]
		out := ids[:0]
		for _, id := range ids {
			if id != agentID {
				out = append(out, id)
			}
		}
		r.capabilities[cap] = out
	}
	delete(r.agents, agentID)
}

// Route resolves an action string to the best-scoring live agent that
// advertises a matching capability.
func (r *CapabilityRouter) Route(action string) RouteResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	capability := r.matchCapability(action)
	if capability == "" {
		return RouteResult{}
	}

	candidateIDs := r.capabilities[capability]
	if len(candidateIDs) == 0 {
		return RouteResult{Capability: capability}
	}

	selected, alternatives := r.selectAgent(candidateIDs)
	if selected == "" {
		return RouteResult{Capability: capability}
	}

	return RouteResult{
		AgentID:      selected,
		Capability:   capability,
		Confidence:   1.0,
		Alternatives: alternatives,
	}
}

// matchCapability implements the exact/substring/keyword-overlap cascade.
func (r *CapabilityRouter) matchCapability(action string) string {
	normalized := normalizeAction(action)

	for cap := range r.capabilities {
		if cap == normalized {
			return cap
		}
	}
	for cap := range r.capabilities {
		if strings.Contains(cap, normalized) || strings.Contains(normalized, cap) {
			return cap
		}
	}

	keywords := strings.Split(normalized, "_")
	for cap := range r.capabilities {
		capKeywords := strings.Split(cap, "_")
		for _, k := range keywords {
			for _, ck := range capKeywords {
				if k == ck && k != "" {
					return cap
				}
			}
		}
	}
	return ""
}

func normalizeAction(action string) string {
	a := strings.ToLower(action)
	a = strings.ReplaceAll(a, " ", "_")
	a = strings.ReplaceAll(a, "-", "_")
	return a
}

// selectAgent scores each live candidate and returns the highest-scoring
// agent ID plus the remaining candidates as alternatives, in insertion
// order for tie-breaking.
func (r *CapabilityRouter) selectAgent(candidateIDs []string) (string, []string) {
	bestID := ""
	bestScore := -1.0

	for _, id := range candidateIDs {
		agent, ok := r.agents[id]
		if !ok || agent.Status == tirs.StatusKilled {
			continue
		}
		score := statusScore(agent.Status) + (10 - 10*clamp01(agent.RiskScore)) + (10 - 10*clamp01(agent.blockRate()))
		if score > bestScore {
			bestScore = score
			bestID = id
		}
	}

	if bestID == "" {
		return "", nil
	}

	var alternatives []string
	for _, id := range candidateIDs {
		if id != bestID {
			alternatives = append(alternatives, id)
		}
	}
	return bestID, alternatives
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Agent returns the router's current view of an agent, if registered.
func (r *CapabilityRouter) Agent(agentID string) (AgentInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	return a, ok
}

// Capabilities returns a snapshot of the capability-to-agent mapping.
func (r *CapabilityRouter) Capabilities() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.capabilities))
	for k, v := range r.capabilities {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
