package tirs

import (
	"sync"
	"time"

	"github.com/armoriq/sentinel/internal/embedding"
)

const (
	riskHistoryCapacity   = 200
	intentHistoryCapacity = 100
	warmupCount           = 10
)

// Profile is the in-memory behavioral profile for one agent. Every read and
// write of its mutable fields goes through the embedded mutex; hold time is
// bounded to a single signal computation per the concurrency model.
type Profile struct {
	mu sync.Mutex

	AgentID           string
	Status            AgentStatus
	TotalIntents      int
	ViolationCount    int
	ResurrectionCount int
	RiskHistory       []RiskPoint
	IntentHistory     []IntentEvent
	BaselineCentroid  embedding.Vector
	WarmupSamples     []embedding.Vector
	WarmupComplete    bool
	CapabilityCounts  map[string]int
	CurrentRiskScore  float64
	LastSnapshotHash  string
	LastTrigger       string

	// embeddingDistances holds the last K raw embedding-drift distances,
	// used to smooth the embedding_drift signal per spec §4.2 step 3.
	embeddingDistances []float64
}

const embeddingSmoothingWindow = 5

// appendEmbeddingDistance records a fresh distance and returns the mean of
// the last embeddingSmoothingWindow values, including this one. Caller must
// hold p.mu.
func (p *Profile) appendEmbeddingDistance(d float64) float64 {
	p.embeddingDistances = append(p.embeddingDistances, d)
	if len(p.embeddingDistances) > embeddingSmoothingWindow {
		p.embeddingDistances = p.embeddingDistances[len(p.embeddingDistances)-embeddingSmoothingWindow:]
	}
	var sum float64
	for _, v := range p.embeddingDistances {
		sum += v
	}
	return sum / float64(len(p.embeddingDistances))
}

// NewProfile creates an Active profile in warmup for agentID.
func NewProfile(agentID string, dim int) *Profile {
	return &Profile{
		AgentID:          agentID,
		Status:           StatusActive,
		CapabilityCounts: make(map[string]int),
		BaselineCentroid: make(embedding.Vector, dim),
	}
}

// ProfileStore owns the arena of per-agent profiles, keyed by agent_id, with
// a dedicated lock per profile (the registry map itself is guarded
// separately so registration never blocks an in-flight signal computation
// for an unrelated agent).
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	dim      int
}

// NewProfileStore constructs an empty store producing profiles with
// embedding dimension dim.
func NewProfileStore(dim int) *ProfileStore {
	return &ProfileStore{profiles: make(map[string]*Profile), dim: dim}
}

// GetOrCreate returns the existing profile for agentID or creates a fresh
// Active one.
func (s *ProfileStore) GetOrCreate(agentID string) *Profile {
	s.mu.RLock()
	p, ok := s.profiles[agentID]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[agentID]; ok {
		return p
	}
	p = NewProfile(agentID, s.dim)
	s.profiles[agentID] = p
	return p
}

// Get returns the profile for agentID, if it exists.
func (s *ProfileStore) Get(agentID string) (*Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[agentID]
	return p, ok
}

// All returns a snapshot slice of all known agent IDs.
func (s *ProfileStore) All() []*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}

// appendRiskPoint appends to the bounded risk_history, evicting the oldest
// entry past capacity. Caller must hold p.mu.
func (p *Profile) appendRiskPoint(rp RiskPoint) {
	p.RiskHistory = append(p.RiskHistory, rp)
	if len(p.RiskHistory) > riskHistoryCapacity {
		p.RiskHistory = p.RiskHistory[len(p.RiskHistory)-riskHistoryCapacity:]
	}
}

// appendIntent appends to the bounded intent_history, evicting the oldest
// entry past capacity. Caller must hold p.mu.
func (p *Profile) appendIntent(ev IntentEvent) {
	p.IntentHistory = append(p.IntentHistory, ev)
	if len(p.IntentHistory) > intentHistoryCapacity {
		p.IntentHistory = p.IntentHistory[len(p.IntentHistory)-intentHistoryCapacity:]
	}
}

// recentViolationRate computes the violations-in-last-M / M signal. Caller
// must hold p.mu.
func (p *Profile) recentViolationRate(m int) float64 {
	if m <= 0 {
		m = 20
	}
	n := len(p.IntentHistory)
	start := 0
	if n > m {
		start = n - m
	}
	window := p.IntentHistory[start:]
	if len(window) == 0 {
		return 0
	}
	violations := 0
	for _, ev := range window {
		if !ev.Allowed {
			violations++
		}
	}
	return clamp01(float64(violations) / float64(len(window)))
}

// capabilityProbability returns the Laplace-smoothed observed frequency of
// cap among all recorded capability observations. Caller must hold p.mu.
func (p *Profile) capabilityProbability(cap string) float64 {
	total := 0
	for _, c := range p.CapabilityCounts {
		total += c
	}
	k := len(p.CapabilityCounts)
	if k == 0 {
		k = 1
	}
	count := p.CapabilityCounts[cap]
	return (float64(count) + 1) / (float64(total) + float64(k))
}

// snapshotHistoryTail returns copies of the last n risk and intent history
// entries, safe to use outside the lock.
func (p *Profile) snapshotHistoryTail(n int) ([]RiskPoint, []IntentEvent) {
	riskStart := 0
	if len(p.RiskHistory) > n {
		riskStart = len(p.RiskHistory) - n
	}
	intentStart := 0
	if len(p.IntentHistory) > n {
		intentStart = len(p.IntentHistory) - n
	}
	rh := make([]RiskPoint, len(p.RiskHistory[riskStart:]))
	copy(rh, p.RiskHistory[riskStart:])
	ih := make([]IntentEvent, len(p.IntentHistory[intentStart:]))
	copy(ih, p.IntentHistory[intentStart:])
	return rh, ih
}

// resurrect resets baseline_centroid and clears risk_history while
// preserving resurrection_count and violation_count, per the resolved open
// question in SPEC_FULL.md §9. Caller must hold p.mu.
func (p *Profile) resurrect(dim int) {
	p.ResurrectionCount++
	p.BaselineCentroid = make(embedding.Vector, dim)
	p.WarmupSamples = nil
	p.WarmupComplete = false
	p.RiskHistory = nil
	p.Status = StatusResurrected
}

func now() time.Time { return time.Now() }
