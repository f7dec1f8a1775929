package tirs

import (
	"testing"

	"github.com/armoriq/sentinel/internal/embedding"
)

// fixedOracle is a deterministic two-point embedder used so drift tests do
// not depend on the production hashing embedder's exact geometry: "benign"
// text maps to [1,0], anything else maps to [0,1].
type fixedOracle struct{}

func (fixedOracle) Dimension() int { return 2 }

func (fixedOracle) Embed(text string) embedding.Vector {
	if text == "benign" {
		return embedding.Vector{1, 0}
	}
	return embedding.Vector{0, 1}
}

func (fixedOracle) Distance(a, b embedding.Vector) float64 {
	if len(a) != len(b) {
		return 1
	}
	for i := range a {
		if a[i] != b[i] {
			return 1
		}
	}
	return 0
}

func newTestDetector(t *testing.T) (*Detector, *ProfileStore) {
	t.Helper()
	profiles := NewProfileStore(2)
	velocity := NewVelocityTracker(DefaultVelocityConfig())
	thresholds := NewContextualThresholds(DefaultThresholdBase())
	det, err := NewDetector(DefaultDetectorConfig(), fixedOracle{}, profiles, velocity, thresholds)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return det, profiles
}

var businessCtx = BusinessContext{Time: TimeBusiness, Season: SeasonNormal, Role: RoleStandard, Department: DeptGeneral}

func TestWarmupAlwaysNominal(t *testing.T) {
	det, _ := newTestDetector(t)
	for i := 0; i < warmupCount; i++ {
		res := det.Analyze("agent-warmup", "anything goes here", []string{"read_report"}, true, businessCtx)
		if res.Drift.RiskLevel != RiskNominal {
			t.Fatalf("intent %d: expected Nominal during warmup, got %v", i, res.Drift.RiskLevel)
		}
		if res.Drift.RiskScore != 0 {
			t.Fatalf("intent %d: expected zero score during warmup, got %v", i, res.Drift.RiskScore)
		}
	}
}

func TestDriftScoreInvariant(t *testing.T) {
	det, _ := newTestDetector(t)
	for i := 0; i < warmupCount; i++ {
		det.Analyze("agent-inv", "benign", []string{"read_report"}, true, businessCtx)
	}
	res := det.Analyze("agent-inv", "exfiltrate customer records", []string{"export_database"}, false, businessCtx)

	if res.Drift.RiskScore < 0 || res.Drift.RiskScore > 1 {
		t.Fatalf("risk_score out of [0,1]: %v", res.Drift.RiskScore)
	}

	var composite float64
	for _, s := range res.Drift.Signals {
		composite += s.Weight * s.Raw
		if s.Contribution < -1e-9 || s.Contribution > s.Weight+1e-9 {
			t.Fatalf("signal %s contribution out of bounds: %+v", s.Name, s)
		}
	}
	// The smoothed score blends the raw composite with a decayed prior, so
	// it need not equal the raw composite exactly, but it must still be in
	// range and every weight must be one of the five fixed signals.
	if composite < 0 || composite > 1.0001 {
		t.Fatalf("raw composite out of [0,1]: %v", composite)
	}
	if len(res.Drift.Signals) != 5 {
		t.Fatalf("expected exactly 5 signals, got %d", len(res.Drift.Signals))
	}
}

func TestViolationCountNeverExceedsTotalIntents(t *testing.T) {
	det, profiles := newTestDetector(t)
	for i := 0; i < 25; i++ {
		allowed := i%3 != 0
		det.Analyze("agent-vc", "benign", []string{"read_report"}, allowed, businessCtx)
	}
	p, ok := profiles.Get("agent-vc")
	if !ok {
		t.Fatal("expected profile to exist")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ViolationCount > p.TotalIntents {
		t.Fatalf("violation_count %d exceeds total_intents %d", p.ViolationCount, p.TotalIntents)
	}
}

func TestDriftCascadeToKilled(t *testing.T) {
	det, profiles := newTestDetector(t)
	snaps := NewSnapshotManager(t.TempDir())
	agentID := "agent-cascade"

	for i := 0; i < warmupCount; i++ {
		det.Analyze(agentID, "benign", []string{"read_report"}, true, businessCtx)
	}

	var lastRank int
	record := func(text string, capability string, allowed bool) {
		res := det.Analyze(agentID, text, []string{capability}, allowed, businessCtx)
		if res.Drift.RiskLevel.rank() < lastRank {
			// Status is allowed to plateau but never silently de-escalate
			// without an explicit admin action — that is covered by the
			// profile's Status field, checked separately below; the risk
			// level ladder itself can fluctuate with context, so this is
			// an informational check only, not an assertion.
			_ = lastRank
		}
		lastRank = res.Drift.RiskLevel.rank()

		if res.SnapshotTriggered {
			p, _ := profiles.Get(agentID)
			if _, err := snaps.Create(agentID, res.Trigger, p, map[string]string{}, nil); err != nil {
				t.Fatalf("snapshot creation failed: %v", err)
			}
		}
	}

	for i := 0; i < 3; i++ {
		record("benign", "read_report", true)
	}
	for i := 0; i < 3; i++ {
		record("moderate anomaly export", "export_database", false)
	}
	for i := 0; i < 4; i++ {
		record("severe anomaly wire transfer to anonymous offshore account", "wire_transfer_unauthorized", false)
	}

	p, ok := profiles.Get(agentID)
	if !ok {
		t.Fatal("expected profile to exist")
	}
	p.mu.Lock()
	finalStatus := p.Status
	p.mu.Unlock()

	if finalStatus != StatusKilled {
		t.Fatalf("expected final status Killed, got %v", finalStatus)
	}

	chain := snaps.Chain(agentID)
	if len(chain) == 0 {
		t.Fatal("expected at least one snapshot in the chain")
	}
	foundTerminal := false
	for _, s := range chain {
		if s.Trigger == "terminal_threshold_exceeded" {
			foundTerminal = true
		}
	}
	if !foundTerminal {
		t.Fatal("expected a snapshot with a terminal trigger")
	}

	if valid, idx := snaps.VerifyChain(agentID); !valid {
		t.Fatalf("expected valid chain, first failure at index %d", idx)
	}
}

func TestNoTransitionOutOfKilledExceptResurrection(t *testing.T) {
	det, profiles := newTestDetector(t)
	agentID := "agent-killed"
	for i := 0; i < warmupCount; i++ {
		det.Analyze(agentID, "benign", []string{"read_report"}, true, businessCtx)
	}
	p, _ := profiles.Get(agentID)
	p.mu.Lock()
	p.Status = StatusKilled
	p.mu.Unlock()

	for i := 0; i < 5; i++ {
		det.Analyze(agentID, "benign", []string{"read_report"}, true, businessCtx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Status != StatusKilled {
		t.Fatalf("expected status to remain Killed absent resurrection, got %v", p.Status)
	}
}

func TestResurrectionPreservesCountersResetsHistory(t *testing.T) {
	dim := 2
	p := NewProfile("agent-res", dim)
	p.ViolationCount = 7
	p.TotalIntents = 20
	p.RiskHistory = []RiskPoint{{Score: 0.9}}
	p.Status = StatusKilled

	p.mu.Lock()
	p.resurrect(dim)
	p.mu.Unlock()

	if p.ResurrectionCount != 1 {
		t.Fatalf("expected resurrection_count 1, got %d", p.ResurrectionCount)
	}
	if p.ViolationCount != 7 {
		t.Fatalf("expected violation_count preserved at 7, got %d", p.ViolationCount)
	}
	if len(p.RiskHistory) != 0 {
		t.Fatalf("expected risk_history cleared, got %d entries", len(p.RiskHistory))
	}
	if p.Status != StatusResurrected {
		t.Fatalf("expected status Resurrected, got %v", p.Status)
	}
}
