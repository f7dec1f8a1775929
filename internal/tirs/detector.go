package tirs

import (
	"fmt"
	"math"
	"time"

	"github.com/armoriq/sentinel/internal/embedding"
)

// DetectorConfig tunes the Drift Detector. Weights must sum to 1; Analyze's
// constructor validates this once at startup rather than per call.
type DetectorConfig struct {
	Weights           map[SignalName]float64
	WarmupCount       int
	ViolationWindow   int // M in spec §4.2
	BlendAlphaCurrent float64
	Decay             DecayConfig
	ThresholdBase     ThresholdBase
}

// DefaultDetectorConfig returns the spec-mandated defaults.
func DefaultDetectorConfig() DetectorConfig {
	weights := make(map[SignalName]float64, len(DefaultWeights))
	for k, v := range DefaultWeights {
		weights[k] = v
	}
	return DetectorConfig{
		Weights:           weights,
		WarmupCount:       warmupCount,
		ViolationWindow:   20,
		BlendAlphaCurrent: 0.6,
		Decay:             DefaultDecayConfig(),
		ThresholdBase:     DefaultThresholdBase(),
	}
}

// Validate checks that the weight vector sums to 1 within tolerance.
func (c DetectorConfig) Validate() error {
	var sum float64
	for _, w := range c.Weights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("tirs: signal weights must sum to 1, got %v", sum)
	}
	return nil
}

// Detector computes the five-signal composite drift score for an agent's
// intent and updates its profile's enforcement status.
type Detector struct {
	cfg        DetectorConfig
	oracle     embedding.Oracle
	velocity   *VelocityTracker
	decay      *TemporalDecay
	thresholds *ContextualThresholds
	profiles   *ProfileStore
}

// NewDetector wires together the detector's dependencies. velocity and
// thresholds may be shared with the TIRS facade for administrative queries.
func NewDetector(cfg DetectorConfig, oracle embedding.Oracle, profiles *ProfileStore, velocity *VelocityTracker, thresholds *ContextualThresholds) (*Detector, error) {
	if cfg.Weights == nil {
		cfg = DefaultDetectorConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.WarmupCount <= 0 {
		cfg.WarmupCount = warmupCount
	}
	if cfg.ViolationWindow <= 0 {
		cfg.ViolationWindow = 20
	}
	if cfg.BlendAlphaCurrent <= 0 {
		cfg.BlendAlphaCurrent = 0.6
	}
	return &Detector{
		cfg:        cfg,
		oracle:     oracle,
		velocity:   velocity,
		decay:      NewTemporalDecay(cfg.Decay),
		thresholds: thresholds,
		profiles:   profiles,
	}, nil
}

// AnalyzeResult bundles the Drift Result with the information the TIRS
// facade needs to decide whether to emit a forensic snapshot.
type AnalyzeResult struct {
	Drift            DriftResult
	SnapshotTriggered bool
	Trigger          string
}

// Analyze scores one intent for agentID and advances its profile's status
// per the §4.2 state machine. All profile mutation is committed atomically
// at the end of the call (all-or-nothing, no partial writes).
func (d *Detector) Analyze(agentID, intentText string, capabilities []string, wasAllowed bool, bctx BusinessContext) AnalyzeResult {
	profile := d.profiles.GetOrCreate(agentID)
	vec := d.oracle.Embed(intentText)
	ts := now()

	profile.mu.Lock()
	defer profile.mu.Unlock()

	if !profile.WarmupComplete {
		return d.analyzeWarmup(profile, vec, intentText, capabilities, wasAllowed, ts)
	}
	return d.analyzeSignals(profile, vec, intentText, capabilities, wasAllowed, bctx, ts)
}

// analyzeWarmup folds vec into the baseline centroid and emits a Nominal
// result with all signals zero, per spec §4.2 step 2. Caller holds the lock.
func (d *Detector) analyzeWarmup(profile *Profile, vec embedding.Vector, intentText string, capabilities []string, wasAllowed bool, ts time.Time) AnalyzeResult {
	profile.WarmupSamples = append(profile.WarmupSamples, vec)
	profile.BaselineCentroid = embedding.Mean(profile.WarmupSamples, d.oracle.Dimension())
	if len(profile.WarmupSamples) >= d.cfg.WarmupCount {
		profile.WarmupComplete = true
	}

	profile.TotalIntents++
	if !wasAllowed {
		profile.ViolationCount++
	}
	for _, c := range capabilities {
		profile.CapabilityCounts[c]++
	}
	profile.appendIntent(IntentEvent{
		AgentID:       profile.AgentID,
		Timestamp:     ts,
		IntentText:    intentText,
		CapabilitySet: capabilities,
		Allowed:       wasAllowed,
		Embedding:     vec,
	})
	profile.appendRiskPoint(RiskPoint{Timestamp: ts, Score: 0})
	profile.CurrentRiskScore = 0

	signals := zeroSignals(d.cfg.Weights)
	return AnalyzeResult{Drift: DriftResult{
		AgentID:          profile.AgentID,
		Timestamp:        ts,
		RiskScore:        0,
		RiskLevel:        RiskNominal,
		Signals:          signals,
		AgentStatusAfter: profile.Status,
		Warmup:           true,
	}}
}

func zeroSignals(weights map[SignalName]float64) []DriftSignal {
	names := []SignalName{SignalEmbeddingDrift, SignalCapabilitySurprisal, SignalViolationRate, SignalVelocityAnomaly, SignalContextDeviation}
	out := make([]DriftSignal, 0, len(names))
	for _, n := range names {
		out = append(out, DriftSignal{Name: n, Raw: 0, Weight: weights[n], Contribution: 0, Explanation: "warmup: baseline still forming"})
	}
	return out
}

// analyzeSignals computes the full five-signal composite and advances the
// status machine. Caller holds the lock.
func (d *Detector) analyzeSignals(profile *Profile, vec embedding.Vector, intentText string, capabilities []string, wasAllowed bool, bctx BusinessContext, ts time.Time) AnalyzeResult {
	primaryCap := ""
	if len(capabilities) > 0 {
		primaryCap = capabilities[0]
	}

	rawDist := d.oracle.Distance(vec, profile.BaselineCentroid)
	smoothedDist := profile.appendEmbeddingDistance(rawDist)

	capProb := profile.capabilityProbability(primaryCap)
	denom := math.Log2(float64(len(profile.CapabilityCounts)) + 1)
	if denom <= 0 {
		denom = 1
	}
	surprisal := clamp01(-math.Log2(capProb) / denom)

	violationRate := profile.recentViolationRate(d.cfg.ViolationWindow)

	velocityAnomaly := 0.0
	if d.velocity != nil {
		velocityAnomaly = d.velocity.Record(profile.AgentID, ts)
	}

	contextMultiplier := 1.0
	if d.thresholds != nil {
		contextMultiplier = d.thresholds.Multiplier(bctx)
	}
	contextDeviation := clamp01(1 - contextMultiplier)

	raw := map[SignalName]float64{
		SignalEmbeddingDrift:      smoothedDist,
		SignalCapabilitySurprisal: surprisal,
		SignalViolationRate:       violationRate,
		SignalVelocityAnomaly:     velocityAnomaly,
		SignalContextDeviation:    contextDeviation,
	}

	var riskScore float64
	signals := make([]DriftSignal, 0, len(raw))
	for _, name := range []SignalName{SignalEmbeddingDrift, SignalCapabilitySurprisal, SignalViolationRate, SignalVelocityAnomaly, SignalContextDeviation} {
		w := d.cfg.Weights[name]
		r := raw[name]
		contribution := w * r
		riskScore += contribution
		signals = append(signals, DriftSignal{
			Name:         name,
			Raw:          r,
			Weight:       w,
			Contribution: contribution,
			Explanation:  signalExplanation(name, r),
		})
	}
	riskScore = clamp01(riskScore)

	decayedPrior := d.decay.WeightedAverage(ts, profile.RiskHistory)
	smoothed := Blend(d.cfg.BlendAlphaCurrent, riskScore, decayedPrior)

	var riskLevel RiskLevel
	th := DefaultThresholdBase()
	if d.thresholds != nil {
		riskLevel = d.thresholds.Classify(smoothed, bctx)
		th = d.thresholds.Adjusted(bctx)
	} else {
		riskLevel = classifyAgainst(smoothed, d.cfg.ThresholdBase)
		th = d.cfg.ThresholdBase
	}

	bucket := bucketFromScore(smoothed, th)
	nextStatus, triggered, trigger := nextStatusFromScore(profile.Status, bucket)
	profile.Status = nextStatus
	if triggered {
		profile.LastTrigger = trigger
	}

	profile.TotalIntents++
	if !wasAllowed {
		profile.ViolationCount++
	}
	for _, c := range capabilities {
		profile.CapabilityCounts[c]++
	}
	profile.appendIntent(IntentEvent{
		AgentID:       profile.AgentID,
		Timestamp:     ts,
		IntentText:    intentText,
		CapabilitySet: capabilities,
		Allowed:       wasAllowed,
		Embedding:     vec,
	})
	profile.appendRiskPoint(RiskPoint{Timestamp: ts, Score: smoothed})
	profile.CurrentRiskScore = smoothed

	return AnalyzeResult{
		Drift: DriftResult{
			AgentID:          profile.AgentID,
			Timestamp:        ts,
			RiskScore:        smoothed,
			RiskLevel:        riskLevel,
			Signals:          signals,
			AgentStatusAfter: nextStatus,
		},
		SnapshotTriggered: triggered,
		Trigger:           trigger,
	}
}

func signalExplanation(name SignalName, raw float64) string {
	switch name {
	case SignalEmbeddingDrift:
		return fmt.Sprintf("intent embedding is %.2f from the agent's baseline centroid", raw)
	case SignalCapabilitySurprisal:
		return fmt.Sprintf("capability used has a Laplace-smoothed surprisal of %.2f", raw)
	case SignalViolationRate:
		return fmt.Sprintf("%.0f%% of recent intents were policy violations", raw*100)
	case SignalVelocityAnomaly:
		return fmt.Sprintf("action rate is %.2f of the anomaly scale above baseline", raw)
	case SignalContextDeviation:
		return fmt.Sprintf("current business context deviates %.2f from nominal thresholds", raw)
	default:
		return ""
	}
}

func classifyAgainst(score float64, th ThresholdBase) RiskLevel {
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

// bucketFromScore maps a smoothed score to one of four state-machine event
// buckets: 0 = below warning, 1 = [warning,critical), 2 = [critical,terminal),
// 3 = >= terminal. Boundaries are inclusive on the upper side.
func bucketFromScore(score float64, th ThresholdBase) int {
	switch {
	case score >= th.Terminal:
		return 3
	case score >= th.Critical:
		return 2
	case score >= th.Warning:
		return 1
	default:
		return 0
	}
}

// nextStatusFromScore implements the §4.2 state machine's score-driven
// transitions (admin resume/kill/resurrect are handled separately by the
// TIRS facade). It returns the next status, whether a snapshot side-effect
// fires, and the trigger string to record when it does.
func nextStatusFromScore(current AgentStatus, bucket int) (next AgentStatus, snapshotTriggered bool, trigger string) {
	switch current {
	case StatusKilled:
		return StatusKilled, false, ""
	case StatusPaused:
		if bucket == 3 {
			return StatusKilled, true, "terminal_threshold_exceeded"
		}
		return StatusPaused, false, ""
	case StatusActive, StatusThrottled, StatusResurrected:
		switch bucket {
		case 0:
			return StatusActive, false, ""
		case 1:
			return StatusThrottled, false, ""
		case 2:
			return StatusPaused, true, "critical_threshold_exceeded"
		default:
			return StatusKilled, true, "terminal_threshold_exceeded"
		}
	default:
		return current, false, ""
	}
}
