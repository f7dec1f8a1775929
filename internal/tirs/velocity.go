package tirs

import (
	"sync"
	"time"
)

// VelocityConfig tunes the per-agent rate-anomaly tracker. Defaults are
// grounded on the reference implementation's temporal.py constants.
type VelocityConfig struct {
	WindowSeconds           int
	BaselineActionsPerMinute float64
	SpikeThresholdRatio     float64
	SustainedThresholdRatio float64
	EMAAlpha                float64
}

// DefaultVelocityConfig matches original_source/tirs/drift/temporal.py.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		WindowSeconds:            300,
		BaselineActionsPerMinute: 2.0,
		SpikeThresholdRatio:      3.0,
		SustainedThresholdRatio:  2.0,
		EMAAlpha:                 0.1,
	}
}

// VelocityTracker maintains a pruned timestamp queue per agent and derives
// an anomaly score from the current rate relative to an exponentially
// updated baseline.
type VelocityTracker struct {
	mu        sync.Mutex
	cfg       VelocityConfig
	events    map[string][]time.Time
	baselines map[string]float64
}

// NewVelocityTracker constructs a tracker using cfg, falling back to
// DefaultVelocityConfig for zero values.
func NewVelocityTracker(cfg VelocityConfig) *VelocityTracker {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 300
	}
	if cfg.BaselineActionsPerMinute <= 0 {
		cfg.BaselineActionsPerMinute = 2.0
	}
	if cfg.SpikeThresholdRatio <= 0 {
		cfg.SpikeThresholdRatio = 3.0
	}
	if cfg.SustainedThresholdRatio <= 0 {
		cfg.SustainedThresholdRatio = 2.0
	}
	if cfg.EMAAlpha <= 0 {
		cfg.EMAAlpha = 0.1
	}
	return &VelocityTracker{
		cfg:       cfg,
		events:    make(map[string][]time.Time),
		baselines: make(map[string]float64),
	}
}

// Record registers one action at `at` for agentID and returns the anomaly
// score in [0,1]: 0 at ratio <= 1, scaling linearly to 1 at ratio >= 3. The
// baseline is updated after computing the ratio so a single spike cannot
// absorb itself.
func (v *VelocityTracker) Record(agentID string, at time.Time) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	window := time.Duration(v.cfg.WindowSeconds) * time.Second
	cutoff := at.Add(-window)

	events := v.events[agentID]
	events = append(events, at)
	pruned := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	v.events[agentID] = pruned

	windowMinutes := window.Minutes()
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	currentRate := float64(len(pruned)) / windowMinutes

	baseline, ok := v.baselines[agentID]
	if !ok {
		baseline = v.cfg.BaselineActionsPerMinute
	}
	if baseline <= 0 {
		baseline = v.cfg.BaselineActionsPerMinute
	}

	ratio := currentRate / baseline
	anomaly := anomalyFromRatio(ratio, v.cfg.SpikeThresholdRatio)

	// Update the EMA baseline AFTER reading the ratio.
	v.baselines[agentID] = (1-v.cfg.EMAAlpha)*baseline + v.cfg.EMAAlpha*currentRate

	return anomaly
}

// anomalyFromRatio scales linearly from 0 at ratio<=1 to 1 at ratio>=spike.
func anomalyFromRatio(ratio, spike float64) float64 {
	if ratio <= 1 {
		return 0
	}
	if spike <= 1 {
		spike = 3
	}
	score := (ratio - 1) / (spike - 1)
	return clamp01(score)
}

// Reset clears tracking state for an agent (used on resurrection).
func (v *VelocityTracker) Reset(agentID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.events, agentID)
	delete(v.baselines, agentID)
}
