package tirs

import (
	"math"
	"time"
)

// DecayFunction selects the shape of temporal weighting applied to
// historical scalars.
type DecayFunction string

const (
	DecayExponential DecayFunction = "exponential"
	DecayLinear      DecayFunction = "linear"
	DecayStep        DecayFunction = "step"
	DecaySigmoid     DecayFunction = "sigmoid"
)

// DecayConfig configures a TemporalDecay instance. HalfLife is the duration
// over which a scalar's weight halves (exponential) or the window used to
// derive equivalent linear/step/sigmoid behavior.
type DecayConfig struct {
	Function DecayFunction
	HalfLife time.Duration
}

// DefaultDecayConfig matches the spec's default half-life of 30 minutes
// using exponential decay.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{Function: DecayExponential, HalfLife: 30 * time.Minute}
}

// TemporalDecay computes time-weighted aggregates over historical
// (timestamp, value) pairs.
type TemporalDecay struct {
	cfg DecayConfig
}

// NewTemporalDecay constructs a TemporalDecay with the given config,
// falling back to DefaultDecayConfig for zero values.
func NewTemporalDecay(cfg DecayConfig) *TemporalDecay {
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = 30 * time.Minute
	}
	if cfg.Function == "" {
		cfg.Function = DecayExponential
	}
	return &TemporalDecay{cfg: cfg}
}

// Weight returns the decay weight in [0,1] for an event that occurred `age`
// ago relative to `now`.
func (d *TemporalDecay) Weight(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	hl := d.cfg.HalfLife.Seconds()
	if hl <= 0 {
		hl = 1
	}
	t := age.Seconds() / hl // elapsed half-lives

	switch d.cfg.Function {
	case DecayLinear:
		w := 1 - 0.5*t
		return clamp01(w)
	case DecayStep:
		if t < 1 {
			return 1
		}
		if t < 2 {
			return 0.5
		}
		return 0
	case DecaySigmoid:
		// Centered at one half-life, steepness tuned so the curve crosses
		// 0.5 at t=1 and saturates within a couple of half-lives either way.
		k := 4.0
		w := 1 / (1 + math.Exp(k*(t-1)))
		return clamp01(w)
	default: // DecayExponential
		return clamp01(math.Pow(0.5, t))
	}
}

// WeightedAverage computes the decay-weighted mean of values measured at
// the given timestamps, relative to now.
func (d *TemporalDecay) WeightedAverage(now time.Time, points []RiskPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sumW, sumWV float64
	for _, p := range points {
		w := d.Weight(now.Sub(p.Timestamp))
		sumW += w
		sumWV += w * p.Score
	}
	if sumW == 0 {
		return 0
	}
	return sumWV / sumW
}

// Blend combines a fresh composite score with a decayed prior, per
// spec §4.2 step 5: current weighted alphaCurrent, decayed prior weighted
// (1-alphaCurrent).
func Blend(alphaCurrent, current, decayedPrior float64) float64 {
	return clamp01(alphaCurrent*current + (1-alphaCurrent)*decayedPrior)
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
