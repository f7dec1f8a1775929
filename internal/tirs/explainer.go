package tirs

import (
	"fmt"
	"math"
	"sort"
)

// remediationFactor scales a signal's contribution into an expected-impact
// score, used to rank suggestions. Values are grounded on
// original_source/tirs/drift/explainer.py's per-signal factor table.
var remediationFactor = map[SignalName]float64{
	SignalEmbeddingDrift:      0.8,
	SignalCapabilitySurprisal: 0.9,
	SignalViolationRate:       0.95,
	SignalVelocityAnomaly:     0.7,
	SignalContextDeviation:    0.6,
}

var remediationText = map[SignalName]string{
	SignalEmbeddingDrift:      "review recent intents for a change in the agent's operating pattern; consider re-baselining if the change is sanctioned",
	SignalCapabilitySurprisal: "confirm the agent is authorized for this capability; restrict its capability set if not",
	SignalViolationRate:       "audit the agent's recent denied/escalated actions and address the root policy conflict",
	SignalVelocityAnomaly:     "investigate the cause of the action-rate spike; throttle or rate-limit if automated retries are looping",
	SignalContextDeviation:    "verify the request is expected for the current time window, role, and department",
}

// Counterfactual reports the composite score if one signal's contribution
// were removed entirely.
type Counterfactual struct {
	Signal        SignalName `json:"signal"`
	Contribution  float64    `json:"contribution"`
	ScoreIfRemoved float64   `json:"score_if_removed"`
}

// Remediation is one ranked suggestion for reducing an agent's risk score.
type Remediation struct {
	Signal        SignalName `json:"signal"`
	Suggestion    string     `json:"suggestion"`
	ExpectedImpact float64   `json:"expected_impact"`
}

// SimilarPattern is a built-in reference fingerprint matched against a
// Drift Result's signal vector.
type SimilarPattern struct {
	Name        string  `json:"name"`
	Malign      bool    `json:"malign"`
	Similarity  float64 `json:"similarity"`
	Description string  `json:"description"`
}

// patternFingerprint maps signal name to an expected raw value for one
// reference pattern.
type patternFingerprint struct {
	name        string
	malign      bool
	description string
	values      map[SignalName]float64
}

// knownPatterns mirrors original_source/tirs/drift/explainer.py's
// KNOWN_PATTERNS library: a small set of benign and malign signal
// fingerprints used for nearest-pattern matching. Each fingerprint lists
// only the handful of signals it cares about, not the full vector.
var knownPatterns = []patternFingerprint{
	{
		name:        "normal_business_hours",
		malign:      false,
		description: "standard business hour operations with typical capability usage",
		values: map[SignalName]float64{
			SignalEmbeddingDrift:      0.1,
			SignalCapabilitySurprisal: 0.15,
			SignalVelocityAnomaly:     0.1,
		},
	},
	{
		name:        "quarter_end_audit",
		malign:      false,
		description: "elevated activity during quarter-end financial close",
		values: map[SignalName]float64{
			SignalVelocityAnomaly:  0.4,
			SignalContextDeviation: 0.2,
		},
	},
	{
		name:        "bulk_data_export",
		malign:      true,
		description: "large-scale data export pattern, potentially suspicious",
		values: map[SignalName]float64{
			SignalCapabilitySurprisal: 0.6,
			SignalEmbeddingDrift:      0.5,
		},
	},
	{
		name:        "privilege_escalation_attempt",
		malign:      true,
		description: "attempting operations beyond normal scope",
		values: map[SignalName]float64{
			SignalCapabilitySurprisal: 0.8,
			SignalViolationRate:       0.5,
		},
	},
	{
		name:        "after_hours_maintenance",
		malign:      false,
		description: "legitimate after-hours maintenance activity",
		values: map[SignalName]float64{
			SignalContextDeviation: 0.4,
			SignalVelocityAnomaly:  0.2,
		},
	},
}

// Explanation is the rendered output of DriftExplainer.Explain.
type Explanation struct {
	PrimaryFactor   SignalName       `json:"primary_factor"`
	Counterfactuals []Counterfactual `json:"counterfactuals"`
	Remediations    []Remediation    `json:"remediations"`
	SimilarPatterns []SimilarPattern `json:"similar_patterns"`
	Summary         string           `json:"summary"`
}

// DriftExplainer renders a Drift Result into a human-consumable
// explanation. It is a pure function of its inputs: no shared state.
type DriftExplainer struct{}

// NewDriftExplainer constructs a stateless explainer.
func NewDriftExplainer() *DriftExplainer { return &DriftExplainer{} }

// Explain produces the full explanation for a Drift Result.
func (e *DriftExplainer) Explain(result DriftResult) Explanation {
	primary, hasPrimary := result.PrimarySignal()

	var counterfactuals []Counterfactual
	var remediations []Remediation
	for _, s := range result.Signals {
		if s.Contribution > 0.05 {
			counterfactuals = append(counterfactuals, Counterfactual{
				Signal:         s.Name,
				Contribution:   s.Contribution,
				ScoreIfRemoved: math.Max(0, result.RiskScore-s.Contribution),
			})
			remediations = append(remediations, Remediation{
				Signal:         s.Name,
				Suggestion:     remediationText[s.Name],
				ExpectedImpact: s.Contribution * remediationFactor[s.Name],
			})
		}
	}
	sort.Slice(remediations, func(i, j int) bool {
		return remediations[i].ExpectedImpact > remediations[j].ExpectedImpact
	})

	similar := similarPatterns(result.Signals)

	var primaryName SignalName
	if hasPrimary {
		primaryName = primary.Name
	}

	return Explanation{
		PrimaryFactor:   primaryName,
		Counterfactuals: counterfactuals,
		Remediations:    remediations,
		SimilarPatterns: similar,
		Summary:         summarize(result, primaryName, hasPrimary),
	}
}

func similarPatterns(signals []DriftSignal) []SimilarPattern {
	byName := make(map[SignalName]float64, len(signals))
	for _, s := range signals {
		byName[s.Name] = s.Raw
	}

	var out []SimilarPattern
	for _, pat := range knownPatterns {
		var sumDiff float64
		var n int
		for name, expected := range pat.values {
			if raw, ok := byName[name]; ok {
				sumDiff += math.Abs(raw - expected)
				n++
			}
		}
		if n == 0 {
			continue
		}
		meanDiff := sumDiff / float64(n)
		similarity := 1 - meanDiff
		if similarity > 0.5 {
			out = append(out, SimilarPattern{Name: pat.name, Malign: pat.malign, Similarity: similarity, Description: pat.description})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func summarize(result DriftResult, primary SignalName, hasPrimary bool) string {
	if result.Warmup {
		return "agent is still in its warmup period; no risk assessment yet."
	}
	if !hasPrimary || result.RiskScore == 0 {
		return fmt.Sprintf("risk level %s: no single signal dominates the composite score.", result.RiskLevel)
	}
	return fmt.Sprintf("risk level %s, driven primarily by %s (score %.2f).", result.RiskLevel, primary, result.RiskScore)
}
