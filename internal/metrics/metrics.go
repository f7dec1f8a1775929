// Package metrics exposes the Prometheus instrumentation for TIRS,
// Compliance, and the Orchestrator, grounded on the pack's promauto-based
// metrics registration idiom.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the runtime registers.
type Metrics struct {
	// TIRS
	RiskScore        *prometheus.HistogramVec
	IntentsTotal     *prometheus.CounterVec
	StatusTransition *prometheus.CounterVec
	SnapshotsTotal   *prometheus.CounterVec

	// Compliance
	PolicyEvaluations *prometheus.CounterVec
	PolicyVerdict     *prometheus.CounterVec
	RiskDeltaTotal    *prometheus.CounterVec

	// Orchestrator
	RouteDuration   *prometheus.HistogramVec
	HandoffsTotal   *prometheus.CounterVec
	WorkflowRuns    *prometheus.CounterVec
	WorkflowStepDur *prometheus.HistogramVec
}

// New creates and registers every collector against the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates and registers every collector against reg,
// letting callers (and tests) isolate registration with their own
// prometheus.Registry instead of colliding on the global default.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RiskScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_tirs_risk_score",
				Help:    "Distribution of TIRS drift risk scores per agent",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"agent_id"},
		),
		IntentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_tirs_intents_total",
				Help: "Total number of intents analyzed by TIRS",
			},
			[]string{"agent_id", "risk_level"},
		),
		StatusTransition: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_tirs_status_transitions_total",
				Help: "Total agent status transitions (active, throttled, paused, killed, resurrected)",
			},
			[]string{"agent_id", "from_status", "to_status"},
		),
		SnapshotsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_tirs_snapshots_total",
				Help: "Total forensic snapshots created",
			},
			[]string{"agent_id", "trigger"},
		),
		PolicyEvaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_compliance_evaluations_total",
				Help: "Total compliance policy evaluations",
			},
			[]string{"policy_name", "category"},
		),
		PolicyVerdict: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_compliance_verdicts_total",
				Help: "Compliance verdicts produced per policy",
			},
			[]string{"policy_name", "verdict"},
		),
		RiskDeltaTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_compliance_risk_delta_total",
				Help: "Cumulative risk delta contributed by compliance evaluations",
			},
			[]string{"category"},
		),
		RouteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_orchestrator_route_duration_seconds",
				Help:    "Duration of capability routing decisions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"capability"},
		),
		HandoffsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_orchestrator_handoffs_total",
				Help: "Total agent-to-agent handoffs verified",
			},
			[]string{"from_agent", "to_agent", "allowed"},
		),
		WorkflowRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_orchestrator_workflow_runs_total",
				Help: "Total workflow executions",
			},
			[]string{"workflow_id", "success"},
		),
		WorkflowStepDur: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_orchestrator_workflow_step_duration_seconds",
				Help:    "Duration of individual workflow steps",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
	}
}

// RecordIntent records one TIRS analysis outcome.
func (m *Metrics) RecordIntent(agentID, riskLevel string, score float64) {
	m.IntentsTotal.WithLabelValues(agentID, riskLevel).Inc()
	m.RiskScore.WithLabelValues(agentID).Observe(score)
}

// RecordStatusTransition records an agent status change.
func (m *Metrics) RecordStatusTransition(agentID, from, to string) {
	if from == to {
		return
	}
	m.StatusTransition.WithLabelValues(agentID, from, to).Inc()
}

// RecordSnapshot records a forensic snapshot creation.
func (m *Metrics) RecordSnapshot(agentID, trigger string) {
	m.SnapshotsTotal.WithLabelValues(agentID, trigger).Inc()
}

// RecordPolicyResult records one policy's evaluation and verdict.
func (m *Metrics) RecordPolicyResult(policyName, category, verdict string, riskDelta float64) {
	m.PolicyEvaluations.WithLabelValues(policyName, category).Inc()
	m.PolicyVerdict.WithLabelValues(policyName, verdict).Inc()
	if riskDelta != 0 {
		m.RiskDeltaTotal.WithLabelValues(category).Add(riskDelta)
	}
}

// RecordHandoff records one handoff verification outcome.
func (m *Metrics) RecordHandoff(from, to string, allowed bool) {
	m.HandoffsTotal.WithLabelValues(from, to, boolLabel(allowed)).Inc()
}

// RecordWorkflowRun records a workflow's terminal outcome.
func (m *Metrics) RecordWorkflowRun(workflowID string, success bool) {
	m.WorkflowRuns.WithLabelValues(workflowID, boolLabel(success)).Inc()
}

// RecordWorkflowStep records one step's execution duration.
func (m *Metrics) RecordWorkflowStep(action string, seconds float64) {
	m.WorkflowStepDur.WithLabelValues(action).Observe(seconds)
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
