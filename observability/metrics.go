package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pipelineMetricsOnce sync.Once
	pipelineRegistry    *PipelineMetrics
)

// PipelineMetrics wraps the Prometheus collectors tracking pipeline health:
// stage durations, submission gate decisions, and the kill-switch state.
type PipelineMetrics struct {
	stageLatency     *prometheus.HistogramVec
	stageErrors      *prometheus.CounterVec
	gateDenials      *prometheus.CounterVec
	submissions      *prometheus.CounterVec
	killSwitch       prometheus.Gauge
	riskScore        *prometheus.HistogramVec
	strategySelected *prometheus.CounterVec
}

// Pipeline returns the lazily-initialised metrics registry for the pipeline.
func Pipeline() *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineRegistry = &PipelineMetrics{
			stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "liminal",
				Subsystem: "pipeline",
				Name:      "stage_latency_seconds",
				Help:      "Latency distribution for pipeline stage transitions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"stage"}),
			stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "liminal",
				Subsystem: "pipeline",
				Name:      "stage_errors_total",
				Help:      "Count of pipeline stage failures segmented by stage and reason.",
			}, []string{"stage", "reason"}),
			gateDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "liminal",
				Subsystem: "gate",
				Name:      "denials_total",
				Help:      "Count of submission gate denials segmented by invariant id.",
			}, []string{"invariant"}),
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "liminal",
				Subsystem: "gate",
				Name:      "submissions_total",
				Help:      "Count of submission attempts segmented by outcome.",
			}, []string{"outcome"}),
			killSwitch: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "liminal",
				Subsystem: "gate",
				Name:      "kill_switch_engaged",
				Help:      "Indicates whether the submission kill-switch is engaged (1) or not (0).",
			}),
			riskScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "liminal",
				Subsystem: "risk",
				Name:      "score",
				Help:      "Distribution of computed risk scores (0-100).",
				Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			}, []string{"level"}),
			strategySelected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "liminal",
				Subsystem: "strategy",
				Name:      "selected_total",
				Help:      "Count of privacy strategy selections segmented by strategy.",
			}, []string{"strategy"}),
		}
		prometheus.MustRegister(
			pipelineRegistry.stageLatency,
			pipelineRegistry.stageErrors,
			pipelineRegistry.gateDenials,
			pipelineRegistry.submissions,
			pipelineRegistry.killSwitch,
			pipelineRegistry.riskScore,
			pipelineRegistry.strategySelected,
		)
	})
	return pipelineRegistry
}

// ObserveStage records the duration of a completed pipeline stage.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(labelOrUnknown(stage)).Observe(d.Seconds())
}

// RecordStageError increments the stage error counter for the supplied reason.
func (m *PipelineMetrics) RecordStageError(stage, reason string) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(labelOrUnknown(stage), labelOrUnknown(reason)).Inc()
}

// RecordGateDenial increments the denial counter for the supplied invariant id.
func (m *PipelineMetrics) RecordGateDenial(invariantID string) {
	if m == nil {
		return
	}
	m.gateDenials.WithLabelValues(labelOrUnknown(invariantID)).Inc()
}

// RecordSubmission increments the submission outcome counter.
func (m *PipelineMetrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(labelOrUnknown(outcome)).Inc()
}

// SetKillSwitch toggles the kill_switch_engaged gauge.
func (m *PipelineMetrics) SetKillSwitch(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.killSwitch.Set(1)
		return
	}
	m.killSwitch.Set(0)
}

// ObserveRiskScore records a computed risk score against its level bucket.
func (m *PipelineMetrics) ObserveRiskScore(level string, score float64) {
	if m == nil {
		return
	}
	m.riskScore.WithLabelValues(labelOrUnknown(level)).Observe(score)
}

// RecordStrategySelected increments the selection counter for the chosen strategy.
func (m *PipelineMetrics) RecordStrategySelected(strategy string) {
	if m == nil {
		return
	}
	m.strategySelected.WithLabelValues(labelOrUnknown(strategy)).Inc()
}

func labelOrUnknown(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "unknown"
	}
	return v
}
