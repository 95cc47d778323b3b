package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// PipelineMetrics observes the answer pipeline. It satisfies ports.QueryObserver.
type PipelineMetrics struct {
	service string

	outcomesTotal       *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	candidates          *prometheus.HistogramVec
	rerankFallbackTotal *prometheus.CounterVec
	figureFailuresTotal *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	outcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "outcomes_total",
			Help:      "Answer requests by retrieval strategy and gate reason.",
		},
		[]string{"service", "strategy", "gate_reason"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "stage", "status"},
	)
	candidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "retrieved_candidates",
			Help:      "Distribution of retrieved candidates per request.",
			Buckets:   []float64{0, 1, 3, 6, 10, 20, 40, 60},
		},
		[]string{"service"},
	)
	rerankFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "rerank_fallback_total",
			Help:      "Rerank fallbacks to retrieval order by reason.",
		},
		[]string{"service", "reason"},
	)
	figureFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "figure_lookup_failures_total",
			Help:      "Figure lookups that failed and produced no thumbnails.",
		},
		[]string{"service"},
	)

	registerer.MustRegister(outcomesTotal, stageDuration, candidates, rerankFallbackTotal, figureFailuresTotal)

	return &PipelineMetrics{
		service:             service,
		outcomesTotal:       outcomesTotal,
		stageDuration:       stageDuration,
		candidates:          candidates,
		rerankFallbackTotal: rerankFallbackTotal,
		figureFailuresTotal: figureFailuresTotal,
	}
}

func (m *PipelineMetrics) ObserveStage(stage string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.stageDuration.WithLabelValues(m.service, stage, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveOutcome(strategy domain.Strategy, gateReason string, candidateCount int) {
	if gateReason == "" {
		gateReason = "answered"
		if strategy == domain.StrategyError {
			gateReason = "failed"
		}
	}
	m.outcomesTotal.WithLabelValues(m.service, string(strategy), gateReason).Inc()
	if strategy != domain.StrategyError {
		m.candidates.WithLabelValues(m.service).Observe(float64(candidateCount))
	}
}

func (m *PipelineMetrics) ObserveRerankFallback(reason string) {
	m.rerankFallbackTotal.WithLabelValues(m.service, reason).Inc()
}

func (m *PipelineMetrics) ObserveFigureLookupFailure(string) {
	m.figureFailuresTotal.WithLabelValues(m.service).Inc()
}
