package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// Ingest outcome labels.
const (
	ingestSucceeded = "success"
	ingestRejected  = "rejected"
	ingestRetryable = "temporary"
	ingestFailed    = "error"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	ingestInFlight prometheus.Gauge
	chunksWritten  *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "manual_ingest_total",
			Help:      "Manual ingest events handled, by outcome (success, rejected, temporary, error).",
		},
		[]string{"service", "status"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "manual_ingest_duration_seconds",
			Help:      "Extract, chunk, embed and store time per manual.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "manual_ingest_in_flight",
			Help:        "Manuals currently being ingested.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	chunksWritten := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "manual_chunks",
			Help:      "Chunks written per successfully ingested manual.",
			Buckets:   prometheus.ExponentialBuckets(8, 2, 10),
		},
		[]string{"service"},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, chunksWritten)

	return &WorkerMetrics{
		registry:       registry,
		ingestTotal:    ingestTotal,
		ingestDuration: ingestDuration,
		ingestInFlight: ingestInFlight,
		chunksWritten:  chunksWritten,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartManual() {
	m.ingestInFlight.Inc()
}

func (m *WorkerMetrics) FinishManual(service string, duration time.Duration, chunks int, err error) {
	m.ingestInFlight.Dec()

	status := ingestStatus(err)
	m.ingestTotal.WithLabelValues(service, status).Inc()
	m.ingestDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if status == ingestSucceeded {
		m.chunksWritten.WithLabelValues(service).Observe(float64(chunks))
	}
}

// ingestStatus separates manuals that will never ingest (bad source, zero
// chunks) from outages worth redelivering.
func ingestStatus(err error) string {
	switch {
	case err == nil:
		return ingestSucceeded
	case domain.IsKind(err, domain.ErrInvalidInput):
		return ingestRejected
	case domain.IsKind(err, domain.ErrTemporary):
		return ingestRetryable
	default:
		return ingestFailed
	}
}
