package enricher

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type EnricherMetrics struct {
	runsTotal        *prometheus.CounterVec
	urlsTotal        *prometheus.CounterVec
	variantsRendered prometheus.Counter
	duration         prometheus.Histogram
	logger           *zap.Logger
}

func NewEnricherMetrics(namespace string, logger *zap.Logger) *EnricherMetrics {
	return NewEnricherMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

func NewEnricherMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *EnricherMetrics {
	em := &EnricherMetrics{
		logger: logger,
	}

	em.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enricher",
			Name:      "runs_total",
			Help:      "Total enrichment ticks by status",
		},
		[]string{"status"},
	)

	em.urlsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enricher",
			Name:      "urls_total",
			Help:      "URL groups processed by status",
		},
		[]string{"status"},
	)

	em.variantsRendered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enricher",
			Name:      "variants_rendered_total",
			Help:      "PDF variants rendered and stored by the batch worker",
		},
	)

	em.duration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enricher",
			Name:      "run_duration_seconds",
			Help:      "Duration of enrichment ticks",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
	)

	registerer.MustRegister(
		em.runsTotal,
		em.urlsTotal,
		em.variantsRendered,
		em.duration,
	)

	return em
}

func (em *EnricherMetrics) RecordRun(status string) {
	em.runsTotal.WithLabelValues(status).Inc()
}

func (em *EnricherMetrics) RecordURL(status string) {
	em.urlsTotal.WithLabelValues(status).Inc()
}

func (em *EnricherMetrics) RecordVariant() {
	em.variantsRendered.Inc()
}

func (em *EnricherMetrics) RecordDuration(seconds float64) {
	em.duration.Observe(seconds)
}
