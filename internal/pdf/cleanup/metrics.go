package cleanup

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type CleanupMetrics struct {
	runsTotal   *prometheus.CounterVec
	rowsDeleted prometheus.Counter
	duration    prometheus.Histogram
	logger      *zap.Logger
}

func NewCleanupMetrics(namespace string, logger *zap.Logger) *CleanupMetrics {
	return NewCleanupMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

func NewCleanupMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *CleanupMetrics {
	cm := &CleanupMetrics{
		logger: logger,
	}

	cm.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Total retention runs by status",
		},
		[]string{"status"},
	)

	cm.rowsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "rows_deleted_total",
			Help:      "Total cache rows deleted by retention",
		},
	)

	cm.duration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "run_duration_seconds",
			Help:      "Duration of retention runs",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	registerer.MustRegister(
		cm.runsTotal,
		cm.rowsDeleted,
		cm.duration,
	)

	return cm
}

func (cm *CleanupMetrics) RecordRun(status string) {
	cm.runsTotal.WithLabelValues(status).Inc()
}

func (cm *CleanupMetrics) RecordRowsDeleted(count int64) {
	cm.rowsDeleted.Add(float64(count))
}

func (cm *CleanupMetrics) RecordDuration(seconds float64) {
	cm.duration.Observe(seconds)
}
