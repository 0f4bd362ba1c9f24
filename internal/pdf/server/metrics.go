package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ServerMetrics tracks API request outcomes per endpoint.
type ServerMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewServerMetrics creates server metrics on the default registerer.
func NewServerMetrics(namespace string, logger *zap.Logger) *ServerMetrics {
	return NewServerMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewServerMetricsWithRegistry creates server metrics registered on the
// provided registerer.
func NewServerMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *ServerMetrics {
	m := &ServerMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "API requests by endpoint and outcome",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "request_duration_seconds",
				Help:      "API request duration by endpoint",
				Buckets:   []float64{0.005, 0.05, 0.5, 1, 5, 15, 30, 60, 90},
			},
			[]string{"endpoint"},
		),
	}

	for _, collector := range []prometheus.Collector{m.requestsTotal, m.requestDuration} {
		if err := registerer.Register(collector); err != nil {
			logger.Warn("Failed to register server metric", zap.Error(err))
		}
	}

	return m
}

// RecordRequest increments the request counter for an endpoint and outcome.
func (m *ServerMetrics) RecordRequest(endpoint, status string) {
	m.requestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordDuration observes one request duration in seconds.
func (m *ServerMetrics) RecordDuration(endpoint string, seconds float64) {
	m.requestDuration.WithLabelValues(endpoint).Observe(seconds)
}
