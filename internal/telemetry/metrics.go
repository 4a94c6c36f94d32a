// Package telemetry exposes dbstudio's instrumentation: prometheus
// collectors and an opt-in local diagnostics HTTP server.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all dbstudio collectors on a private prometheus registry.
// It satisfies registry.Metrics and uploader.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	fetchesTotal  *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	uploadsTotal  *prometheus.CounterVec
	databases     prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		fetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbstudio_detail_fetches_total",
			Help: "Detail fetches against the backend, labeled by status (success, error).",
		}, []string{"status"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dbstudio_detail_fetch_duration_seconds",
			Help:    "Detail fetch round-trip duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbstudio_uploads_total",
			Help: "Upload round-trips, labeled by status (success, error).",
		}, []string{"status"}),
		databases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dbstudio_databases",
			Help: "Databases currently held in the registry.",
		}),
	}

	reg.MustRegister(m.fetchesTotal, m.fetchDuration, m.uploadsTotal, m.databases)
	return m
}

// ObserveFetch records one detail fetch. Implements registry.Metrics.
func (m *Metrics) ObserveFetch(status string, dur time.Duration) {
	m.fetchesTotal.WithLabelValues(status).Inc()
	m.fetchDuration.Observe(dur.Seconds())
}

// SetDatabaseCount records the registry size. Implements registry.Metrics.
func (m *Metrics) SetDatabaseCount(n int) {
	m.databases.Set(float64(n))
}

// ObserveUpload records one upload round-trip. Implements uploader.Metrics.
func (m *Metrics) ObserveUpload(status string) {
	m.uploadsTotal.WithLabelValues(status).Inc()
}

// Registry returns the underlying prometheus registry for the /metrics
// handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
