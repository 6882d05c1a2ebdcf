// Package telemetry exposes Prometheus metrics for the admission pipeline.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters published on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	AdmissionsTotal   *prometheus.CounterVec
	DenialsTotal      *prometheus.CounterVec
	UsageRecorded     prometheus.Counter
	UsageDropped      prometheus.Counter
	RollOversTotal    prometheus.Counter
	EventsPrunedTotal prometheus.Counter
}

// NewMetrics registers the counters on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		AdmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_admissions_total",
			Help: "Requests admitted to metered services, by service.",
		}, []string{"service"}),
		DenialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_denials_total",
			Help: "Requests denied admission, by reason code.",
		}, []string{"reason"}),
		UsageRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_usage_events_recorded_total",
			Help: "Usage events flushed to the store.",
		}),
		UsageDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_usage_events_dropped_total",
			Help: "Usage events dropped because the recorder buffer was full.",
		}),
		RollOversTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_period_rollovers_total",
			Help: "Subscription periods rolled over by the sweep.",
		}),
		EventsPrunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_usage_events_pruned_total",
			Help: "Usage events removed by the retention sweep.",
		}),
	}

	registry.MustRegister(
		m.AdmissionsTotal,
		m.DenialsTotal,
		m.UsageRecorded,
		m.UsageDropped,
		m.RollOversTotal,
		m.EventsPrunedTotal,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
