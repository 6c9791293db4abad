// Package metrics holds the Prometheus collectors for the drip engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	DeliveriesSent     prometheus.Counter
	DeliveriesFailed   prometheus.Counter
	DeliveriesOrphaned prometheus.Counter
	QueueDepth         prometheus.Gauge
	OptInsStarted      prometheus.Counter
	OptInsConfirmed    *prometheus.CounterVec
	Enrollments        *prometheus.CounterVec
}

// New builds collectors on a private registry so tests can create many.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		DeliveriesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drip",
			Name:      "deliveries_sent_total",
			Help:      "Lesson emails accepted by the provider.",
		}),
		DeliveriesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drip",
			Name:      "deliveries_failed_total",
			Help:      "Lesson sends that failed and were re-armed.",
		}),
		DeliveriesOrphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drip",
			Name:      "deliveries_orphaned_total",
			Help:      "Queue entries removed because their record was missing.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drip",
			Name:      "queue_depth",
			Help:      "Queue size after the last processing pass.",
		}),
		OptInsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drip",
			Name:      "optins_started_total",
			Help:      "Confirmation emails sent.",
		}),
		OptInsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drip",
			Name:      "optins_confirmed_total",
			Help:      "Confirmation attempts by outcome.",
		}, []string{"outcome"}),
		Enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drip",
			Name:      "enrollments_total",
			Help:      "Enrollment calls by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.DeliveriesSent,
		m.DeliveriesFailed,
		m.DeliveriesOrphaned,
		m.QueueDepth,
		m.OptInsStarted,
		m.OptInsConfirmed,
		m.Enrollments,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
