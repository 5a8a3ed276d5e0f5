package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus metrics on its own registry so
// tests can create as many as they like. A nil *Collector is a valid no-op.
type Collector struct {
	registry *prometheus.Registry

	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	CacheRequests     *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "category_operations_total",
				Help:      "Category tree operations by name and result.",
			},
			[]string{"operation", "result"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "category_operation_duration_seconds",
				Help:      "Duration of category tree operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "category_cache_requests_total",
				Help:      "Cache lookups by key kind and outcome (hit, miss, error).",
			},
			[]string{"kind", "outcome"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "category_events_published_total",
				Help:      "Tree change events by type and result.",
			},
			[]string{"event_type", "result"},
		),
	}

	registry.MustRegister(
		c.Operations,
		c.OperationDuration,
		c.CacheRequests,
		c.EventsPublished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) ObserveOperation(operation string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.Operations.WithLabelValues(operation, result(err)).Inc()
	c.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (c *Collector) CacheOutcome(kind, outcome string) {
	if c == nil {
		return
	}
	c.CacheRequests.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) EventPublished(eventType string, err error) {
	if c == nil {
		return
	}
	c.EventsPublished.WithLabelValues(eventType, result(err)).Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
