// Package metrics collects Prometheus metrics for HTTP traffic and catalog
// events, and serves them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements service.EventRecorder and middleware.RequestRecorder.
type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	events   *prometheus.CounterVec
	denied   *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
// Registering twice on the same registry panics, so tests use a fresh
// prometheus.NewRegistry().
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingpost_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradingpost_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingpost_events_total",
			Help: "Successful catalog and session events.",
		}, []string{"event"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingpost_denied_total",
			Help: "Requests refused by the ownership rules, by operation.",
		}, []string{"operation"}),
	}

	reg.MustRegister(c.requests, c.latency, c.events, c.denied)
	return c
}

// RecordRequest counts one finished HTTP request. route is the chi pattern
// ("/items/{id}"), never the raw path, so label cardinality stays bounded.
func (c *Collector) RecordRequest(method, route string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(route).Observe(d.Seconds())
}

func (c *Collector) RecordEvent(event string) {
	c.events.WithLabelValues(event).Inc()
}

func (c *Collector) RecordDenied(operation string) {
	c.denied.WithLabelValues(operation).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
