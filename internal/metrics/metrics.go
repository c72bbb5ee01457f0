// Package metrics exposes Prometheus collectors for the request lifecycle
// and the HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/finearr/finearr/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finearr"

// Metrics holds the service collectors.
type Metrics struct {
	transitions      *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_transitions_total",
			Help:      "Request lifecycle transitions by kind and category.",
		}, []string{"transition", "category"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Downloader hand-offs by category and outcome.",
		}, []string{"category", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of downloader hand-offs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"category"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.transitions,
		m.dispatches,
		m.dispatchDuration,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// ObserveTransition counts a ledger transition.
func (m *Metrics) ObserveTransition(transition string, category models.Category) {
	m.transitions.WithLabelValues(transition, string(category)).Inc()
}

// ObserveDispatch counts a downloader hand-off and records its duration.
func (m *Metrics) ObserveDispatch(category models.Category, outcome string, elapsed time.Duration) {
	m.dispatches.WithLabelValues(string(category), outcome).Inc()
	m.dispatchDuration.WithLabelValues(string(category)).Observe(elapsed.Seconds())
}

// ObserveHTTP records a served request.
func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
