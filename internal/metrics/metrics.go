// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the app's counters and histograms. It implements
// catalog.Observer for gateway instrumentation.
type Collector struct {
	httpRequests    *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	ratings         prometheus.Counter
	registry        *prometheus.Registry
}

func NewCollector() *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextplay_http_requests_total",
			Help: "HTTP requests served, by route and status code",
		}, []string{"route", "status_code"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextplay_gateway_requests_total",
			Help: "Catalog gateway requests, by operation and status code",
		}, []string{"op", "status_code"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nextplay_gateway_latency_seconds",
			Help:    "Catalog gateway request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		ratings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nextplay_ratings_submitted_total",
			Help: "Ratings accepted by the remote service",
		}),
		registry: prometheus.NewRegistry(),
	}

	c.registry.MustRegister(
		c.httpRequests,
		c.gatewayRequests,
		c.gatewayLatency,
		c.ratings,
	)

	return c
}

// RecordHTTPRequest counts one served request.
func (c *Collector) RecordHTTPRequest(route string, status int) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveGatewayRequest records one gateway call. Status 0 means the
// request never produced a response.
func (c *Collector) ObserveGatewayRequest(op string, status int, elapsed time.Duration) {
	c.gatewayRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.gatewayLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordRatingSubmitted counts one accepted rating.
func (c *Collector) RecordRatingSubmitted() {
	c.ratings.Inc()
}

// Handler serves the scrape endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
