// Package metrics exposes Prometheus counters for the HTTP API and the
// authentication flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth operations and outcomes used as label values.
const (
	OpLogin        = "login"
	OpRegister     = "register"
	OpAuthenticate = "authenticate"

	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder is what the HTTP layer reports to.
type Recorder interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordAuth(operation, outcome string)
	RecordUpload(outcome string, size int64)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	auth        *prometheus.CounterVec
	uploads     *prometheus.CounterVec
	uploadBytes prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecomarket_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecomarket_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecomarket_auth_attempts_total",
			Help: "Authentication attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecomarket_image_uploads_total",
			Help: "Image uploads by outcome.",
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecomarket_image_upload_bytes_total",
			Help: "Bytes of accepted image uploads.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.auth,
		c.uploads,
		c.uploadBytes,
	)

	return c
}

func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordAuth(operation, outcome string) {
	c.auth.WithLabelValues(operation, outcome).Inc()
}

// RecordUpload counts an upload; size is only added for successful ones.
func (c *Collector) RecordUpload(outcome string, size int64) {
	c.uploads.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess && size > 0 {
		c.uploadBytes.Add(float64(size))
	}
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordAuth(string, string)                        {}
func (Nop) RecordUpload(string, int64)                       {}
