// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// Prometheus series are labelled by the registered route template, never the
// raw URL, so pledge and tracking ids in paths do not create new series.
// Requests that match no route share the "unmatched" label.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRoute = "unmatched"

// Certificate renders take seconds, collaborator lookups milliseconds; one
// bucket layout covers both.
var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 45, 90}

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pledge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)

	requestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pledge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route surface.",
			Buckets:   latencyBuckets,
		},
		[]string{"method", "surface"},
	)

	inFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pledge",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests being served, by route surface.",
		},
		[]string{"surface"},
	)

	// Bodies range from a count JSON to an inline base64 certificate.
	responseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pledge",
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "Response body size by route surface.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 9), // 256B..16MiB
		},
		[]string{"surface"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestSeconds, inFlight, responseBytes)
}

// Surface buckets a route template into a coarse group used as a label on
// latency and size series: "certificate" for the generator, "collab" for the
// pledge and tracking store, "static" for assets and spooled files, and
// "ops" for everything else.
func Surface(route string) string {
	switch {
	case route == "" || route == unmatchedRoute:
		return unmatchedRoute
	case strings.HasSuffix(route, "/certificates"):
		return "certificate"
	case strings.Contains(route, "/pledges"),
		strings.Contains(route, "/certificate/"),
		strings.Contains(route, "/selfie/"),
		strings.Contains(route, "/track-"):
		return "collab"
	case strings.HasPrefix(route, "/fonts"),
		strings.HasPrefix(route, "/default-format"),
		strings.HasPrefix(route, "/files"):
		return "static"
	default:
		return "ops"
	}
}

// Metrics records per-route counters and per-surface latency, size and
// concurrency. The surface of an in-flight request is known only after
// routing, so the gauge is keyed by the request path until then.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		pre := Surface(c.FullPath())
		if pre == unmatchedRoute {
			pre = Surface(c.Request.URL.Path)
		}
		g := inFlight.WithLabelValues(pre)
		g.Inc()
		defer g.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		surface := Surface(route)
		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestSeconds.WithLabelValues(c.Request.Method, surface).Observe(time.Since(start).Seconds())
		if n := c.Writer.Size(); n >= 0 {
			responseBytes.WithLabelValues(surface).Observe(float64(n))
		}
	}
}
