package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageViews counts successful page renders by route.
	PageViews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_page_views_total",
		Help: "Total number of successful page views by route",
	}, []string{"route"})

	// RequestLatency records handler latency by method, route and status.
	RequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blog_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// PageViewRecorder records request latency for every request and a page view for GET pages.
func PageViewRecorder() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		RequestLatency.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())

		// Only record successful page views (2xx) for GET requests.
		if c.Request.Method != http.MethodGet || status < 200 || status >= 300 {
			return
		}
		path := c.Request.URL.Path
		// Ignore non-content endpoints (health, metrics, static assets)
		if path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/static/") {
			return
		}
		PageViews.WithLabelValues(route).Inc()
	}
}
