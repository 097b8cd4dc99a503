package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Requests that match no route share one label value.
const unmatchedRoute = "unmatched"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by method, route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	requestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route. Waits and event streams are included.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 30, 120, 300},
		},
		[]string{"method", "route"},
	)

	eventStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dispatch",
		Subsystem: "http",
		Name:      "event_streams_open",
		Help:      "Task event streams currently connected.",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestSeconds, eventStreams)
}

// metricsMiddleware counts and times requests. The route label is the chi
// pattern, so task ids never become label values.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
			requestSeconds.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
