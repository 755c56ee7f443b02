package apiserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cidvault",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "API requests by route and status code.",
	}, []string{"route", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cidvault",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "API request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

type requestTimer struct {
	route string
	start time.Time
}

func startRequestTimer(route string) *requestTimer {
	return &requestTimer{route: route, start: time.Now()}
}

func (t *requestTimer) observe(status int) {
	requestsTotal.WithLabelValues(t.route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(t.route).Observe(time.Since(t.start).Seconds())
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// instrumented wraps an open-read handler with the request metrics.
func (s *Server) instrumented(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		timer := startRequestTimer(route)
		h(sw, r)
		timer.observe(sw.status)
	}
}
