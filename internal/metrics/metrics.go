// Package metrics holds the Prometheus collectors for interview sessions,
// the LLM oracle, summarization and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parley"

var (
	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Interview session phase transitions by target phase",
	}, []string{"phase"})

	oracleFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_fallbacks_total",
		Help:      "Next-turn decisions replaced by the base question, by failure reason",
	}, []string{"reason"})

	oracleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "oracle_request_duration_seconds",
		Help:      "Duration of oracle calls in seconds",
		Buckets:   []float64{.25, .5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"operation", "outcome"})

	summaries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summaries_total",
		Help:      "Summarization attempts by outcome",
	}, []string{"outcome", "partial"})

	persistenceRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_retries_total",
		Help:      "Retried transcript and status writes by outcome",
	}, []string{"outcome"})

	analyticsRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_refreshes_total",
		Help:      "Analytics cache recomputations by outcome",
	}, []string{"outcome"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})
)

// SessionTransition counts a session entering phase.
func SessionTransition(phase string) {
	sessionTransitions.WithLabelValues(phase).Inc()
}

// OracleFallback counts a next-turn fallback caused by reason.
func OracleFallback(reason string) {
	oracleFallbacks.WithLabelValues(reason).Inc()
}

// ObserveOracle records the duration of one oracle operation.
func ObserveOracle(operation string, start time.Time, err error) {
	oracleLatency.WithLabelValues(operation, outcome(err)).Observe(time.Since(start).Seconds())
}

// Summary counts a finished summarization.
func Summary(partial bool, err error) {
	summaries.WithLabelValues(outcome(err), strconv.FormatBool(partial)).Inc()
}

// PersistenceRetry counts a retried write and whether the retry succeeded.
func PersistenceRetry(err error) {
	persistenceRetries.WithLabelValues(outcome(err)).Inc()
}

// AnalyticsRefresh counts a cache recomputation.
func AnalyticsRefresh(err error) {
	analyticsRefreshes.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request metrics labelled by the matched chi route
// pattern so tokens in the path do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
