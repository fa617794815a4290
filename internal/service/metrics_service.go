package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the solver pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	solverRuns       *prometheus.CounterVec
	solverDuration   *prometheus.HistogramVec
	solverPenalty    prometheus.Histogram
	conflictsFound   prometheus.Counter
	shortlistsServed *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	solverRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_runs_total",
		Help: "Solver runs by terminal status",
	}, []string{"status"})

	solverDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solver_run_duration_seconds",
		Help:    "Wall-clock duration of solver runs",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"status"})

	solverPenalty := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solver_solution_penalty",
		Help:    "Objective penalty of accepted solutions",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	conflictsFound := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_conflicts_detected_total",
		Help: "Conflicts reported by the detector",
	})

	shortlistsServed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "substitute_shortlists_total",
		Help: "Substitute shortlists served, by source",
	}, []string{"source"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		solverRuns, solverDuration, solverPenalty, conflictsFound, shortlistsServed, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		solverRuns:       solverRuns,
		solverDuration:   solverDuration,
		solverPenalty:    solverPenalty,
		conflictsFound:   conflictsFound,
		shortlistsServed: shortlistsServed,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveSolverRun records the terminal status, duration and, for accepted
// solutions, the objective penalty of a run.
func (m *MetricsService) ObserveSolverRun(status string, duration time.Duration, penalty float64, solved bool) {
	if m == nil {
		return
	}
	m.solverRuns.WithLabelValues(status).Inc()
	m.solverDuration.WithLabelValues(status).Observe(duration.Seconds())
	if solved && penalty >= 0 {
		m.solverPenalty.Observe(penalty)
	}
}

// ObserveConflicts counts conflicts surfaced by a detection pass.
func (m *MetricsService) ObserveConflicts(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.conflictsFound.Add(float64(count))
}

// ObserveShortlist counts a served shortlist by source (cache or ranked).
func (m *MetricsService) ObserveShortlist(source string) {
	if m == nil {
		return
	}
	m.shortlistsServed.WithLabelValues(source).Inc()
}
