// Package metrics publishes Prometheus metrics for the access-decision
// façade: decision outcomes, authentication outcomes, and decision-cache
// operations.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheOperation identifies the decision-cache method being instrumented.
type CacheOperation string

const (
	CacheOperationLookup     CacheOperation = "lookup"
	CacheOperationStore      CacheOperation = "store"
	CacheOperationInvalidate CacheOperation = "invalidate"
)

// CacheResult captures the result of a decision-cache operation.
type CacheResult string

const (
	CacheResultHit    CacheResult = "hit"
	CacheResultMiss   CacheResult = "miss"
	CacheResultStored CacheResult = "stored"
	CacheResultError  CacheResult = "error"
)

// Recorder publishes Prometheus metrics for the façade.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	decisions       *prometheus.CounterVec
	decisionLatency *prometheus.HistogramVec

	authOutcomes *prometheus.CounterVec

	cacheOperations *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders (e.g. in tests) can
// coexist without conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accessd",
		Subsystem: "decision",
		Name:      "total",
		Help:      "Total access decisions resolved by the solver.",
	}, []string{"action", "permission", "from_cache"})

	decisionLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "accessd",
		Subsystem: "decision",
		Name:      "duration_seconds",
		Help:      "Latency distribution for completed access decisions.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}, []string{"action", "permission"})

	authOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accessd",
		Subsystem: "auth",
		Name:      "outcomes_total",
		Help:      "Authentication attempts, by credential source and outcome.",
	}, []string{"source", "outcome"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accessd",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Decision cache operations executed by the façade.",
	}, []string{"operation", "result"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "accessd",
		Subsystem: "cache",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for decision cache operations.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	}, []string{"operation", "result"})

	reg.MustRegister(decisions, decisionLatency, authOutcomes, cacheOperations, cacheLatency)

	return &Recorder{
		gatherer:        reg,
		handler:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		decisions:       decisions,
		decisionLatency: decisionLatency,
		authOutcomes:    authOutcomes,
		cacheOperations: cacheOperations,
		cacheLatency:    cacheLatency,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveDecision records the outcome and latency of a resolved access
// decision.
func (r *Recorder) ObserveDecision(action, permission string, fromCache bool, duration time.Duration) {
	if r == nil {
		return
	}
	cacheLabel := "false"
	if fromCache {
		cacheLabel = "true"
	}
	r.decisions.WithLabelValues(normalizeLabel(action), normalizeLabel(permission), cacheLabel).Inc()
	r.decisionLatency.WithLabelValues(normalizeLabel(action), normalizeLabel(permission)).Observe(duration.Seconds())
}

// ObserveAuth records the outcome of an authentication attempt from the
// given source (the façade reports "login" and "token").
func (r *Recorder) ObserveAuth(source string, success bool) {
	if r == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	r.authOutcomes.WithLabelValues(normalizeLabel(source), outcome).Inc()
}

// ObserveCache records the result and latency of a decision-cache
// operation.
func (r *Recorder) ObserveCache(operation CacheOperation, result CacheResult, duration time.Duration) {
	if r == nil {
		return
	}
	opLabel := normalizeLabel(string(operation))
	resultLabel := normalizeLabel(string(result))
	r.cacheOperations.WithLabelValues(opLabel, resultLabel).Inc()
	r.cacheLatency.WithLabelValues(opLabel, resultLabel).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
