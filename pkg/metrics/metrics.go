package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arnavshah/assignment-engine-go/pkg/models"
)

// Run outcomes
const (
	OutcomeComplete = "complete"
	OutcomePartial  = "partial"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Metrics holds the Prometheus collectors for generation runs and HTTP traffic.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	runs            *prometheus.CounterVec
	parts           *prometheus.CounterVec
	runDuration     prometheus.Histogram
	fairness        prometheus.Histogram
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_runs_total",
		Help: "Generation runs by outcome",
	}, []string{"outcome"})

	parts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_parts_total",
		Help: "Program parts processed, by result",
	}, []string{"result"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Time spent in the assignment engine per run",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	fairness := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "generation_fairness_score",
		Help:    "Fairness index of the projected assignment counts",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registry.MustRegister(runs, parts, runDuration, fairness, requestDuration)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		runs:            runs,
		parts:           parts,
		runDuration:     runDuration,
		fairness:        fairness,
		requestDuration: requestDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a successful engine run.
func (m *Metrics) ObserveRun(result models.GenerationResult, fairness float64, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeComplete
	if len(result.Unresolved) > 0 {
		outcome = OutcomePartial
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.fairness.Observe(fairness)

	missingAssistant := 0
	for _, u := range result.Unresolved {
		if u.Reason == models.ReasonMissingAssistant {
			missingAssistant++
		}
	}
	m.parts.WithLabelValues("assigned").Add(float64(len(result.Assignments)))
	m.parts.WithLabelValues(string(models.ReasonNoEligiblePrimary)).Add(float64(len(result.Unresolved) - missingAssistant))
	m.parts.WithLabelValues(string(models.ReasonMissingAssistant)).Add(float64(missingAssistant))
}

// ObserveFailure records a run the engine refused or could not finish.
func (m *Metrics) ObserveFailure(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records request latency.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Observe(duration.Seconds())
}
