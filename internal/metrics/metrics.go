// Package metrics exposes a typed Prometheus sink. Tier, strategy and
// failure-type labels are accepted only as the project's own enumerated
// types (catalog.Tier, routing.Strategy, ...); endpoint labels are taken as
// the endpoint's name string.
package metrics

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/routing"
)

var routingDurationBuckets = []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000}

// Sink owns every metric this gateway exposes and its own registry,
// mirroring the pack's dedicated-registry pattern.
type Sink struct {
	registry *prometheus.Registry

	requestsTotal               *prometheus.CounterVec
	routingDurationMs           *prometheus.HistogramVec
	modelInvocationsTotal       *prometheus.CounterVec
	healthTrackingFailuresTotal *prometheus.CounterVec
	metricsRecordingFailures    *prometheus.CounterVec
	backgroundHealthTaskFailure *prometheus.CounterVec
	clockErrorsTotal            prometheus.Counter
	midStreamFailuresTotal      *prometheus.CounterVec

	healthTrackingFailureSeen atomic.Bool
}

// New builds a Sink with its own registry and registers every metric.
func New() *Sink {
	reg := prometheus.NewRegistry()

	s := &Sink{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octoroute_requests_total",
			Help: "Total requests processed, by tier and strategy.",
		}, []string{"tier", "strategy"}),
		routingDurationMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "octoroute_routing_duration_ms",
			Help:    "Time spent making a routing decision, by strategy.",
			Buckets: routingDurationBuckets,
		}, []string{"strategy"}),
		modelInvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octoroute_model_invocations_total",
			Help: "Total successful model invocations, by tier.",
		}, []string{"tier"}),
		healthTrackingFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octoroute_health_tracking_failures_total",
			Help: "Health-tracker mark operation failures, by endpoint and error type.",
		}, []string{"endpoint", "error_type"}),
		metricsRecordingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octoroute_metrics_recording_failures_total",
			Help: "Failures recording a metric observation, by operation.",
		}, []string{"operation"}),
		backgroundHealthTaskFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octoroute_background_health_task_failures_total",
			Help: "Background prober sweep-loop restarts, by failure type.",
		}, []string{"failure_type"}),
		clockErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "octoroute_clock_errors_total",
			Help: "Clock read errors encountered while timing operations.",
		}),
		midStreamFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "octoroute_mid_stream_failures_total",
			Help: "Streaming responses that errored mid-stream, by endpoint.",
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		s.requestsTotal,
		s.routingDurationMs,
		s.modelInvocationsTotal,
		s.healthTrackingFailuresTotal,
		s.metricsRecordingFailures,
		s.backgroundHealthTaskFailure,
		s.clockErrorsTotal,
		s.midStreamFailuresTotal,
	)

	return s
}

// Registry exposes the underlying registry for the /metrics handler.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

// RecordRequest increments requests_total. A Hybrid strategy is a
// deliberate silent no-op: only the concrete Rule or Llm path that ran
// is ever emitted, per spec §4.8/§9.
func (s *Sink) RecordRequest(tier catalog.Tier, strategy routing.Strategy) {
	if strategy == routing.Hybrid {
		return
	}
	s.requestsTotal.WithLabelValues(tier.String(), strategy.String()).Inc()
}

// RecordRoutingDuration observes a routing decision's latency. NaN,
// infinities, and negative durations are rejected rather than corrupting
// derived percentiles.
func (s *Sink) RecordRoutingDuration(strategy routing.Strategy, ms float64) error {
	if strategy == routing.Hybrid {
		return nil
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		s.metricsRecordingFailures.WithLabelValues("routing_duration_ms").Inc()
		return fmt.Errorf("metrics: invalid routing duration observation %v", ms)
	}
	s.routingDurationMs.WithLabelValues(strategy.String()).Observe(ms)
	return nil
}

// RecordModelInvocation increments model_invocations_total for a tier.
func (s *Sink) RecordModelInvocation(tier catalog.Tier) {
	s.modelInvocationsTotal.WithLabelValues(tier.String()).Inc()
}

// HealthErrorType enumerates the health-tracking failure reasons that can
// be labelled on a metric, so no free-form string reaches Prometheus.
type HealthErrorType int

const (
	UnknownEndpointError HealthErrorType = iota
	ProbeClientBuildFailedError
)

func (h HealthErrorType) String() string {
	switch h {
	case UnknownEndpointError:
		return "unknown_endpoint"
	case ProbeClientBuildFailedError:
		return "probe_client_build_failed"
	default:
		return "unknown"
	}
}

// RecordHealthTrackingFailure increments health_tracking_failures_total.
func (s *Sink) RecordHealthTrackingFailure(endpoint string, errType HealthErrorType) {
	s.healthTrackingFailuresTotal.WithLabelValues(endpoint, errType.String()).Inc()
	s.healthTrackingFailureSeen.Store(true)
}

// HealthTrackingDegraded reports whether any health-tracking failure has
// ever been recorded, per spec §6's GET /health degraded condition.
func (s *Sink) HealthTrackingDegraded() bool { return s.healthTrackingFailureSeen.Load() }

// BackgroundFailureType enumerates background-prober failure causes.
type BackgroundFailureType int

const (
	SweepPanic BackgroundFailureType = iota
	SweepError
	RestartBudgetExhausted
)

func (b BackgroundFailureType) String() string {
	switch b {
	case SweepPanic:
		return "panic"
	case SweepError:
		return "error"
	case RestartBudgetExhausted:
		return "restart_budget_exhausted"
	default:
		return "unknown"
	}
}

// RecordBackgroundHealthTaskFailure increments the prober restart counter.
func (s *Sink) RecordBackgroundHealthTaskFailure(failureType BackgroundFailureType) {
	s.backgroundHealthTaskFailure.WithLabelValues(failureType.String()).Inc()
}

// RecordClockError increments clock_errors_total.
func (s *Sink) RecordClockError() { s.clockErrorsTotal.Inc() }

// RecordMidStreamFailure increments mid_stream_failures_total{endpoint}.
func (s *Sink) RecordMidStreamFailure(endpoint string) {
	s.midStreamFailuresTotal.WithLabelValues(endpoint).Inc()
}
