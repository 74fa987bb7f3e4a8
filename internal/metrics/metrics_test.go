package metrics

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/routing"
)

func TestRecordRequest_IncrementsByTierAndStrategy(t *testing.T) {
	s := New()
	s.RecordRequest(catalog.Fast, routing.Rule)
	s.RecordRequest(catalog.Fast, routing.Rule)
	s.RecordRequest(catalog.Deep, routing.Llm)

	assert.Equal(t, float64(2), testutil.ToFloat64(s.requestsTotal.WithLabelValues("fast", "rule")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.requestsTotal.WithLabelValues("deep", "llm")))
}

func TestRecordRequest_HybridIsSilentNoOp(t *testing.T) {
	s := New()
	s.RecordRequest(catalog.Fast, routing.Hybrid)
	assert.Equal(t, float64(0), testutil.ToFloat64(s.requestsTotal.WithLabelValues("fast", "hybrid")))
}

func TestRecordRoutingDuration_RejectsInvalidObservations(t *testing.T) {
	s := New()
	assert.Error(t, s.RecordRoutingDuration(routing.Rule, math.NaN()))
	assert.Error(t, s.RecordRoutingDuration(routing.Rule, math.Inf(1)))
	assert.Error(t, s.RecordRoutingDuration(routing.Rule, -1))
	assert.NoError(t, s.RecordRoutingDuration(routing.Rule, 12.5))
}

func TestRecordRoutingDuration_HybridIsNoOp(t *testing.T) {
	s := New()
	require.NoError(t, s.RecordRoutingDuration(routing.Hybrid, 12.5))
}

func TestHealthTrackingDegraded_BecomesTrueAfterFirstFailureAndStaysTrue(t *testing.T) {
	s := New()
	assert.False(t, s.HealthTrackingDegraded())
	s.RecordHealthTrackingFailure("fast-1", UnknownEndpointError)
	assert.True(t, s.HealthTrackingDegraded())
	// monotonic: recording a success path elsewhere must not clear it
	s.RecordModelInvocation(catalog.Fast)
	assert.True(t, s.HealthTrackingDegraded())
}

func TestRecordModelInvocation_IncrementsByTier(t *testing.T) {
	s := New()
	s.RecordModelInvocation(catalog.Balanced)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.modelInvocationsTotal.WithLabelValues("balanced")))
}

func TestRecordMidStreamFailure_IncrementsByEndpoint(t *testing.T) {
	s := New()
	s.RecordMidStreamFailure("fast-1")
	assert.Equal(t, float64(1), testutil.ToFloat64(s.midStreamFailuresTotal.WithLabelValues("fast-1")))
}

func TestHealthErrorType_String(t *testing.T) {
	assert.Equal(t, "unknown_endpoint", UnknownEndpointError.String())
	assert.Equal(t, "probe_client_build_failed", ProbeClientBuildFailedError.String())
}

func TestBackgroundFailureType_String(t *testing.T) {
	assert.Equal(t, "panic", SweepPanic.String())
	assert.Equal(t, "restart_budget_exhausted", RestartBudgetExhausted.String())
}
