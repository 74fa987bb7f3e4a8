package health

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)
	return log
}

func TestTracker_NewEndpointsStartHealthy(t *testing.T) {
	tr := New(testLog(), []string{"a", "b"})
	assert.True(t, tr.IsHealthy("a"))
	assert.True(t, tr.IsHealthy("b"))
}

func TestTracker_UnknownEndpointIsUnhealthy(t *testing.T) {
	tr := New(testLog(), []string{"a"})
	assert.False(t, tr.IsHealthy("nonexistent"))
}

func TestTracker_MarkFailure_UnknownEndpointErrors(t *testing.T) {
	tr := New(testLog(), []string{"a"})
	err := tr.MarkFailure("nonexistent")
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, UnknownEndpoint, herr.Kind)
}

func TestTracker_BecomesUnhealthyAtFailureThreshold(t *testing.T) {
	tr := New(testLog(), []string{"a"})
	for i := 0; i < failureThreshold-1; i++ {
		require.NoError(t, tr.MarkFailure("a"))
		assert.True(t, tr.IsHealthy("a"), "should stay healthy before threshold")
	}
	require.NoError(t, tr.MarkFailure("a"))
	assert.False(t, tr.IsHealthy("a"))
}

func TestTracker_MarkSuccessResetsFailuresAndRestoresHealth(t *testing.T) {
	tr := New(testLog(), []string{"a"})
	for i := 0; i < failureThreshold; i++ {
		require.NoError(t, tr.MarkFailure("a"))
	}
	require.False(t, tr.IsHealthy("a"))

	require.NoError(t, tr.MarkSuccess("a"))
	assert.True(t, tr.IsHealthy("a"))

	statuses := tr.AllStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, 0, statuses[0].ConsecutiveFailures)
}

func TestTracker_AllStatuses_ReflectsEachEndpoint(t *testing.T) {
	tr := New(testLog(), []string{"a", "b"})
	require.NoError(t, tr.MarkFailure("a"))

	byName := map[string]Status{}
	for _, s := range tr.AllStatuses() {
		byName[s.Endpoint] = s
	}
	assert.Equal(t, 1, byName["a"].ConsecutiveFailures)
	assert.True(t, byName["a"].Healthy)
	assert.True(t, byName["b"].Healthy)
}
