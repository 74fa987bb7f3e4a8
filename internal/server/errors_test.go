package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/octoroute/internal/dispatch"
)

func TestWriteDispatchError_MapsEveryErrorKind(t *testing.T) {
	h := newTestHarness(t)

	cases := []struct {
		kind   dispatch.ErrorKind
		status int
	}{
		{dispatch.RoutingExhausted, http.StatusBadGateway},
		{dispatch.UpstreamTransient, http.StatusBadGateway},
		{dispatch.UpstreamSystemic, http.StatusBadGateway},
		{dispatch.UpstreamTimeout, http.StatusGatewayTimeout},
		{dispatch.Internal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
		rec := newRecorder()
		h.server.writeDispatchError(rec, req, &dispatch.Error{Kind: tc.kind, Message: "boom"})
		assert.Equal(t, tc.status, rec.Code)
	}
}

func TestWriteDispatchError_NeverLeaksEndpointURL(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	rec := newRecorder()
	h.server.writeDispatchError(rec, req, &dispatch.Error{
		Kind: dispatch.UpstreamTransient, Message: "upstream query failed for http://internal.example.com:8443/v1",
	})
	assert.NotContains(t, rec.Body.String(), "http://internal.example.com")
}

func TestWriteValidationError_Is422WithParam(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	rec := newRecorder()
	h.server.writeValidationError(rec, req, "messages must be a non-empty array", "messages")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"param":"messages"`)
}
