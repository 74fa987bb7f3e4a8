package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware_HandlesPreflight(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	rec := newRecorder()
	h.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestContentTypeMiddleware_RejectsNonJSONPost(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Content-Type", "text/plain")
	rec := newRecorder()
	h.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTimeoutMiddleware_NoopWhenUnconfigured(t *testing.T) {
	h := newTestHarness(t)
	// ServerConfig.RequestTimeout is zero in the test harness; the request
	// must still complete normally rather than being cancelled immediately.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := newRecorder()
	h.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
