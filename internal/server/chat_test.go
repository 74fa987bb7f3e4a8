package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/octoroute/internal/types"
)

func doChatCompletion(t *testing.T, h *testHarness, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := newRecorder()
	h.router().ServeHTTP(rec, req)
	return rec
}

func TestHandleChatCompletion_AutoResolvesToDefaultTier(t *testing.T) {
	h := newTestHarness(t)
	body, err := json.Marshal(types.ChatRequest{
		Model:    "auto",
		Messages: []types.Message{{Role: "user", Content: "hi there"}},
	})
	require.NoError(t, err)

	rec := doChatCompletion(t, h, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "test-fast-model", resp.Model)
	assert.Equal(t, "hello from fast tier", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Greater(t, resp.Usage.TotalTokens, 0)
}

func TestHandleChatCompletion_ExplicitTierBypassesRouter(t *testing.T) {
	h := newTestHarness(t)
	body, err := json.Marshal(types.ChatRequest{
		Model:    "deep",
		Messages: []types.Message{{Role: "user", Content: "write me a novella"}},
	})
	require.NoError(t, err)

	rec := doChatCompletion(t, h, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "test-deep-model", resp.Model)
}

func TestHandleChatCompletion_SpecificEndpointBypassesRouting(t *testing.T) {
	h := newTestHarness(t)
	body, err := json.Marshal(types.ChatRequest{
		Model:    "test-balanced-model",
		Messages: []types.Message{{Role: "user", Content: "anything"}},
	})
	require.NoError(t, err)

	rec := doChatCompletion(t, h, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "test-balanced-model", resp.Model)
}

func TestHandleChatCompletion_UnknownModelName(t *testing.T) {
	h := newTestHarness(t)
	body, err := json.Marshal(types.ChatRequest{
		Model:    "nonexistent-model",
		Messages: []types.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	rec := doChatCompletion(t, h, body)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var errResp types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotContains(t, errResp.Error.Message, "http://")
}

func TestHandleChatCompletion_EmptyMessagesRejected(t *testing.T) {
	h := newTestHarness(t)
	body, err := json.Marshal(types.ChatRequest{Model: "auto", Messages: []types.Message{}})
	require.NoError(t, err)

	rec := doChatCompletion(t, h, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var errResp types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_request_error", errResp.Error.Type)
	require.NotNil(t, errResp.Error.Param)
	assert.Equal(t, "messages", *errResp.Error.Param)
}

func TestHandleChatCompletion_InvalidTemperatureRejected(t *testing.T) {
	h := newTestHarness(t)
	badTemp := 5.0
	body, err := json.Marshal(types.ChatRequest{
		Model:       "auto",
		Messages:    []types.Message{{Role: "user", Content: "hi"}},
		Temperature: &badTemp,
	})
	require.NoError(t, err)

	rec := doChatCompletion(t, h, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleChatCompletion_MalformedJSON(t *testing.T) {
	h := newTestHarness(t)
	rec := doChatCompletion(t, h, []byte(`{"model": "auto", "messages": [`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatCompletion_UpstreamFailureMapsTo502(t *testing.T) {
	h := newTestHarness(t)
	h.client.fail = true

	body, err := json.Marshal(types.ChatRequest{
		Model:    "auto",
		Messages: []types.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	rec := doChatCompletion(t, h, body)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleChatCompletion_NoWarningHeaderWithoutWarnings(t *testing.T) {
	h := newTestHarness(t)

	body, err := json.Marshal(types.ChatRequest{
		Model:    "auto",
		Messages: []types.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	rec := doChatCompletion(t, h, body)
	require.Equal(t, http.StatusOK, rec.Code)
	// no warnings on the success path in this harness; header must be absent
	assert.Empty(t, rec.Header().Get("X-Octoroute-Warning"))
}

func TestSanitizeWarningHeader(t *testing.T) {
	in := "Health Tracking Unavailable\nfor endpoint\r héllo"
	out := sanitizeWarningHeader(in)
	assert.NotContains(t, out, "\n")
	assert.NotContains(t, out, "\r")
	assert.Equal(t, out, sanitizeWarningHeader(out)) // idempotent
	for _, r := range out {
		assert.Less(t, r, rune(128))
	}
}
