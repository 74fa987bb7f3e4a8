package validate

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/octoroute/internal/types"
)

func float64Ptr(f float64) *float64 { return &f }
func intPtr(i int) *int             { return &i }

func TestChatRequest_RejectsEmptyMessages(t *testing.T) {
	err := ChatRequest(&types.ChatRequest{})
	require.NotNil(t, err)
	assert.Equal(t, "messages", err.Param)
}

func TestChatRequest_RejectsInvalidRole(t *testing.T) {
	req := &types.ChatRequest{Messages: []types.Message{{Role: "bogus", Content: "hi"}}}
	err := ChatRequest(req)
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "role")
}

func TestChatRequest_RejectsEmptyUserContent(t *testing.T) {
	req := &types.ChatRequest{Messages: []types.Message{{Role: "user", Content: ""}}}
	err := ChatRequest(req)
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "content")
}

func TestChatRequest_AllowsEmptyAssistantContent(t *testing.T) {
	req := &types.ChatRequest{Messages: []types.Message{{Role: "assistant", Content: ""}}}
	assert.Nil(t, ChatRequest(req))
}

func TestChatRequest_RejectsOutOfRangeTemperature(t *testing.T) {
	req := &types.ChatRequest{
		Messages:    []types.Message{{Role: "user", Content: "hi"}},
		Temperature: float64Ptr(3),
	}
	err := ChatRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, "temperature", err.Param)
}

func TestChatRequest_RejectsOutOfRangeTopP(t *testing.T) {
	req := &types.ChatRequest{
		Messages: []types.Message{{Role: "user", Content: "hi"}},
		TopP:     float64Ptr(1.5),
	}
	err := ChatRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, "top_p", err.Param)
}

func TestChatRequest_RejectsNonPositiveMaxTokens(t *testing.T) {
	req := &types.ChatRequest{
		Messages:  []types.Message{{Role: "user", Content: "hi"}},
		MaxTokens: intPtr(0),
	}
	err := ChatRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, "max_tokens", err.Param)
}

func TestChatRequest_ValidRequestPasses(t *testing.T) {
	req := &types.ChatRequest{
		Messages:    []types.Message{{Role: "user", Content: "hi"}},
		Temperature: float64Ptr(0.7),
		TopP:        float64Ptr(0.9),
		MaxTokens:   intPtr(100),
	}
	assert.Nil(t, ChatRequest(req))
}

func TestSchema_Request_AcceptsValidBody(t *testing.T) {
	schema, err := NewSchema()
	require.NoError(t, err)

	body := []byte(`{"model":"auto","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest("POST", "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	assert.NoError(t, schema.Request(req))
}

func TestSchema_Request_RejectsMissingRequiredField(t *testing.T) {
	schema, err := NewSchema()
	require.NoError(t, err)

	body := []byte(`{"stream":false}`)
	req := httptest.NewRequest("POST", "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	assert.Error(t, schema.Request(req))
}

func TestSchema_Request_UnmatchedRouteIsNotValidated(t *testing.T) {
	schema, err := NewSchema()
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/metrics", nil)
	assert.NoError(t, schema.Request(req))
}

func TestSchema_Document_ExposesEmbeddedDoc(t *testing.T) {
	schema, err := NewSchema()
	require.NoError(t, err)
	doc := schema.Document()
	require.NotNil(t, doc)
	assert.Equal(t, "octoroute", doc.Info.Title)
}
