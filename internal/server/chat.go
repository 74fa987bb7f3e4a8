package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/dispatch"
	"github.com/tributary-ai/octoroute/internal/routing"
	"github.com/tributary-ai/octoroute/internal/types"
	"github.com/tributary-ai/octoroute/internal/upstream"
	"github.com/tributary-ai/octoroute/internal/validate"
)

// resolution is the outcome of interpreting the request's "model" field
// per spec §6: either a tier to route through (auto, or an explicit tier
// name) or a specific endpoint that bypasses routing entirely.
type resolution struct {
	tier     catalog.Tier
	strategy routing.Strategy
	endpoint *catalog.Endpoint
}

// handleChatCompletion serves POST /v1/chat/completions, OpenAI-compatible,
// streaming and non-streaming.
func (s *Server) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	body, err := s.limiter.ReadBody(r)
	if err != nil {
		s.writeBadRequest(w, r, err.Error())
		return
	}
	// ReadBody already drained r.Body; restore it so schema validation
	// sees the same bytes instead of an exhausted reader.
	r.Body = io.NopCloser(bytes.NewReader(body))
	if verr := s.schema.Request(r); verr != nil {
		s.writeValidationError(w, r, verr.Error(), "")
		return
	}

	var req types.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeBadRequest(w, r, "invalid JSON: "+err.Error())
		return
	}
	if ferr := validate.ChatRequest(&req); ferr != nil {
		s.writeValidationError(w, r, ferr.Message, ferr.Param)
		return
	}

	prompt := promptFromMessages(req.Messages)

	routeStart := time.Now()
	res, err := s.resolveModel(r, req.Model, prompt)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}
	if rerr := s.metrics.RecordRoutingDuration(res.strategy, float64(time.Since(routeStart).Microseconds())/1000); rerr != nil {
		s.log.WithError(rerr).Warn("server: failed to record routing duration")
	}
	s.metrics.RecordRequest(res.tier, res.strategy)

	messages := toUpstreamMessages(req.Messages)
	decision := &routing.RoutingDecision{Tier: res.tier, Strategy: res.strategy}

	if req.Stream {
		s.streamChatCompletion(w, r, res, decision, messages, req.MaxTokens, req.Temperature)
		return
	}
	s.completeChatCompletion(w, r, res, decision, messages, req.MaxTokens, req.Temperature)
}

func (s *Server) completeChatCompletion(w http.ResponseWriter, r *http.Request, res resolution, decision *routing.RoutingDecision, messages []upstream.ChatMessage, maxTokens *int, temperature *float64) {
	start := time.Now()
	var result routing.QueryResult
	var err error

	if res.endpoint != nil {
		result, err = s.disp.DispatchToEndpoint(r.Context(), *res.endpoint, res.tier, decision, messages, maxTokens, temperature)
	} else {
		result, err = s.disp.Dispatch(r.Context(), decision, messages, maxTokens, temperature)
	}

	if err != nil {
		status := http.StatusBadGateway
		if derr, ok := err.(*dispatch.Error); ok && derr.Kind == dispatch.Internal {
			status = http.StatusInternalServerError
		}
		s.audit.Record(newAuditEntry(requestID(r.Context()), decision, "", status, time.Since(start), nil))
		s.writeDispatchError(w, r, err)
		return
	}

	if len(result.Warnings) > 0 {
		w.Header().Set("X-Octoroute-Warning", sanitizeWarningHeader(strings.Join(result.Warnings, "; ")))
	}

	resp := buildChatResponse(result, messages)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)

	s.audit.Record(newAuditEntry(requestID(r.Context()), decision, result.Endpoint, http.StatusOK, time.Since(start), result.Warnings))
}

func buildChatResponse(result routing.QueryResult, messages []upstream.ChatMessage) types.ChatResponse {
	promptTokens := 0
	for _, m := range messages {
		promptTokens += routing.EstimateTokens(m.Content)
	}
	completionTokens := routing.EstimateTokens(result.Text)

	return types.ChatResponse{
		ID:      "chatcmpl-" + requestSuffix(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   result.Endpoint,
		Choices: []types.Choice{{
			Index:        0,
			Message:      types.Message{Role: "assistant", Content: result.Text},
			FinishReason: "stop",
		}},
		Usage: types.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}

func requestSuffix() string {
	return time.Now().UTC().Format("20060102150405.000000000")
}

// resolveModel interprets the "model" field per spec §6: "auto"/"" routes
// via the configured strategy using the full prompt text, an explicit
// tier name bypasses the router but still goes through tier-based
// selection, and any other value is looked up as a specific endpoint name
// that bypasses routing entirely.
func (s *Server) resolveModel(r *http.Request, model, prompt string) (resolution, error) {
	lower := strings.ToLower(strings.TrimSpace(model))

	if lower == "" || lower == "auto" {
		return s.resolveAuto(r, prompt)
	}

	if tier, err := catalog.ParseTier(lower); err == nil {
		return resolution{tier: tier, strategy: routing.Rule}, nil
	}

	ep, ok := s.cat.Lookup(model)
	if !ok {
		return resolution{}, &dispatch.Error{Kind: dispatch.RoutingExhausted, Message: "unknown model " + model}
	}
	tier, ok := s.tierOf(ep.Name)
	if !ok {
		return resolution{}, &dispatch.Error{Kind: dispatch.Internal, Message: "endpoint " + ep.Name + " has no containing tier"}
	}
	return resolution{tier: tier, strategy: routing.Rule, endpoint: &ep}, nil
}

func (s *Server) resolveAuto(r *http.Request, prompt string) (resolution, error) {
	meta := routing.RouteMetadata{
		TokenEstimate: routing.EstimateTokens(prompt),
		Importance:    s.defaultImportance,
		TaskType:      routing.QuestionAnswer,
	}
	tier, strategy, err := s.router.Route(r.Context(), prompt, meta)
	if err != nil {
		return resolution{}, &dispatch.Error{Kind: dispatch.RoutingExhausted, Message: "routing failed", Cause: err}
	}
	return resolution{tier: tier, strategy: strategy}, nil
}

func (s *Server) tierOf(name string) (catalog.Tier, bool) {
	for _, t := range catalog.AllTiers() {
		for _, ep := range s.cat.Endpoints(t) {
			if ep.Name == name {
				return t, true
			}
		}
	}
	return 0, false
}

// promptFromMessages joins every message's content, in order, with
// newlines; the result feeds the router and the token estimate.
func promptFromMessages(msgs []types.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

func toUpstreamMessages(msgs []types.Message) []upstream.ChatMessage {
	out := make([]upstream.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, upstream.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// sanitizeWarningHeader enforces spec §6's lowercase, ASCII-only,
// newline-free requirement for the X-Octoroute-Warning header value.
func sanitizeWarningHeader(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	var b strings.Builder
	for _, r := range s {
		if r > 127 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
