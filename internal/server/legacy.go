package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tributary-ai/octoroute/internal/dispatch"
	"github.com/tributary-ai/octoroute/internal/routing"
	"github.com/tributary-ai/octoroute/internal/types"
	"github.com/tributary-ai/octoroute/internal/upstream"
)

// handleLegacyChat serves the simple POST /chat endpoint: a single
// message routed through the configured strategy, never a specific
// endpoint or tier override (spec §6/SPEC_FULL §3).
func (s *Server) handleLegacyChat(w http.ResponseWriter, r *http.Request) {
	body, err := s.limiter.ReadBody(r)
	if err != nil {
		s.writeBadRequest(w, r, err.Error())
		return
	}

	var req types.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeBadRequest(w, r, "invalid JSON: "+err.Error())
		return
	}
	if req.Message == "" {
		s.writeValidationError(w, r, "message must not be empty", "message")
		return
	}

	meta := routing.RouteMetadata{
		TokenEstimate: routing.EstimateTokens(req.Message),
		Importance:    routing.ParseImportance(req.Importance),
		TaskType:      routing.ParseTaskType(req.TaskType),
	}

	start := time.Now()
	tier, strategy, err := s.router.Route(r.Context(), req.Message, meta)
	if err != nil {
		s.writeDispatchError(w, r, &dispatch.Error{Kind: dispatch.RoutingExhausted, Message: "routing failed", Cause: err})
		return
	}
	if rerr := s.metrics.RecordRoutingDuration(strategy, float64(time.Since(start).Microseconds())/1000); rerr != nil {
		s.log.WithError(rerr).Warn("server: failed to record routing duration")
	}
	s.metrics.RecordRequest(tier, strategy)

	decision := &routing.RoutingDecision{Tier: tier, Strategy: strategy}
	messages := []upstream.ChatMessage{{Role: "user", Content: req.Message}}

	dispatchStart := time.Now()
	result, err := s.disp.Dispatch(r.Context(), decision, messages, nil, nil)
	if err != nil {
		status := http.StatusBadGateway
		if derr, ok := err.(*dispatch.Error); ok && derr.Kind == dispatch.Internal {
			status = http.StatusInternalServerError
		}
		s.audit.Record(newAuditEntry(requestID(r.Context()), decision, "", status, time.Since(dispatchStart), nil))
		s.writeDispatchError(w, r, err)
		return
	}

	resp := types.ChatCompletionResponse{
		Content:   result.Text,
		ModelTier: tier.String(),
		ModelName: result.Endpoint,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)

	s.audit.Record(newAuditEntry(requestID(r.Context()), decision, result.Endpoint, http.StatusOK, time.Since(dispatchStart), result.Warnings))
}
