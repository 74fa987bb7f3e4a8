package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tributary-ai/octoroute/internal/dispatch"
	"github.com/tributary-ai/octoroute/internal/routing"
	"github.com/tributary-ai/octoroute/internal/types"
	"github.com/tributary-ai/octoroute/internal/upstream"
)

const keepAliveInterval = 15 * time.Second

// streamChatCompletion serves the streaming path of spec §6: endpoint
// selection happens once, before any bytes are written, so a selection
// failure still returns a normal JSON error response; once the SSE
// headers are sent every failure becomes a synthetic error chunk instead.
func (s *Server) streamChatCompletion(w http.ResponseWriter, r *http.Request, res resolution, decision *routing.RoutingDecision, messages []upstream.ChatMessage, maxTokens *int, temperature *float64) {
	id := requestID(r.Context())
	start := time.Now()

	var handle *dispatch.StreamHandle
	var err error
	if res.endpoint != nil {
		handle, err = s.disp.DispatchStreamToEndpoint(r.Context(), *res.endpoint, decision, messages, maxTokens, temperature, id)
	} else {
		handle, err = s.disp.DispatchStream(r.Context(), decision, messages, maxTokens, temperature, id)
	}
	if err != nil {
		s.audit.Record(newAuditEntry(id, decision, "", http.StatusBadGateway, time.Since(start), nil))
		s.writeDispatchError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	completionID := "chatcmpl-" + requestSuffix()
	created := time.Now().Unix()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-handle.Events:
			if !ok {
				fmt.Fprint(w, "data: [DONE]\n\n")
				if canFlush {
					flusher.Flush()
				}
				s.audit.Record(newAuditEntry(id, decision, handle.Endpoint, http.StatusOK, time.Since(start), streamWarnings(handle)))
				return
			}
			s.writeChunk(w, completionID, created, handle.Endpoint, ev)
			if canFlush {
				flusher.Flush()
			}
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

func streamWarnings(handle *dispatch.StreamHandle) []string {
	if handle.ErrorOccurred() {
		return []string{"mid-stream error occurred"}
	}
	return nil
}

// writeChunk serializes one SSE data line. A JSON marshal failure never
// panics the handler: it falls back to a hand-built error chunk so the
// stream always terminates cleanly.
func (s *Server) writeChunk(w http.ResponseWriter, id string, created int64, model string, ev dispatch.StreamEvent) {
	delta := types.Delta{Role: ev.Role, Content: ev.Content}
	chunk := types.ChatChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []types.ChoiceChunk{{Index: 0, Delta: delta, FinishReason: ev.FinishReason}},
	}

	payload, err := json.Marshal(chunk)
	if err != nil {
		s.log.WithError(err).Warn("server: failed to serialize stream chunk")
		fmt.Fprintf(w, "data: {\"error\":\"chunk serialization failed\"}\n\n")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
