package server

import (
	"encoding/json"
	"net/http"

	"github.com/tributary-ai/octoroute/internal/dispatch"
	"github.com/tributary-ai/octoroute/internal/types"
)

// writeValidationError writes the OpenAI-shaped 422 error body spec §6/§7
// requires for a client mistake.
func (s *Server) writeValidationError(w http.ResponseWriter, r *http.Request, message, param string) {
	status := http.StatusUnprocessableEntity
	var paramPtr *string
	if param != "" {
		paramPtr = &param
	}
	s.writeJSONError(w, status, types.ErrorDetail{Message: message, Type: "invalid_request_error", Param: paramPtr})
}

// writeBadRequest writes a 400 for malformed JSON, per spec §6.
func (s *Server) writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	s.writeJSONError(w, http.StatusBadRequest, types.ErrorDetail{Message: message, Type: "invalid_request_error"})
}

// writeDispatchError maps a dispatch.Error (or any other error) to the
// HTTP status and body spec §7 assigns it. Internal endpoint detail never
// reaches the message; the request ID is included for support correlation.
func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	id := requestID(r.Context())
	status := http.StatusBadGateway
	errType := "upstream_error"

	if derr, ok := err.(*dispatch.Error); ok {
		switch derr.Kind {
		case dispatch.RoutingExhausted:
			status, errType = http.StatusBadGateway, "routing_exhausted"
		case dispatch.UpstreamTransient, dispatch.UpstreamSystemic:
			status, errType = http.StatusBadGateway, "upstream_error"
		case dispatch.UpstreamTimeout:
			status, errType = http.StatusGatewayTimeout, "upstream_timeout"
		case dispatch.Internal:
			status, errType = http.StatusInternalServerError, "internal_error"
		}
	}

	s.writeJSONError(w, status, types.ErrorDetail{
		Message: "request " + id + " failed: " + errType,
		Type:    errType,
	})
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, detail types.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: detail})
}
