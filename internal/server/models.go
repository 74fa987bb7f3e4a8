package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/types"
)

// handleModels serves GET /v1/models: the OpenAI list envelope over
// every configured endpoint, per SPEC_FULL §3.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	created := time.Now().Unix()
	data := make([]types.ModelInfo, 0, len(s.cat.AllEndpointNames()))
	for _, tier := range catalog.AllTiers() {
		for _, ep := range s.cat.Endpoints(tier) {
			data = append(data, types.ModelInfo{
				ID:      ep.Name,
				Object:  "model",
				Created: created,
				OwnedBy: "octoroute",
				Tier:    tier.String(),
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(types.ModelsResponse{Object: "list", Data: data})
}

// handleHealth serves GET /health. health_tracking_status is "degraded"
// iff any health-tracking failure counter is non-zero or the background
// prober has used up its restart budget, per spec §6.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "operational"
	if s.metrics.HealthTrackingDegraded() || s.prober.Degraded() {
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(types.HealthResponse{Status: "OK", HealthTrackingStatus: status})
}
