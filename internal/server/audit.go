package server

import (
	"time"

	"github.com/tributary-ai/octoroute/internal/audit"
	"github.com/tributary-ai/octoroute/internal/routing"
)

func newAuditEntry(requestID string, decision *routing.RoutingDecision, endpoint string, status int, duration time.Duration, warnings []string) audit.Entry {
	return audit.Entry{
		RequestID: requestID,
		Tier:      decision.Tier,
		Strategy:  decision.Strategy,
		Endpoint:  endpoint,
		Status:    status,
		Duration:  duration,
		Warnings:  warnings,
	}
}
