package routing

import (
	"context"

	"github.com/tributary-ai/octoroute/internal/catalog"
)

// HybridRouter tries the RuleRouter first and falls back to the
// LlmRouter only when no rule matched. No other logic is applied; the
// LLM's decision is final (up to its own retry logic).
type HybridRouter struct {
	rule *RuleRouter
	llm  *LlmRouter
}

// NewHybridRouter builds a HybridRouter from its two constituent routers.
func NewHybridRouter(rule *RuleRouter, llm *LlmRouter) *HybridRouter {
	return &HybridRouter{rule: rule, llm: llm}
}

// Route returns the chosen tier and the concrete strategy that actually
// produced it (Rule or Llm, never Hybrid itself, per spec §4.8/§9).
func (h *HybridRouter) Route(ctx context.Context, userPrompt string, meta RouteMetadata) (catalog.Tier, Strategy, error) {
	if tier, ok := h.rule.Route(meta); ok {
		return tier, Rule, nil
	}
	tier, err := h.llm.Route(ctx, userPrompt, meta)
	if err != nil {
		return 0, Llm, err
	}
	return tier, Llm, nil
}
