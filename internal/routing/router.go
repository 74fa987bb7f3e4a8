package routing

import (
	"context"
	"fmt"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/selector"
)

// Router is the single entry point the HTTP layer calls, regardless of
// which strategy the configuration selected. It wraps whichever concrete
// router is active and applies the rule-only default-tier fallback that
// only matters in that one mode.
type Router struct {
	rule *RuleRouter
	llm  *LlmRouter
	mode routerMode
	sel  *selector.Selector
	cat  *catalog.Catalog
}

type routerMode int

const (
	ruleOnly routerMode = iota
	llmOnly
	hybrid
)

// NewRuleOnlyRouter builds a Router that never falls back to an LLM: on
// no rule match it uses the catalog's default tier directly.
func NewRuleOnlyRouter(rule *RuleRouter, sel *selector.Selector, cat *catalog.Catalog) *Router {
	return &Router{rule: rule, mode: ruleOnly, sel: sel, cat: cat}
}

// NewLlmOnlyRouter builds a Router that always delegates to the LLM router.
func NewLlmOnlyRouter(llm *LlmRouter) *Router {
	return &Router{llm: llm, mode: llmOnly}
}

// NewHybridOnlyRouter builds a Router using the rule-then-LLM-fallback strategy.
func NewHybridOnlyRouter(rule *RuleRouter, llm *LlmRouter) *Router {
	return &Router{rule: rule, llm: llm, mode: hybrid}
}

// Route dispatches to the configured strategy and returns the resulting
// tier and the strategy that actually produced it (never Hybrid itself).
func (r *Router) Route(ctx context.Context, userPrompt string, meta RouteMetadata) (catalog.Tier, Strategy, error) {
	switch r.mode {
	case ruleOnly:
		if tier, ok := r.rule.Route(meta); ok {
			return tier, Rule, nil
		}
		def := r.cat.DefaultTier()
		if _, ok := r.sel.Select(def, selector.NewExclusion()); !ok {
			return 0, Rule, fmt.Errorf("routing: no rule matched and default tier %s has no healthy endpoints", def)
		}
		return def, Rule, nil
	case llmOnly:
		tier, err := r.llm.Route(ctx, userPrompt, meta)
		if err != nil {
			return 0, Llm, err
		}
		return tier, Llm, nil
	default:
		return NewHybridRouter(r.rule, r.llm).Route(ctx, userPrompt, meta)
	}
}
