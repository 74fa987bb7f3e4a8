package routing

import "github.com/tributary-ai/octoroute/internal/catalog"

// Strategy identifies which router produced a RoutingDecision. Hybrid is
// a meta-strategy: it is never recorded in metrics (spec §4.8), only the
// concrete Rule or Llm path that actually ran.
type Strategy int

const (
	Rule Strategy = iota
	Llm
	Hybrid
)

func (s Strategy) String() string {
	switch s {
	case Rule:
		return "rule"
	case Llm:
		return "llm"
	case Hybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// RoutingDecision is immutable after construction except for appending
// warnings accumulated during dispatch.
type RoutingDecision struct {
	Tier     catalog.Tier
	Strategy Strategy
	Warnings []string
}

// AddWarning appends a non-fatal warning, e.g. a health-tracking failure
// that must never fail the request outright.
func (d *RoutingDecision) AddWarning(w string) {
	d.Warnings = append(d.Warnings, w)
}

// QueryResult is the outcome of dispatching a RoutingDecision.
type QueryResult struct {
	Text     string
	Endpoint string
	Tier     catalog.Tier
	Strategy Strategy
	Warnings []string
}
