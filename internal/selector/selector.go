// Package selector picks one endpoint from a tier, honoring health,
// request-scoped exclusion, strict priority, and weighted random draw.
package selector

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/health"
)

// Exclusion is a request-scoped set of endpoint names, never shared
// across requests and never merged into the global health state.
type Exclusion map[string]struct{}

// NewExclusion returns an empty exclusion set.
func NewExclusion() Exclusion { return make(Exclusion) }

// Add records a name as excluded for the remainder of the request.
func (e Exclusion) Add(name string) { e[name] = struct{}{} }

func (e Exclusion) has(name string) bool {
	_, ok := e[name]
	return ok
}

// Selector draws one endpoint per call from the catalog, consulting the
// shared Tracker for health and a per-request Exclusion set.
type Selector struct {
	catalog *catalog.Catalog
	tracker *health.Tracker
	log     *logrus.Logger
	counts  [3]atomic.Int64 // indexed by catalog.Tier
}

// New builds a Selector bound to a catalog and health tracker.
func New(cat *catalog.Catalog, tracker *health.Tracker, log *logrus.Logger) *Selector {
	return &Selector{catalog: cat, tracker: tracker, log: log}
}

// Select implements the algorithm of spec §4.3: filter to healthy,
// non-excluded endpoints, restrict to the max priority among them, then
// draw weighted-randomly. Returns false if no endpoint qualifies.
func (s *Selector) Select(tier catalog.Tier, excl Exclusion) (catalog.Endpoint, bool) {
	all := s.catalog.Endpoints(tier)
	if len(all) == 0 {
		return catalog.Endpoint{}, false
	}

	filtered := make([]catalog.Endpoint, 0, len(all))
	for _, ep := range all {
		if !s.tracker.IsHealthy(ep.Name) {
			continue
		}
		if excl.has(ep.Name) {
			continue
		}
		filtered = append(filtered, ep)
	}
	if len(filtered) == 0 {
		return catalog.Endpoint{}, false
	}

	maxPriority := filtered[0].Priority
	for _, ep := range filtered[1:] {
		if ep.Priority > maxPriority {
			maxPriority = ep.Priority
		}
	}
	kept := filtered[:0:0]
	for _, ep := range filtered {
		if ep.Priority == maxPriority {
			kept = append(kept, ep)
		}
	}

	var totalWeight float64
	for _, ep := range kept {
		totalWeight += ep.Weight
	}
	if totalWeight <= 0 {
		s.log.WithField("tier", tier.String()).Error("selector: memory corruption detected, total weight <= 0 after validated config")
		return catalog.Endpoint{}, false
	}

	draw := rand.Float64() * totalWeight
	var cumulative float64
	chosen := kept[len(kept)-1]
	for _, ep := range kept {
		cumulative += ep.Weight
		if draw < cumulative {
			chosen = ep
			break
		}
	}

	s.counts[tier].Add(1)
	return chosen, true
}

// SelectionCount returns the relaxed selection counter for a tier.
func (s *Selector) SelectionCount(tier catalog.Tier) int64 { return s.counts[tier].Load() }

// DefaultTier delegates to the catalog's highest-priority-endpoint rule.
func (s *Selector) DefaultTier() catalog.Tier { return s.catalog.DefaultTier() }

// TierSelector is bound to exactly one tier at construction, so a
// component that should only consult one tier (the LLM router) cannot
// reach any other.
type TierSelector struct {
	sel  *Selector
	tier catalog.Tier
}

// NewTierSelector validates that the tier is non-empty before binding.
func NewTierSelector(sel *Selector, cat *catalog.Catalog, tier catalog.Tier) (*TierSelector, error) {
	if cat.Count(tier) == 0 {
		return nil, &EmptyTierError{Tier: tier}
	}
	return &TierSelector{sel: sel, tier: tier}, nil
}

// Select draws from the single bound tier.
func (t *TierSelector) Select(excl Exclusion) (catalog.Endpoint, bool) {
	return t.sel.Select(t.tier, excl)
}

// EmptyTierError reports that a TierSelector was asked to bind to a tier
// with no configured endpoints.
type EmptyTierError struct{ Tier catalog.Tier }

func (e *EmptyTierError) Error() string {
	return "selector: tier " + e.Tier.String() + " has no configured endpoints"
}
