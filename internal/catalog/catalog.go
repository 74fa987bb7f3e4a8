// Package catalog holds the immutable, process-lifetime view of
// configured tiers and their endpoints, plus the startup validation
// that rejects a malformed configuration with a single descriptive error.
package catalog

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Tier is a coarse class of model capability/cost.
type Tier int

const (
	Fast Tier = iota
	Balanced
	Deep
)

func (t Tier) String() string {
	switch t {
	case Fast:
		return "fast"
	case Balanced:
		return "balanced"
	case Deep:
		return "deep"
	default:
		return "unknown"
	}
}

// ParseTier converts a lower-case configuration string into a Tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(s) {
	case "fast":
		return Fast, nil
	case "balanced":
		return Balanced, nil
	case "deep":
		return Deep, nil
	default:
		return 0, fmt.Errorf("unknown tier %q: must be one of fast, balanced, deep", s)
	}
}

// AllTiers lists every tier in catalog precedence order.
func AllTiers() []Tier { return []Tier{Fast, Balanced, Deep} }

// Endpoint is a concrete upstream serving one model. Endpoints are
// immutable for the process lifetime once the catalog has been built.
type Endpoint struct {
	Name        string
	BaseURL     string
	Protocol    string // "openai" (default) or "anthropic", see internal/upstream
	MaxTokens   int
	Temperature float64
	Weight      float64
	Priority    int
}

// Catalog maps Tier to its ordered sequence of endpoints and carries the
// per-tier default query timeout computed from configuration.
type Catalog struct {
	endpoints map[Tier][]Endpoint
	timeouts  map[Tier]time.Duration
	byName    map[string]Endpoint
}

// New validates the given per-tier endpoint lists and per-tier timeouts and
// builds an immutable Catalog. It fails with a single descriptive error
// naming the offending field, per spec §4.1.
func New(tierEndpoints map[Tier][]Endpoint, timeouts map[Tier]time.Duration) (*Catalog, error) {
	c := &Catalog{
		endpoints: make(map[Tier][]Endpoint, len(tierEndpoints)),
		timeouts:  make(map[Tier]time.Duration, len(timeouts)),
		byName:    make(map[string]Endpoint),
	}

	tierOfName := make(map[string]Tier)
	for _, tier := range AllTiers() {
		eps := tierEndpoints[tier]
		if len(eps) == 0 {
			return nil, fmt.Errorf("catalog: tier %s must have at least one endpoint", tier)
		}
		for _, ep := range eps {
			if err := validateEndpoint(tier, ep); err != nil {
				return nil, err
			}
			if prev, ok := tierOfName[ep.Name]; ok {
				if prev != tier {
					return nil, fmt.Errorf("catalog: duplicate endpoint name %q across tiers", ep.Name)
				}
				continue
			}
			tierOfName[ep.Name] = tier
			c.byName[ep.Name] = ep
		}
		c.endpoints[tier] = append([]Endpoint(nil), eps...)

		timeout, ok := timeouts[tier]
		if !ok {
			return nil, fmt.Errorf("catalog: missing timeout for tier %s", tier)
		}
		if timeout <= 0 || timeout > 300*time.Second {
			return nil, fmt.Errorf("catalog: timeout for tier %s must be in (0, 300] seconds, got %s", tier, timeout)
		}
		c.timeouts[tier] = timeout
	}

	return c, nil
}

func validateEndpoint(tier Tier, ep Endpoint) error {
	if ep.Name == "" {
		return fmt.Errorf("catalog: endpoint in tier %s has an empty name", tier)
	}
	if !strings.HasPrefix(ep.BaseURL, "http://") && !strings.HasPrefix(ep.BaseURL, "https://") {
		return fmt.Errorf("catalog: endpoint %q base_url must begin with http:// or https://, got %q", ep.Name, ep.BaseURL)
	}
	if ep.MaxTokens <= 0 || ep.MaxTokens > math.MaxUint32 {
		return fmt.Errorf("catalog: endpoint %q max_tokens must be in (0, 2^32-1], got %d", ep.Name, ep.MaxTokens)
	}
	if math.IsNaN(ep.Temperature) || math.IsInf(ep.Temperature, 0) || ep.Temperature < 0 || ep.Temperature > 2 {
		return fmt.Errorf("catalog: endpoint %q temperature must be finite and in [0, 2], got %v", ep.Name, ep.Temperature)
	}
	if math.IsNaN(ep.Weight) || math.IsInf(ep.Weight, 0) || ep.Weight <= 0 {
		return fmt.Errorf("catalog: endpoint %q weight must be finite and > 0, got %v", ep.Name, ep.Weight)
	}
	if ep.Priority < 0 {
		return fmt.Errorf("catalog: endpoint %q priority must be a non-negative integer, got %d", ep.Name, ep.Priority)
	}
	return nil
}

// Endpoints returns the configured endpoints for a tier, in catalog order.
func (c *Catalog) Endpoints(tier Tier) []Endpoint { return c.endpoints[tier] }

// Count returns the number of endpoints configured for a tier.
func (c *Catalog) Count(tier Tier) int { return len(c.endpoints[tier]) }

// Lookup finds an endpoint by name across all tiers.
func (c *Catalog) Lookup(name string) (Endpoint, bool) {
	ep, ok := c.byName[name]
	return ep, ok
}

// Timeout returns the configured default query timeout for a tier.
func (c *Catalog) Timeout(tier Tier) time.Duration { return c.timeouts[tier] }

// DefaultTier returns the tier containing the highest-priority endpoint
// across the whole catalog, preferring Fast -> Balanced -> Deep on ties.
func (c *Catalog) DefaultTier() Tier {
	best := Fast
	bestPriority := -1
	for _, tier := range AllTiers() {
		for _, ep := range c.endpoints[tier] {
			if ep.Priority > bestPriority {
				bestPriority = ep.Priority
				best = tier
			}
		}
	}
	return best
}

// AllEndpointNames returns every endpoint name in the catalog, used for
// sizing health-tracker state and for the /v1/models listing.
func (c *Catalog) AllEndpointNames() []string {
	names := make([]string, 0, len(c.byName))
	for _, tier := range AllTiers() {
		for _, ep := range c.endpoints[tier] {
			names = append(names, ep.Name)
		}
	}
	return names
}

// ProbeTargets satisfies internal/health.EndpointSource: every endpoint
// name mapped to its base URL, for the background HEAD-probe sweep.
func (c *Catalog) ProbeTargets() map[string]string {
	targets := make(map[string]string, len(c.byName))
	for name, ep := range c.byName {
		targets[name] = ep.BaseURL
	}
	return targets
}
