// Package config loads and validates octoroute's TOML configuration file,
// builds the endpoint catalog, and resolves the startup-time choices
// (routing mode, router tier, observability) that the rest of the
// application wires together.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/routing"
)

const (
	defaultRequestTimeoutSeconds = 30
	defaultLogLevel              = "info"
	defaultMetricsPort           = 9090
	defaultTierTimeoutSeconds    = 10
	defaultTemperature           = 0.7
	defaultWeight                = 1.0
	defaultPriority              = 1
)

// Mode is the startup routing strategy named in [routing].strategy.
// Tool is accepted by the grammar but rejected here: no Tool router is
// implemented, so naming it fails config load rather than silently
// falling back to something else.
type Mode int

const (
	RuleMode Mode = iota
	LlmMode
	HybridMode
)

func (m Mode) String() string {
	switch m {
	case RuleMode:
		return "rule"
	case LlmMode:
		return "llm"
	case HybridMode:
		return "hybrid"
	default:
		return "unknown"
	}
}

func parseMode(s string) (Mode, error) {
	switch s {
	case "rule":
		return RuleMode, nil
	case "llm":
		return LlmMode, nil
	case "hybrid":
		return HybridMode, nil
	case "tool":
		return 0, fmt.Errorf("routing.strategy 'tool' is not implemented by this gateway")
	default:
		return 0, fmt.Errorf("routing.strategy must be one of rule, llm, hybrid, got %q", s)
	}
}

// raw mirrors the TOML document shape exactly; field names match the
// configuration grammar this gateway exposes to operators.
type raw struct {
	Server        serverRaw        `toml:"server"`
	Models        modelsRaw        `toml:"models"`
	Routing       routingRaw       `toml:"routing"`
	Timeouts      *tierTimeoutsRaw `toml:"timeouts"`
	Observability observabilityRaw `toml:"observability"`
}

type serverRaw struct {
	Host                  string `toml:"host"`
	Port                  int    `toml:"port"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

type modelsRaw struct {
	Fast     []endpointRaw `toml:"fast"`
	Balanced []endpointRaw `toml:"balanced"`
	Deep     []endpointRaw `toml:"deep"`
}

type endpointRaw struct {
	Name        string   `toml:"name"`
	BaseURL     string   `toml:"base_url"`
	Protocol    string   `toml:"protocol"`
	MaxTokens   int64    `toml:"max_tokens"`
	Temperature *float64 `toml:"temperature"`
	Weight      *float64 `toml:"weight"`
	Priority    *int     `toml:"priority"`
}

type routingRaw struct {
	Strategy          string           `toml:"strategy"`
	DefaultImportance string           `toml:"default_importance"`
	RouterTier        string           `toml:"router_tier"`
	RouterTimeouts    *tierTimeoutsRaw `toml:"router_timeouts"`
}

type tierTimeoutsRaw struct {
	Fast     *int `toml:"fast"`
	Balanced *int `toml:"balanced"`
	Deep     *int `toml:"deep"`
}

type observabilityRaw struct {
	LogLevel       string `toml:"log_level"`
	MetricsEnabled bool   `toml:"metrics_enabled"`
	MetricsPort    int    `toml:"metrics_port"`
}

// Config is the resolved, validated application configuration: a built
// catalog plus the startup choices layered on top of it.
type Config struct {
	Host           string
	Port           int
	RequestTimeout time.Duration

	Catalog           *catalog.Catalog
	Mode              Mode
	RouterTier        catalog.Tier
	RouterTimeout     time.Duration
	DefaultImportance routing.Importance

	LogLevel       string
	MetricsEnabled bool
	MetricsPort    int

	path string // source file, consulted by WriteTo's overwrite guard
}

// Load reads, parses, and validates a TOML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var r raw
	if _, err := toml.Decode(string(data), &r); err != nil {
		return nil, fmt.Errorf("config: invalid TOML in %s: %w", path, err)
	}

	cfg, err := build(r)
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

func build(r raw) (*Config, error) {
	if r.Server.Host == "" {
		return nil, fmt.Errorf("config: server.host must not be empty")
	}
	if r.Server.Port <= 0 || r.Server.Port > 65535 {
		return nil, fmt.Errorf("config: server.port must be between 1 and 65535, got %d", r.Server.Port)
	}
	requestTimeoutSeconds := r.Server.RequestTimeoutSeconds
	if requestTimeoutSeconds == 0 {
		requestTimeoutSeconds = defaultRequestTimeoutSeconds
	}

	mode, err := parseMode(r.Routing.Strategy)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	routerTier, err := catalog.ParseTier(r.Routing.RouterTier)
	if err != nil {
		return nil, fmt.Errorf("config: routing.router_tier must be one of fast, balanced, deep, got %q", r.Routing.RouterTier)
	}

	importance := routing.ParseImportance(r.Routing.DefaultImportance)

	logLevel := r.Observability.LogLevel
	if logLevel == "" {
		logLevel = defaultLogLevel
	}
	metricsPort := r.Observability.MetricsPort
	if metricsPort == 0 {
		metricsPort = defaultMetricsPort
	}
	if r.Observability.MetricsEnabled && metricsPort == r.Server.Port {
		return nil, fmt.Errorf("config: observability.metrics_port (%d) must not equal server.port (%d)", metricsPort, r.Server.Port)
	}

	tierTimeouts, err := resolveTierTimeouts(r.Timeouts)
	if err != nil {
		return nil, fmt.Errorf("config: timeouts: %w", err)
	}

	endpoints := map[catalog.Tier][]catalog.Endpoint{
		catalog.Fast:     convertEndpoints(r.Models.Fast),
		catalog.Balanced: convertEndpoints(r.Models.Balanced),
		catalog.Deep:     convertEndpoints(r.Models.Deep),
	}

	cat, err := catalog.New(endpoints, tierTimeouts)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	routerTimeout := cat.Timeout(routerTier)
	if r.Routing.RouterTimeouts != nil {
		if override := tierOverride(r.Routing.RouterTimeouts, routerTier); override != nil {
			if *override <= 0 || *override > 300 {
				return nil, fmt.Errorf("config: routing.router_timeouts.%s must be between 1 and 300 seconds, got %d", routerTier, *override)
			}
			routerTimeout = time.Duration(*override) * time.Second
		}
	}

	return &Config{
		Host:              r.Server.Host,
		Port:              r.Server.Port,
		RequestTimeout:    time.Duration(requestTimeoutSeconds) * time.Second,
		Catalog:           cat,
		Mode:              mode,
		RouterTier:        routerTier,
		RouterTimeout:     routerTimeout,
		DefaultImportance: importance,
		LogLevel:          logLevel,
		MetricsEnabled:    r.Observability.MetricsEnabled,
		MetricsPort:       metricsPort,
	}, nil
}

func tierOverride(t *tierTimeoutsRaw, tier catalog.Tier) *int {
	switch tier {
	case catalog.Fast:
		return t.Fast
	case catalog.Balanced:
		return t.Balanced
	case catalog.Deep:
		return t.Deep
	default:
		return nil
	}
}

func resolveTierTimeouts(t *tierTimeoutsRaw) (map[catalog.Tier]time.Duration, error) {
	out := map[catalog.Tier]time.Duration{
		catalog.Fast:     defaultTierTimeoutSeconds * time.Second,
		catalog.Balanced: defaultTierTimeoutSeconds * time.Second,
		catalog.Deep:     defaultTierTimeoutSeconds * time.Second,
	}
	if t == nil {
		return out, nil
	}
	for tier, v := range map[catalog.Tier]*int{catalog.Fast: t.Fast, catalog.Balanced: t.Balanced, catalog.Deep: t.Deep} {
		if v == nil {
			continue
		}
		if *v <= 0 || *v > 300 {
			return nil, fmt.Errorf("%s must be between 1 and 300 seconds, got %d", tier, *v)
		}
		out[tier] = time.Duration(*v) * time.Second
	}
	return out, nil
}

func convertEndpoints(raws []endpointRaw) []catalog.Endpoint {
	out := make([]catalog.Endpoint, 0, len(raws))
	for _, r := range raws {
		ep := catalog.Endpoint{
			Name:        r.Name,
			BaseURL:     r.BaseURL,
			Protocol:    r.Protocol,
			MaxTokens:   int(r.MaxTokens),
			Temperature: defaultTemperature,
			Weight:      defaultWeight,
			Priority:    defaultPriority,
		}
		if ep.Protocol == "" {
			ep.Protocol = "openai"
		}
		if r.Temperature != nil {
			ep.Temperature = *r.Temperature
		}
		if r.Weight != nil {
			ep.Weight = *r.Weight
		}
		if r.Priority != nil {
			ep.Priority = *r.Priority
		}
		out = append(out, ep)
	}
	return out
}
