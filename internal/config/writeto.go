package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/tributary-ai/octoroute/internal/catalog"
)

// WriteTo serializes the resolved configuration back to TOML at path,
// refusing to overwrite an existing file: an operator who already has a
// file at path must move it aside first rather than risk a silent
// overwrite. The -write-default-config CLI flag uses WriteDefault instead.
func (c *Config) WriteTo(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: refusing to overwrite existing file %s", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("config: failed to stat %s: %w", path, err)
	}

	r := c.toRaw()
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(r); err != nil {
		return fmt.Errorf("config: failed to encode TOML: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	return nil
}

func (c *Config) toRaw() raw {
	r := raw{
		Server: serverRaw{
			Host:                  c.Host,
			Port:                  c.Port,
			RequestTimeoutSeconds: int(c.RequestTimeout.Seconds()),
		},
		Routing: routingRaw{
			Strategy:          c.Mode.String(),
			DefaultImportance: c.DefaultImportance.String(),
			RouterTier:        c.RouterTier.String(),
		},
		Observability: observabilityRaw{
			LogLevel:       c.LogLevel,
			MetricsEnabled: c.MetricsEnabled,
			MetricsPort:    c.MetricsPort,
		},
	}
	r.Models.Fast = endpointsToRaw(c.Catalog.Endpoints(catalog.Fast))
	r.Models.Balanced = endpointsToRaw(c.Catalog.Endpoints(catalog.Balanced))
	r.Models.Deep = endpointsToRaw(c.Catalog.Endpoints(catalog.Deep))
	return r
}

func endpointsToRaw(eps []catalog.Endpoint) []endpointRaw {
	out := make([]endpointRaw, 0, len(eps))
	for _, ep := range eps {
		temp, weight, priority := ep.Temperature, ep.Weight, ep.Priority
		out = append(out, endpointRaw{
			Name:        ep.Name,
			BaseURL:     ep.BaseURL,
			Protocol:    ep.Protocol,
			MaxTokens:   int64(ep.MaxTokens),
			Temperature: &temp,
			Weight:      &weight,
			Priority:    &priority,
		})
	}
	return out
}

// DefaultDocument is the starter TOML document written by
// -write-default-config when no configuration file exists yet.
const DefaultDocument = `[server]
host = "0.0.0.0"
port = 8080
request_timeout_seconds = 30

[[models.fast]]
name = "fast-default"
base_url = "http://localhost:1234/v1"
max_tokens = 4096
temperature = 0.7
weight = 1.0
priority = 1

[[models.balanced]]
name = "balanced-default"
base_url = "http://localhost:1235/v1"
max_tokens = 8192
temperature = 0.7
weight = 1.0
priority = 1

[[models.deep]]
name = "deep-default"
base_url = "http://localhost:1236/v1"
max_tokens = 16384
temperature = 0.7
weight = 1.0
priority = 1

[routing]
strategy = "hybrid"
default_importance = "normal"
router_tier = "balanced"

[observability]
log_level = "info"
metrics_enabled = false
metrics_port = 9090
`

// WriteDefault writes DefaultDocument to path, refusing to overwrite an
// existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: refusing to overwrite existing file %s", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(DefaultDocument), 0o644)
}
