// Package health tracks per-endpoint availability and runs the
// background prober that keeps that state current.
package health

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// failureThreshold is the number of consecutive failures after which an
// endpoint transitions from Healthy to Unhealthy.
const failureThreshold = 3

// ErrorKind classifies a HealthError without string matching.
type ErrorKind int

const (
	UnknownEndpoint ErrorKind = iota
	ProbeClientBuildFailed
)

// Error is the typed error returned by mark operations, never surfaced to
// callers as a bare string.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Cause    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case UnknownEndpoint:
		return fmt.Sprintf("health: unknown endpoint %q", e.Endpoint)
	case ProbeClientBuildFailed:
		return fmt.Sprintf("health: could not build probe client for %q: %v", e.Endpoint, e.Cause)
	default:
		return fmt.Sprintf("health: error for %q", e.Endpoint)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

type state struct {
	healthy             bool
	consecutiveFailures int
}

// Status is a snapshot of one endpoint's health, returned by AllStatuses.
type Status struct {
	Endpoint            string
	Healthy             bool
	ConsecutiveFailures int
}

// Tracker holds the shared health map. Reads (is_healthy, selection) take
// the read lock; writes (mark_success, mark_failure) take the write lock.
// Critical sections are small per spec §5.
type Tracker struct {
	mu  sync.RWMutex
	m   map[string]*state
	log *logrus.Logger
}

// New builds a Tracker with every given endpoint name initially Healthy.
func New(log *logrus.Logger, endpointNames []string) *Tracker {
	m := make(map[string]*state, len(endpointNames))
	for _, name := range endpointNames {
		m[name] = &state{healthy: true}
	}
	return &Tracker{m: m, log: log}
}

// IsHealthy returns whether the endpoint is currently considered healthy.
// Unknown names are treated as unhealthy, never an error (per spec §4.2).
func (t *Tracker) IsHealthy(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.m[name]
	if !ok {
		return false
	}
	return s.healthy
}

// MarkSuccess resets the failure counter and restores health in one step.
func (t *Tracker) MarkSuccess(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.m[name]
	if !ok {
		return &Error{Kind: UnknownEndpoint, Endpoint: name}
	}
	s.consecutiveFailures = 0
	if !s.healthy {
		s.healthy = true
		t.log.WithField("endpoint", name).Info("health: endpoint recovered")
	}
	return nil
}

// MarkFailure increments the failure counter and transitions to Unhealthy
// once the threshold is reached.
func (t *Tracker) MarkFailure(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.m[name]
	if !ok {
		return &Error{Kind: UnknownEndpoint, Endpoint: name}
	}
	s.consecutiveFailures++
	if s.consecutiveFailures >= failureThreshold && s.healthy {
		s.healthy = false
		t.log.WithField("endpoint", name).Warn("health: endpoint marked unhealthy")
	}
	return nil
}

// AllStatuses returns a snapshot of every tracked endpoint.
func (t *Tracker) AllStatuses() []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Status, 0, len(t.m))
	for name, s := range t.m {
		out = append(out, Status{Endpoint: name, Healthy: s.healthy, ConsecutiveFailures: s.consecutiveFailures})
	}
	return out
}
