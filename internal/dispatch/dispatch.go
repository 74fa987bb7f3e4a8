// Package dispatch executes a routing decision against its target tier:
// endpoint selection, upstream query, retry with exponential backoff, and
// health bookkeeping.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/health"
	"github.com/tributary-ai/octoroute/internal/metrics"
	"github.com/tributary-ai/octoroute/internal/routing"
	"github.com/tributary-ai/octoroute/internal/selector"
	"github.com/tributary-ai/octoroute/internal/upstream"
)

// Config holds the dispatcher's retry tuning.
type Config struct {
	MaxRetries    int // >= 1, default 3
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
}

// DefaultConfig matches spec §4.7's defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, BaseBackoff: 100 * time.Millisecond, MaxBackoff: 30 * time.Second}
}

// ErrorKind classifies a dispatch-level error.
type ErrorKind int

const (
	RoutingExhausted ErrorKind = iota
	UpstreamTransient
	UpstreamSystemic
	UpstreamTimeout
	Internal
)

// Error is the structured error the HTTP layer maps to a status code.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// ClientFactory resolves an upstream.Client for a given endpoint,
// selecting the protocol adapter per endpoint, per SPEC_FULL §2.1.
type ClientFactory func(catalog.Endpoint) upstream.Client

// Dispatcher is the central engine described by spec §4.7.
type Dispatcher struct {
	cat     *catalog.Catalog
	sel     *selector.Selector
	tracker *health.Tracker
	clients ClientFactory
	metrics *metrics.Sink
	cfg     Config
	log     *logrus.Logger
}

// New builds a Dispatcher.
func New(cat *catalog.Catalog, sel *selector.Selector, tracker *health.Tracker, clients ClientFactory, sink *metrics.Sink, cfg Config, log *logrus.Logger) *Dispatcher {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Dispatcher{cat: cat, sel: sel, tracker: tracker, clients: clients, metrics: sink, cfg: cfg, log: log}
}

// backoff computes base * 2^(attempt-1), saturated at MaxBackoff, with
// attempt 0 treated as 1 and no wrap on large attempt numbers.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 20 { // 2^20 * base already dwarfs any sane MaxBackoff
		return d.cfg.MaxBackoff
	}
	delay := d.cfg.BaseBackoff * time.Duration(uint64(1)<<uint(shift))
	if delay <= 0 || delay > d.cfg.MaxBackoff {
		return d.cfg.MaxBackoff
	}
	return delay
}

func (d *Dispatcher) markSuccess(name string, decision *routing.RoutingDecision) {
	if err := d.tracker.MarkSuccess(name); err != nil {
		d.log.WithError(err).WithField("endpoint", name).Warn("dispatch: health tracking failure on success path")
		d.metrics.RecordHealthTrackingFailure(name, metrics.UnknownEndpointError)
		decision.AddWarning("health tracking unavailable for " + name)
	}
}

func (d *Dispatcher) markFailure(name string, decision *routing.RoutingDecision) {
	if err := d.tracker.MarkFailure(name); err != nil {
		d.log.WithError(err).WithField("endpoint", name).Warn("dispatch: health tracking failure on failure path")
		d.metrics.RecordHealthTrackingFailure(name, metrics.UnknownEndpointError)
		decision.AddWarning("health tracking unavailable for " + name)
	}
}

// Dispatch executes the non-streaming path of spec §4.7.
func (d *Dispatcher) Dispatch(ctx context.Context, decision *routing.RoutingDecision, messages []upstream.ChatMessage, overrideMaxTokens *int, overrideTemperature *float64) (routing.QueryResult, error) {
	excl := selector.NewExclusion()
	timeout := d.cat.Timeout(decision.Tier)

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(d.backoff(attempt - 1)):
			case <-ctx.Done():
				return routing.QueryResult{}, &Error{Kind: Internal, Message: "request cancelled during retry backoff", Cause: ctx.Err()}
			}
		}

		ep, ok := d.sel.Select(decision.Tier, excl)
		if !ok {
			lastErr = &Error{Kind: RoutingExhausted, Message: "no healthy endpoint available in tier " + decision.Tier.String()}
			continue
		}

		opts := upstream.QueryOptions{Messages: messages, MaxTokens: ep.MaxTokens, Temperature: ep.Temperature}
		if overrideMaxTokens != nil {
			opts.MaxTokens = *overrideMaxTokens
		}
		if overrideTemperature != nil {
			opts.Temperature = *overrideTemperature
		}

		text, err := d.queryOnce(ctx, ep, opts, timeout)
		if err != nil {
			d.markFailure(ep.Name, decision)
			excl.Add(ep.Name)
			lastErr = classifyQueryError(ep.Name, err)
			continue
		}

		d.markSuccess(ep.Name, decision)
		d.metrics.RecordModelInvocation(decision.Tier)
		return routing.QueryResult{
			Text:     text,
			Endpoint: ep.Name,
			Tier:     decision.Tier,
			Strategy: decision.Strategy,
			Warnings: decision.Warnings,
		}, nil
	}

	if lastErr == nil {
		return routing.QueryResult{}, &Error{Kind: Internal, Message: fmt.Sprintf("dispatch: exhausted retries with no recorded error (exclusion set size %d)", len(excl))}
	}
	return routing.QueryResult{}, lastErr
}

// DispatchToEndpoint bypasses tier selection entirely, querying one
// specific endpoint named directly by the caller (spec §6's "model"
// field naming a concrete endpoint rather than a tier). It still retries
// against that same endpoint on transient failure, since there is no
// alternate to fail over to.
func (d *Dispatcher) DispatchToEndpoint(ctx context.Context, ep catalog.Endpoint, tier catalog.Tier, decision *routing.RoutingDecision, messages []upstream.ChatMessage, overrideMaxTokens *int, overrideTemperature *float64) (routing.QueryResult, error) {
	timeout := d.cat.Timeout(tier)

	opts := upstream.QueryOptions{Messages: messages, MaxTokens: ep.MaxTokens, Temperature: ep.Temperature}
	if overrideMaxTokens != nil {
		opts.MaxTokens = *overrideMaxTokens
	}
	if overrideTemperature != nil {
		opts.Temperature = *overrideTemperature
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(d.backoff(attempt - 1)):
			case <-ctx.Done():
				return routing.QueryResult{}, &Error{Kind: Internal, Message: "request cancelled during retry backoff", Cause: ctx.Err()}
			}
		}

		text, err := d.queryOnce(ctx, ep, opts, timeout)
		if err != nil {
			d.markFailure(ep.Name, decision)
			lastErr = classifyQueryError(ep.Name, err)
			continue
		}

		d.markSuccess(ep.Name, decision)
		d.metrics.RecordModelInvocation(tier)
		return routing.QueryResult{Text: text, Endpoint: ep.Name, Tier: tier, Strategy: decision.Strategy, Warnings: decision.Warnings}, nil
	}

	return routing.QueryResult{}, lastErr
}

// classifyQueryError distinguishes an endpoint timing out from other
// upstream failures, so the HTTP layer can return 504 instead of 502 per
// spec §7.
func classifyQueryError(name string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: UpstreamTimeout, Message: "upstream query timed out for " + name, Cause: err}
	}
	return &Error{Kind: UpstreamTransient, Message: "upstream query failed for " + name, Cause: err}
}

func (d *Dispatcher) queryOnce(ctx context.Context, ep catalog.Endpoint, opts upstream.QueryOptions, timeout time.Duration) (string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := d.clients(ep)
	stream, err := client.Query(queryCtx, opts)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var text string
	for {
		block, more, serr := stream.Next(queryCtx)
		if serr != nil {
			return "", serr
		}
		if !more {
			break
		}
		if block.Kind == upstream.TextBlock {
			text += block.Text
		} else {
			d.log.WithField("endpoint", ep.Name).Debug("dispatch: skipping non-text content block")
		}
	}
	return text, nil
}
