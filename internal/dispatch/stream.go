package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/tributary-ai/octoroute/internal/catalog"
	"github.com/tributary-ai/octoroute/internal/routing"
	"github.com/tributary-ai/octoroute/internal/selector"
	"github.com/tributary-ai/octoroute/internal/upstream"
)

// StreamEvent is one unit handed to the HTTP layer's SSE writer. Role is
// set only on the first event; FinishReason is set only on the terminal
// non-error event; IsError marks the synthetic mid-stream error chunk.
type StreamEvent struct {
	Role         string
	Content      string
	FinishReason string
	IsError      bool
}

// StreamHandle lets the HTTP layer drain events and learn, after the
// channel closes, which endpoint served the request and whether a
// mid-stream error occurred.
type StreamHandle struct {
	Events   <-chan StreamEvent
	Endpoint string

	errorOccurred atomic.Bool
}

// ErrorOccurred reports the stream-scoped flag set on a mid-stream error.
// Sequentially consistent per spec §5(v): the HTTP layer's post-stream
// hook must observe any mid-stream store.
func (h *StreamHandle) ErrorOccurred() bool { return h.errorOccurred.Load() }

// DispatchStream implements the streaming path of spec §4.7: endpoint
// selection happens exactly once, with no retry after the caller sends
// HTTP response headers.
func (d *Dispatcher) DispatchStream(ctx context.Context, decision *routing.RoutingDecision, messages []upstream.ChatMessage, overrideMaxTokens *int, overrideTemperature *float64, requestID string) (*StreamHandle, error) {
	ep, ok := d.sel.Select(decision.Tier, selector.NewExclusion())
	if !ok {
		return nil, &Error{Kind: RoutingExhausted, Message: "no healthy endpoint available in tier " + decision.Tier.String()}
	}
	return d.dispatchStreamToEndpoint(ctx, ep, decision, messages, overrideMaxTokens, overrideTemperature, requestID)
}

// DispatchStreamToEndpoint streams from one specific endpoint named
// directly by the caller, bypassing tier selection entirely.
func (d *Dispatcher) DispatchStreamToEndpoint(ctx context.Context, ep catalog.Endpoint, decision *routing.RoutingDecision, messages []upstream.ChatMessage, overrideMaxTokens *int, overrideTemperature *float64, requestID string) (*StreamHandle, error) {
	return d.dispatchStreamToEndpoint(ctx, ep, decision, messages, overrideMaxTokens, overrideTemperature, requestID)
}

func (d *Dispatcher) dispatchStreamToEndpoint(ctx context.Context, ep catalog.Endpoint, decision *routing.RoutingDecision, messages []upstream.ChatMessage, overrideMaxTokens *int, overrideTemperature *float64, requestID string) (*StreamHandle, error) {
	opts := upstream.QueryOptions{Messages: messages, MaxTokens: ep.MaxTokens, Temperature: ep.Temperature, Stream: true}
	if overrideMaxTokens != nil {
		opts.MaxTokens = *overrideMaxTokens
	}
	if overrideTemperature != nil {
		opts.Temperature = *overrideTemperature
	}

	timeout := d.cat.Timeout(decision.Tier)
	queryCtx, cancel := context.WithTimeout(ctx, timeout)

	client := d.clients(ep)
	upstreamStream, err := client.Query(queryCtx, opts)
	if err != nil {
		cancel()
		d.markFailure(ep.Name, decision)
		if derr := classifyQueryError(ep.Name, err); derr.Kind == UpstreamTimeout {
			return nil, derr
		}
		return nil, &Error{Kind: UpstreamSystemic, Message: "failed to open upstream stream for " + ep.Name, Cause: err}
	}

	events := make(chan StreamEvent, 8)
	handle := &StreamHandle{Events: events, Endpoint: ep.Name}

	go func() {
		defer cancel()
		defer close(events)
		defer upstreamStream.Close()

		events <- StreamEvent{Role: "assistant"}

		for {
			block, more, serr := upstreamStream.Next(queryCtx)
			if serr != nil {
				handle.errorOccurred.Store(true)
				events <- StreamEvent{Content: "[error: upstream stream interrupted, request " + requestID + "]", IsError: true}
				d.metrics.RecordMidStreamFailure(ep.Name)
				return
			}
			if !more {
				break
			}
			if block.Kind != upstream.TextBlock {
				d.log.WithField("endpoint", ep.Name).Debug("dispatch: skipping non-text content block in stream")
				continue
			}
			events <- StreamEvent{Content: block.Text}
		}

		events <- StreamEvent{FinishReason: "stop"}
		d.markSuccess(ep.Name, decision)
		d.metrics.RecordModelInvocation(decision.Tier)
	}()

	return handle, nil
}
