// Package upstream abstracts the concrete LLM client libraries behind a
// single protocol-agnostic interface. The dispatcher, selector, and
// routers only ever see Client; this is the only package that imports
// either go-openai or anthropic-sdk-go.
package upstream

import (
	"context"
)

// QueryOptions carries one query's parameters, built from the selected
// endpoint and overridden with request-level values when given.
type QueryOptions struct {
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
	Stream      bool
}

// ChatMessage is a protocol-neutral chat turn.
type ChatMessage struct {
	Role    string
	Content string
}

// BlockKind distinguishes text content blocks from anything else the
// upstream might emit; non-text blocks are logged and skipped per spec §4.7.
type BlockKind int

const (
	TextBlock BlockKind = iota
	OtherBlock
)

// ContentBlock is one unit of a streamed response.
type ContentBlock struct {
	Kind BlockKind
	Text string
}

// ContentStream delivers content blocks until closed. Next returns any
// terminal error observed by the producer; on clean completion it returns
// more=false with a nil error.
type ContentStream interface {
	Next(ctx context.Context) (ContentBlock, bool, error)
	Close() error
}

// Client queries one upstream endpoint. Implementations must not retry;
// retry policy belongs entirely to internal/dispatch.
type Client interface {
	Query(ctx context.Context, opts QueryOptions) (ContentStream, error)
}
