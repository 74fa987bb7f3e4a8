package upstream

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
)

// anthropicClient wraps anthropic-sdk-go for endpoints whose protocol is
// "anthropic": self-hosted shims exposing the Messages API shape.
type anthropicClient struct {
	client *anthropic.Client
	model  string
	log    *logrus.Logger
}

// NewAnthropicClient builds a Client bound to one endpoint's base URL and
// model name.
func NewAnthropicClient(baseURL, model string, log *logrus.Logger) Client {
	client := anthropic.NewClient(option.WithBaseURL(baseURL))
	return &anthropicClient{client: &client, model: model, log: log}
}

func (c *anthropicClient) Query(ctx context.Context, opts QueryOptions) (ContentStream, error) {
	var system string
	msgs := make([]anthropic.MessageParam, 0, len(opts.Messages))
	for _, m := range opts.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		role := anthropic.MessageParamRoleUser
		if m.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		msgs = append(msgs, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{{OfText: &anthropic.TextBlockParam{Text: m.Content}}},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(opts.MaxTokens),
		Messages:    msgs,
		Temperature: anthropic.Float(opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{stream: stream}, nil
}

type anthropicStream struct {
	stream  *anthropic.MessageStream
	message anthropic.Message
}

func (s *anthropicStream) Next(ctx context.Context) (ContentBlock, bool, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		if err := s.message.Accumulate(event); err != nil {
			return ContentBlock{}, false, err
		}
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
				return ContentBlock{Kind: TextBlock, Text: text.Text}, true, nil
			}
		}
	}
	if err := s.stream.Err(); err != nil {
		return ContentBlock{}, false, err
	}
	return ContentBlock{}, false, nil
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}
