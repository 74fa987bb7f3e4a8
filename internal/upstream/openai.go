package upstream

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// openaiClient wraps go-openai for endpoints whose protocol is "openai"
// (the default): self-hosted OpenAI-compatible servers such as vLLM, TGI,
// or llama.cpp's server mode.
type openaiClient struct {
	client *openai.Client
	model  string
	log    *logrus.Logger
}

// NewOpenAIClient builds a Client bound to one endpoint's base URL and
// model name.
func NewOpenAIClient(baseURL, model string, log *logrus.Logger) Client {
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = baseURL
	return &openaiClient{client: openai.NewClientWithConfig(cfg), model: model, log: log}
}

func (c *openaiClient) Query(ctx context.Context, opts QueryOptions) (ContentStream, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(opts.Messages))
	for _, m := range opts.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		Stream:      true,
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &openaiStream{stream: stream, log: c.log}, nil
}

type openaiStream struct {
	stream *openai.ChatCompletionStream
	log    *logrus.Logger
}

func (s *openaiStream) Next(ctx context.Context) (ContentBlock, bool, error) {
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return ContentBlock{}, false, nil
	}
	if err != nil {
		return ContentBlock{}, false, err
	}
	if len(resp.Choices) == 0 {
		return ContentBlock{Kind: OtherBlock}, true, nil
	}
	return ContentBlock{Kind: TextBlock, Text: resp.Choices[0].Delta.Content}, true, nil
}

func (s *openaiStream) Close() error {
	s.stream.Close()
	return nil
}
