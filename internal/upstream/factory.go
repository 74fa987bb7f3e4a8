package upstream

import "github.com/sirupsen/logrus"

// New builds the appropriate Client implementation for an endpoint's
// configured protocol ("openai" by default, or "anthropic").
func New(protocol, baseURL, model string, log *logrus.Logger) Client {
	switch protocol {
	case "anthropic":
		return NewAnthropicClient(baseURL, model, log)
	default:
		return NewOpenAIClient(baseURL, model, log)
	}
}
