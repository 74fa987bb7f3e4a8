package types

// ChatRequest is the OpenAI-compatible /v1/chat/completions request body.
type ChatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Stream           bool      `json:"stream"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	MaxTokens        *int      `json:"max_tokens,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
}

// Message is a single chat turn. Content is a plain string; the multimodal
// content-part shape is not part of this gateway's contract.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the legacy /chat request body.
type ChatCompletionRequest struct {
	Message      string `json:"message"`
	Importance   string `json:"importance,omitempty"`
	TaskType     string `json:"task_type,omitempty"`
}
