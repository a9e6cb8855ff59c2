// Package proxy implements the metered LLM proxy: budget/subscription
// admission, provider routing across OpenAI-compatible, Anthropic, and
// Vertex AI backends, request/response translation to a single
// OpenAI-canonical wire shape, and usage-based billing.
//
// Like the service it replaces, this proxy never logs or persists a
// prompt or completion body. It only ever inspects the usage block of a
// response to compute cost.
package proxy

// ChatRequest is the OpenAI-compatible request shape every client speaks,
// regardless of which upstream provider ultimately serves it.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
	Stream      *bool     `json:"stream,omitempty"`
}

// Message is one OpenAI-format chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is token accounting, reported back to the caller and used to
// compute the cost charged against the user's budget.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the OpenAI-compatible response shape returned to every
// client, after translating whatever the chosen provider actually sent.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// ChatChoice is a single completion choice.
type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason"`
	Message      Message `json:"message"`
}

// StreamChunk is one OpenAI-format SSE "chat.completion.chunk" event.
type StreamChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []StreamDelta `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// StreamDelta is one choice within a StreamChunk.
type StreamDelta struct {
	Index        int          `json:"index"`
	Delta        DeltaContent `json:"delta"`
	FinishReason *string      `json:"finish_reason"`
}

// DeltaContent is the incremental content of a streamed choice.
type DeltaContent struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}
