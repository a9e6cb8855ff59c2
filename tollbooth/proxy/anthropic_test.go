package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAnthropicRequest_PullsSystemMessageOut(t *testing.T) {
	maxTokens := 512
	req := ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "be concise"},
			{Role: "user", Content: "hello"},
		},
		MaxTokens: &maxTokens,
	}
	out := toAnthropicRequest(req, "claude-3-5-sonnet-20241022")
	assert.Equal(t, "be concise", out.System)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "user", out.Messages[0].Role)
	assert.Equal(t, 512, out.MaxTokens)
}

func TestToAnthropicRequest_DefaultsMaxTokensTo4096(t *testing.T) {
	req := ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}
	out := toAnthropicRequest(req, "claude-3-5-sonnet-20241022")
	assert.Equal(t, 4096, out.MaxTokens)
}

func TestAnthropicFinishReason_MapsKnownReasons(t *testing.T) {
	assert.Equal(t, "stop", anthropicFinishReason("end_turn"))
	assert.Equal(t, "length", anthropicFinishReason("max_tokens"))
	assert.Equal(t, "stop", anthropicFinishReason(""))
	assert.Equal(t, "tool_use", anthropicFinishReason("tool_use"))
}

func TestFromAnthropicResponse_TranslatesContentAndUsage(t *testing.T) {
	resp := anthropicResponse{
		ID:         "msg_123",
		Content:    []anthropicContent{{Type: "text", Text: "hello there"}},
		StopReason: "end_turn",
		Usage:      anthropicUsage{InputTokens: 10, OutputTokens: 5},
	}
	out := fromAnthropicResponse(resp, "claude-3-5-sonnet-20241022", 1700000000)
	assert.Equal(t, "msg_123", out.ID)
	assert.Equal(t, "chat.completion", out.Object)
	require.Len(t, out.Choices, 1)
	assert.Equal(t, "hello there", out.Choices[0].Message.Content)
	assert.Equal(t, "stop", out.Choices[0].FinishReason)
	assert.Equal(t, 15, out.Usage.TotalTokens)
}

func TestFromAnthropicResponse_MissingIDGetsFallback(t *testing.T) {
	out := fromAnthropicResponse(anthropicResponse{}, "claude-3-5-sonnet-20241022", 0)
	assert.Equal(t, "chatcmpl-anthropic", out.ID)
}
