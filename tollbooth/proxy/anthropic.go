package proxy

import "strings"

// anthropicRequest is the Messages API request shape. Built and parsed by
// hand rather than through a client SDK: this proxy only ever needs to
// translate two JSON shapes, never the full Anthropic surface (tool use,
// vision, caching) a client library would otherwise pull in.
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// toAnthropicRequest builds an Anthropic Messages API request from an
// OpenAI-canonical one. The system message, if present, is pulled out of
// the messages array into the top-level "system" field; max_tokens is
// mandatory for Anthropic (defaulted to 4096 when the caller omits it).
func toAnthropicRequest(req ChatRequest, modelName string) anthropicRequest {
	out := anthropicRequest{Model: modelName}
	for _, m := range req.Messages {
		if m.Role == "system" {
			out.System = m.Content
			continue
		}
		out.Messages = append(out.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	} else {
		out.MaxTokens = 4096
	}
	out.Temperature = req.Temperature
	return out
}

// anthropicFinishReason maps Anthropic's stop_reason vocabulary onto
// OpenAI's finish_reason vocabulary.
func anthropicFinishReason(stopReason string) string {
	switch stopReason {
	case "end_turn":
		return "stop"
	case "max_tokens":
		return "length"
	case "":
		return "stop"
	default:
		return stopReason
	}
}

// fromAnthropicResponse converts an Anthropic Messages API response into
// the OpenAI-canonical ChatResponse every client sees.
func fromAnthropicResponse(resp anthropicResponse, model string, createdAt int64) ChatResponse {
	var b strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	text := b.String()
	id := resp.ID
	if id == "" {
		id = "chatcmpl-anthropic"
	}
	usage := Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	return ChatResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: createdAt,
		Model:   model,
		Choices: []ChatChoice{{
			Index:        0,
			FinishReason: anthropicFinishReason(resp.StopReason),
			Message:      Message{Role: "assistant", Content: text},
		}},
		Usage: usage,
	}
}
