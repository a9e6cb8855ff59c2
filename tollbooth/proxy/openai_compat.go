package proxy

// openAICompatRequest is the wire shape sent to OpenAI, Cerebras, xAI,
// and Vertex AI's OpenAI-compatible chat completions endpoint.
type openAICompatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

func toOpenAICompatRequest(req ChatRequest, modelName string) openAICompatRequest {
	out := openAICompatRequest{Model: modelName, Messages: req.Messages, MaxTokens: 4096, Temperature: 0.7}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	return out
}

// openAICompatResponse is the shape already OpenAI-canonical; every
// matching provider's response decodes directly into this struct and is
// forwarded (almost) verbatim, save for re-stamping the requested model
// name the caller sent — preserving the client's requested model string
// rather than whatever model alias the provider reports back.
type openAICompatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Choices []struct {
		Index        int     `json:"index"`
		FinishReason string  `json:"finish_reason"`
		Message      Message `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

func fromOpenAICompatResponse(resp openAICompatResponse, requestedModel string) ChatResponse {
	out := ChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.Created,
		Model:   requestedModel,
	}
	for _, c := range resp.Choices {
		out.Choices = append(out.Choices, ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      c.Message,
		})
	}
	if resp.Usage != nil {
		out.Usage = *resp.Usage
	}
	return out
}
