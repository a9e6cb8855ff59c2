package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lifelog/core/lifelog"
)

// sseDoneMarker is the terminal sentinel every OpenAI-compatible SSE
// stream sends before closing.
const sseDoneMarker = "[DONE]"

// Stream serves a streaming chat-completions request, writing
// OpenAI-format "data: {...}\n\n" frames directly to w as they arrive.
// Budget is admitted up front exactly as the non-streaming path; billing
// happens once at the end of the stream, from the usage frame the
// provider sends in its final chunk (or, for Anthropic, accumulated from
// the message_start/message_delta events).
func (h *Handler) Stream(ctx context.Context, w http.ResponseWriter, userID string, req ChatRequest) error {
	if err := h.admit(userID); err != nil {
		return err
	}

	provider, ok := GetProviderConfig(req.Model, h.config)
	if !ok {
		return lifelog.UpstreamHTTP("unknown", http.StatusServiceUnavailable,
			fmt.Sprintf("no provider configured for model: %s", req.Model))
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	upstreamResp, err := h.openStream(ctx, provider, req)
	if err != nil {
		return err
	}
	defer upstreamResp.Body.Close()

	if upstreamResp.StatusCode >= 400 {
		body := make([]byte, 2048)
		n, _ := upstreamResp.Body.Read(body)
		return lifelog.UpstreamHTTP(provider.Name, upstreamResp.StatusCode, truncate(string(body[:n]), 500))
	}

	var usage Usage
	switch provider.Kind {
	case KindAnthropic:
		usage = h.relayAnthropicStream(upstreamResp, req, w, flusher, canFlush)
	default:
		usage = h.relayOpenAICompatStream(upstreamResp, req, w, flusher, canFlush)
	}

	cost := CalculateCost(req.Model, usage.PromptTokens, usage.CompletionTokens)
	h.budget.Deduct(userID, cost)
	if h.metrics != nil {
		h.metrics.RecordTollboothRequest(provider.Name, req.Model, "ok", 0, usage.PromptTokens, usage.CompletionTokens, 0)
	}
	return nil
}

func (h *Handler) openStream(ctx context.Context, provider ProviderConfig, req ChatRequest) (*http.Response, error) {
	var body []byte
	var err error
	switch provider.Kind {
	case KindAnthropic:
		ar := toAnthropicRequest(req, provider.ModelName)
		body, err = json.Marshal(struct {
			anthropicRequest
			Stream bool `json:"stream"`
		}{ar, true})
	default:
		oc := toOpenAICompatRequest(req, provider.ModelName)
		body, err = json.Marshal(struct {
			openAICompatRequest
			Stream bool `json:"stream"`
		}{oc, true})
	}
	if err != nil {
		return nil, lifelog.Wrap(lifelog.KindEncoding, "marshaling streaming request", err)
	}

	endpoint := provider.Endpoint
	if provider.Kind == KindVertexAI {
		endpoint = VertexEndpoint(h.config)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, lifelog.Wrap(lifelog.KindNetwork, "building streaming request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := h.authenticate(ctx, httpReq, provider); err != nil {
		return nil, err
	}
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, lifelog.Wrap(lifelog.KindNetwork, "calling provider", err)
	}
	return resp, nil
}

// relayOpenAICompatStream forwards an already-OpenAI-shaped SSE stream
// near-verbatim, accumulating the final usage frame if the provider
// sends one (not all OpenAI-compatible providers do).
func (h *Handler) relayOpenAICompatStream(resp *http.Response, req ChatRequest, w http.ResponseWriter, flusher http.Flusher, canFlush bool) Usage {
	var usage Usage
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == sseDoneMarker {
			fmt.Fprintf(w, "data: %s\n\n", sseDoneMarker)
			break
		}
		var chunk StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err == nil && chunk.Usage != nil {
			usage = *chunk.Usage
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		if canFlush {
			flusher.Flush()
		}
	}
	return usage
}

// anthropicStreamEvent covers the handful of Anthropic SSE event types
// this proxy needs to re-frame into OpenAI chunks: content_block_delta
// carries text, message_delta carries the final usage/stop_reason.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// relayAnthropicStream re-frames Anthropic's event stream into OpenAI
// chat.completion.chunk shape, applying the same content/usage extraction
// as the non-streaming path incrementally per event instead of once at
// the end.
func (h *Handler) relayAnthropicStream(resp *http.Response, req ChatRequest, w http.ResponseWriter, flusher http.Flusher, canFlush bool) Usage {
	var usage Usage
	id := fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano())
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		var ev anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "message_start":
			usage.PromptTokens = ev.Message.Usage.InputTokens
		case "content_block_delta":
			if ev.Delta.Text == "" {
				continue
			}
			chunk := StreamChunk{
				ID: id, Object: "chat.completion.chunk", Created: time.Now().Unix(), Model: req.Model,
				Choices: []StreamDelta{{Index: 0, Delta: DeltaContent{Content: ev.Delta.Text}}},
			}
			out, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", out)
			if canFlush {
				flusher.Flush()
			}
		case "message_delta":
			usage.CompletionTokens = ev.Usage.OutputTokens
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			finish := anthropicFinishReason(ev.Delta.StopReason)
			chunk := StreamChunk{
				ID: id, Object: "chat.completion.chunk", Created: time.Now().Unix(), Model: req.Model,
				Choices: []StreamDelta{{Index: 0, Delta: DeltaContent{}, FinishReason: &finish}},
				Usage:   &usage,
			}
			out, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", out)
			if canFlush {
				flusher.Flush()
			}
		case "message_stop":
			fmt.Fprintf(w, "data: %s\n\n", sseDoneMarker)
		}
	}
	return usage
}
