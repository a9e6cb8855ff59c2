package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lifelog/core/config"
	"github.com/lifelog/core/internal/metrics"
	"github.com/lifelog/core/internal/tlsutil"
	"github.com/lifelog/core/lifelog"
	"github.com/lifelog/core/tollbooth/budget"
)

// Handler serves the metered chat-completions endpoint: budget/
// subscription admission, provider routing, request/response
// translation, and billing.
type Handler struct {
	budget  *budget.Manager
	config  config.ProxyConfig
	client  *http.Client
	vertex  *VertexTokenSource // nil until lazily built, or never if unconfigured
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewHandler constructs a Handler. vertex may be nil when Vertex AI
// credentials aren't configured; a request routed to a vertex/ model
// then fails with a 503 upstream error, the same as any other
// unconfigured provider.
func NewHandler(mgr *budget.Manager, cfg config.ProxyConfig, vertex *VertexTokenSource, logger *zap.Logger, m *metrics.Collector) *Handler {
	return &Handler{
		budget:  mgr,
		config:  cfg,
		client:  tlsutil.SecureHTTPClient(cfg.RequestTimeout),
		vertex:  vertex,
		logger:  logger,
		metrics: m,
	}
}

// Complete serves one non-streaming chat-completions request for userID.
// Streaming requests (req.Stream == true) are handled by Handler.Stream
// instead; callers dispatch on the request's stream field before calling
// either.
func (h *Handler) Complete(ctx context.Context, userID string, req ChatRequest) (ChatResponse, error) {
	if err := h.admit(userID); err != nil {
		return ChatResponse{}, err
	}

	provider, ok := GetProviderConfig(req.Model, h.config)
	if !ok {
		return ChatResponse{}, lifelog.UpstreamHTTP("unknown", http.StatusServiceUnavailable,
			fmt.Sprintf("no provider configured for model: %s", req.Model))
	}

	start := time.Now()
	resp, usage, err := h.dispatch(ctx, provider, req)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	if h.metrics != nil {
		h.metrics.RecordTollboothRequest(provider.Name, req.Model, status, duration, usage.PromptTokens, usage.CompletionTokens, 0)
	}
	if err != nil {
		return ChatResponse{}, err
	}

	cost := CalculateCost(req.Model, usage.PromptTokens, usage.CompletionTokens)
	h.budget.Deduct(userID, cost)
	if h.logger != nil {
		h.logger.Debug("chat completion billed",
			zap.String("model", req.Model),
			zap.Int("prompt_tokens", usage.PromptTokens),
			zap.Int("completion_tokens", usage.CompletionTokens),
			zap.Float64("cost_usd", cost),
		)
	}
	return resp, nil
}

// admit runs the two-stage admission check: subscription status, then
// budget. Subscription expiry is checked first since an expired-but-
// still-has-balance user gets the more specific error.
func (h *Handler) admit(userID string) error {
	if sub, ok := h.budget.Subscriptions().Get(userID); ok {
		if h.budget.Subscriptions().IsExpired(userID, time.Now()) {
			return &lifelog.Error{Kind: lifelog.KindSubscriptionExpired, Message: "subscription expired", Provider: sub.Status}
		}
	}
	if !h.budget.HasBudget(userID) {
		return lifelog.InsufficientBudget(h.budget.GetBalance(userID))
	}
	return nil
}

// dispatch builds the provider-specific request body, sends it, and
// translates the response back to the OpenAI-canonical shape.
func (h *Handler) dispatch(ctx context.Context, provider ProviderConfig, req ChatRequest) (ChatResponse, Usage, error) {
	var body []byte
	var err error
	switch provider.Kind {
	case KindAnthropic:
		body, err = json.Marshal(toAnthropicRequest(req, provider.ModelName))
	default:
		body, err = json.Marshal(toOpenAICompatRequest(req, provider.ModelName))
	}
	if err != nil {
		return ChatResponse{}, Usage{}, lifelog.Wrap(lifelog.KindEncoding, "marshaling provider request", err)
	}

	endpoint := provider.Endpoint
	if provider.Kind == KindVertexAI {
		endpoint = VertexEndpoint(h.config)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, Usage{}, lifelog.Wrap(lifelog.KindNetwork, "building provider request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := h.authenticate(ctx, httpReq, provider); err != nil {
		return ChatResponse{}, Usage{}, err
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, Usage{}, lifelog.Wrap(lifelog.KindNetwork, "calling provider", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, Usage{}, lifelog.Wrap(lifelog.KindNetwork, "reading provider response", err)
	}

	if resp.StatusCode >= 400 {
		if h.logger != nil {
			h.logger.Warn("llm provider returned error",
				zap.Int("status", resp.StatusCode),
				zap.String("model", req.Model),
				zap.String("endpoint", endpoint),
			)
		}
		return ChatResponse{}, Usage{}, lifelog.UpstreamHTTP(provider.Name, resp.StatusCode, truncate(string(respBytes), 500))
	}

	createdAt := time.Now().Unix()
	switch provider.Kind {
	case KindAnthropic:
		var ar anthropicResponse
		if err := json.Unmarshal(respBytes, &ar); err != nil {
			return ChatResponse{}, Usage{}, lifelog.Wrap(lifelog.KindEncoding, "parsing anthropic response", err)
		}
		chatResp := fromAnthropicResponse(ar, req.Model, createdAt)
		return chatResp, chatResp.Usage, nil
	default:
		var oc openAICompatResponse
		if err := json.Unmarshal(respBytes, &oc); err != nil {
			return ChatResponse{}, Usage{}, lifelog.Wrap(lifelog.KindEncoding, "parsing provider response", err)
		}
		chatResp := fromOpenAICompatResponse(oc, req.Model)
		return chatResp, chatResp.Usage, nil
	}
}

func (h *Handler) authenticate(ctx context.Context, httpReq *http.Request, provider ProviderConfig) error {
	switch provider.Kind {
	case KindAnthropic:
		httpReq.Header.Set("x-api-key", provider.APIKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")
	case KindVertexAI:
		if h.vertex == nil {
			return lifelog.UpstreamHTTP("vertex-ai", http.StatusServiceUnavailable, "vertex ai not configured")
		}
		token, err := h.vertex.AccessToken(ctx)
		if err != nil {
			return lifelog.Wrap(lifelog.KindAuthentication, "fetching vertex access token", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	default:
		httpReq.Header.Set("Authorization", "Bearer "+provider.APIKey)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
