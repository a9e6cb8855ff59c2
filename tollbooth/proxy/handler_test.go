package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifelog/core/config"
	"github.com/lifelog/core/lifelog"
	"github.com/lifelog/core/tollbooth/budget"
)

func newTestHandler(t *testing.T, upstreamURL string) *Handler {
	t.Helper()
	client := budget.NewAtlasClient(config.AtlasConfig{})
	mgr := budget.New(5.0, client, nil, nil)
	cfg := config.ProxyConfig{OpenAIAPIKey: "sk-test"}
	// Point the routing table's openai endpoint at the test server by
	// overriding the global table for the duration of this test.
	restore := overrideRouteEndpoint("openai", upstreamURL)
	t.Cleanup(restore)
	return NewHandler(mgr, cfg, nil, nil, nil)
}

// overrideRouteEndpoint patches routingTable in place so tests can point
// a provider at an httptest.Server without a live network call.
func overrideRouteEndpoint(name, endpoint string) func() {
	var originals []string
	for i := range routingTable {
		if routingTable[i].name == name {
			originals = append(originals, routingTable[i].endpoint)
			routingTable[i].endpoint = endpoint
		}
	}
	return func() {
		j := 0
		for i := range routingTable {
			if routingTable[i].name == name {
				routingTable[i].endpoint = originals[j]
				j++
			}
		}
	}
}

func TestHandler_Complete_InsufficientBudgetBlocksRequest(t *testing.T) {
	client := budget.NewAtlasClient(config.AtlasConfig{})
	mgr := budget.New(0.0, client, nil, nil)
	h := NewHandler(mgr, config.ProxyConfig{OpenAIAPIKey: "sk-test"}, nil, nil, nil)

	_, err := h.Complete(context.Background(), "alice", ChatRequest{Model: "gpt-4o-mini"})
	require.Error(t, err)
	e, ok := lifelog.As(err)
	require.True(t, ok)
	assert.Equal(t, lifelog.KindInsufficientBudget, e.Kind)
}

func TestHandler_Complete_UnknownModelReturnsUpstreamError(t *testing.T) {
	client := budget.NewAtlasClient(config.AtlasConfig{})
	mgr := budget.New(5.0, client, nil, nil)
	h := NewHandler(mgr, config.ProxyConfig{}, nil, nil, nil)

	_, err := h.Complete(context.Background(), "alice", ChatRequest{Model: "no-such-model"})
	require.Error(t, err)
	e, ok := lifelog.As(err)
	require.True(t, ok)
	assert.Equal(t, lifelog.KindUpstreamHTTP, e.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, e.Status)
}

func TestHandler_Complete_DeductsCostOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1700000000,
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "hi"}}],
			"usage": {"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150}
		}`))
	}))
	defer server.Close()

	h := newTestHandler(t, server.URL)
	resp, err := h.Complete(context.Background(), "alice", ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Model)

	expectedCost := CalculateCost("gpt-4o-mini", 100, 50)
	assert.InDelta(t, 5.0-expectedCost, h.budget.GetBalance("alice"), 1e-9)
}

func TestHandler_Complete_UpstreamErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	h := newTestHandler(t, server.URL)
	_, err := h.Complete(context.Background(), "alice", ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	require.Error(t, err)
	e, ok := lifelog.As(err)
	require.True(t, ok)
	assert.Equal(t, lifelog.KindUpstreamHTTP, e.Kind)
	assert.Equal(t, http.StatusTooManyRequests, e.Status)
}

func TestHandler_Admit_SubscriptionExpiredBlocksBeforeBudgetCheck(t *testing.T) {
	client := budget.NewAtlasClient(config.AtlasConfig{})
	mgr := budget.New(5.0, client, nil, nil)
	mgr.Subscriptions().Set("alice", "canceled", time.Now())
	h := NewHandler(mgr, config.ProxyConfig{}, nil, nil, nil)

	err := h.admit("alice")
	require.Error(t, err)
	e, ok := lifelog.As(err)
	require.True(t, ok)
	assert.Equal(t, lifelog.KindSubscriptionExpired, e.Kind)
}
