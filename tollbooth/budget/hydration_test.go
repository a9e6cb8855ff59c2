package budget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifelog/core/config"
)

func noAtlasConfig() config.AtlasConfig {
	return config.AtlasConfig{}
}

func TestAtlasClient_Configured_FalseWhenEmpty(t *testing.T) {
	c := NewAtlasClient(noAtlasConfig())
	assert.False(t, c.Configured())
}

func TestManager_Hydrate_UpsertsBudgetsTiersAndSubscriptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shh", r.Header.Get("X-Atlas-Secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"user_id":"alice","balance_usd":12.5,"tier":"pro","subscription_status":"active"},
			{"user_id":"bob","balance_usd":0.0,"subscription_status":"past_due"}
		]`))
	}))
	defer server.Close()

	client := NewAtlasClient(config.AtlasConfig{URL: server.URL, Secret: "shh"})
	m := New(5.0, client, nil, nil)

	count, err := m.Hydrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, 12.5, m.GetBalance("alice"))
	assert.Equal(t, "pro", m.Tiers().Tier("alice"))
	sub, ok := m.Subscriptions().Get("bob")
	require.True(t, ok)
	assert.Equal(t, "past_due", sub.Status)
}

func TestManager_Hydrate_ErrorsWhenAtlasNotConfigured(t *testing.T) {
	m := newTestManager(5.0)
	_, err := m.Hydrate(context.Background())
	assert.Error(t, err)
}

func TestManager_Hydrate_ErrorsOnUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewAtlasClient(config.AtlasConfig{URL: server.URL, Secret: "shh"})
	m := New(5.0, client, nil, nil)

	_, err := m.Hydrate(context.Background())
	assert.Error(t, err)
}
