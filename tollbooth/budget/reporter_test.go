package budget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifelog/core/config"
)

// TestReportUsage_S7_RollsBackOnFailure covers spec scenario S7: two users
// each with delta -0.10; the ledger POST returns 500; both deltas must be
// restored to -0.10 (within 1e-6).
func TestReportUsage_S7_RollsBackOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("ledger unavailable"))
	}))
	defer server.Close()

	client := NewAtlasClient(config.AtlasConfig{URL: server.URL, Secret: "shh"})
	m := New(5.0, client, nil, nil)

	require.True(t, m.HasBudget("alice"))
	require.True(t, m.HasBudget("bob"))
	m.Deduct("alice", 0.10)
	m.Deduct("bob", 0.10)

	err := m.reportUsage(context.Background())
	assert.Error(t, err)

	aliceEntry, _ := m.entries.Load("alice")
	bobEntry, _ := m.entries.Load("bob")
	assert.InDelta(t, -0.10, aliceEntry.(*Entry).Delta.Load(), 1e-6)
	assert.InDelta(t, -0.10, bobEntry.(*Entry).Delta.Load(), 1e-6)
}

func TestReportUsage_SwapsDeltaToZeroOnSuccess(t *testing.T) {
	var requestCount int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requestCount, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recorded":1,"total":1}`))
	}))
	defer server.Close()

	client := NewAtlasClient(config.AtlasConfig{URL: server.URL, Secret: "shh"})
	m := New(5.0, client, nil, nil)

	require.True(t, m.HasBudget("alice"))
	m.Deduct("alice", 0.50)

	require.NoError(t, m.reportUsage(context.Background()))
	assert.Equal(t, int64(1), atomic.LoadInt64(&requestCount))

	entry, _ := m.entries.Load("alice")
	assert.Equal(t, 0.0, entry.(*Entry).Delta.Load())
	// Balance is untouched by reporting — only delta resets.
	assert.InDelta(t, 4.5, m.GetBalance("alice"), 1e-9)
}

func TestReportUsage_SkipsEntriesBelowThreshold(t *testing.T) {
	var requestCount int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requestCount, 1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewAtlasClient(config.AtlasConfig{URL: server.URL, Secret: "shh"})
	m := New(5.0, client, nil, nil)

	require.True(t, m.HasBudget("alice"))
	m.Deduct("alice", 0.0001) // below the 0.001 reporting threshold

	require.NoError(t, m.reportUsage(context.Background()))
	assert.Equal(t, int64(0), atomic.LoadInt64(&requestCount))
}

func TestManager_RunReporter_NoopWhenAtlasNotConfigured(t *testing.T) {
	m := newTestManager(5.0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.RunReporter(ctx, 0) // must return immediately, not hang
}
