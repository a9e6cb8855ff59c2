package plaid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifelog/core/ingestion"
	"github.com/lifelog/core/ingestion/providers"
)

func TestTransactionsProvider_SyncCursorRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/sync", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cursor-1", body["cursor"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"added": []plaidTransaction{
				{TransactionID: "t1", Date: "2026-05-01", Amount: 12.5, Name: "Coffee"},
			},
			"next_cursor": "cursor-2",
			"has_more":    false,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := NewTransactionsProvider(providers.PlaidConfig{BaseURL: server.URL, ClientID: "client"})
	page, err := p.FetchPage(context.Background(), "access-token", ingestion.Incremental, "cursor-1")
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "t1", page.Records[0].Key)
	assert.Equal(t, ingestion.Cursor("cursor-2"), page.NextCursor)
}

func TestAccountsProvider_FullRefreshEveryCall(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/get", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accounts": []plaidAccount{{AccountID: "a1", Name: "Checking", Type: "depository"}},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := NewAccountsProvider(providers.PlaidConfig{BaseURL: server.URL, ClientID: "client"})
	page, err := p.FetchPage(context.Background(), "access-token", ingestion.FullRefresh, "")
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.False(t, page.HasMore)
}
