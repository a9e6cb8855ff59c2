package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lifelog/core/ingestion"
	"github.com/lifelog/core/ingestion/providers"
)

func TestGmailProvider_HistoryFallbackOnInvalidCursor(t *testing.T) {
	var messageCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/history", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // expired history id
	})
	mux.HandleFunc("/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me/messages" {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "m1", "threadId": "t1"}},
		})
	})
	mux.HandleFunc("/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		messageCalls++
		_ = json.NewEncoder(w).Encode(gmailMessage{ID: "m1", ThreadID: "t1", InternalDate: "1700000000000"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	p := NewGmailProvider(providersConfig(server.URL), zap.NewNop())
	page, err := p.FetchPage(context.Background(), "tok", ingestion.Incremental, "999")
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "m1", page.Records[0].Key)
	assert.Equal(t, 1, messageCalls)
}

func TestGmailProvider_ThreadPositionDerivedFromOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/history", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gmailHistoryResponse{
			History: []gmailHistoryRecord{
				{MessagesAdded: []struct {
					Message gmailMessageRef `json:"message"`
				}{
					{Message: gmailMessageRef{ID: "m2", ThreadID: "t1"}},
					{Message: gmailMessageRef{ID: "m1", ThreadID: "t1"}},
				}},
			},
			HistoryID: "1001",
		})
	})
	mux.HandleFunc("/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gmailMessage{ID: "m1", ThreadID: "t1", InternalDate: "1000"})
	})
	mux.HandleFunc("/users/me/messages/m2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gmailMessage{ID: "m2", ThreadID: "t1", InternalDate: "2000"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	p := NewGmailProvider(providersConfig(server.URL), zap.NewNop())
	page, err := p.FetchPage(context.Background(), "tok", ingestion.Incremental, "500")
	require.NoError(t, err)
	require.Len(t, page.Records, 2)

	byKey := map[string]ingestion.ProviderRecord{}
	for _, r := range page.Records {
		byKey[r.Key] = r
	}
	assert.Equal(t, 1, byKey["m1"].ThreadPosition)
	assert.Equal(t, 2, byKey["m2"].ThreadPosition)
	assert.Equal(t, 2, byKey["m1"].ThreadMessageCount)
	assert.Equal(t, ingestion.Cursor("1001"), page.NextCursor)
}

func providersConfig(baseURL string) providers.GoogleConfig {
	return providers.GoogleConfig{BaseURL: baseURL}
}
