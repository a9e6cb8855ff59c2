package github

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

func TestProvider_FetchPageParsesEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/octocat/events", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]ghEvent{
			{ID: "1", Type: "PushEvent", CreatedAt: "2026-04-01T12:00:00Z"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := New(providers.GitHubConfig{BaseURL: server.URL}, "octocat")
	page, err := p.FetchPage(context.Background(), "tok", ingestion.FullRefresh, "")
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "1", page.Records[0].Key)
}
