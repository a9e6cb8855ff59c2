// Package github implements ingestion.Provider for GitHub user events.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lifelog/core/ingestion"
	"github.com/lifelog/core/ingestion/providers"
	"github.com/lifelog/core/lifelog"
)

// Provider implements ingestion.Provider against the GitHub Events API
// (/users/{username}/events), which is ETag-cacheable but not cursor-based
// beyond page number; GitHub retains only the last ~90 days of events.
type Provider struct {
	cfg      providers.GitHubConfig
	username string
	client   *http.Client
}

// New constructs a github Provider scoped to one username.
func New(cfg providers.GitHubConfig, username string) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{cfg: cfg, username: username, client: &http.Client{Timeout: timeout}}
}

func (p *Provider) Name() string { return "github" }

func (p *Provider) SupportsIncremental() bool { return true }

type ghEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt string          `json:"created_at"`
	Repo      struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload json.RawMessage `json:"payload"`
}

func (p *Provider) FetchPage(ctx context.Context, accessToken string, mode ingestion.SyncMode, cursor ingestion.Cursor) (ingestion.Page, error) {
	page := 1
	if mode == ingestion.Incremental {
		if parsed, err := strconv.Atoi(string(cursor)); err == nil {
			page = parsed
		}
	}

	endpoint := fmt.Sprintf("%s/users/%s/events", p.cfg.BaseURL, p.username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindNetwork, "build github request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", "100")
	req.URL.RawQuery = q.Encode()

	resp, err := p.client.Do(req)
	if err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindNetwork, "call github events", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusForbidden {
		return ingestion.Page{}, lifelog.New(lifelog.KindRateLimit, "github rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return ingestion.Page{}, lifelog.UpstreamHTTP("github", resp.StatusCode, "events fetch failed")
	}

	var events []ghEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindEncoding, "decode github response", err)
	}

	records := make([]ingestion.ProviderRecord, 0, len(events))
	for _, e := range events {
		ts, err := time.Parse(time.RFC3339, e.CreatedAt)
		if err != nil {
			continue
		}
		payload, err := json.Marshal(e)
		if err != nil {
			continue
		}
		records = append(records, ingestion.ProviderRecord{Key: e.ID, Timestamp: ts, Payload: payload})
	}

	return ingestion.Page{
		Records:    records,
		NextCursor: ingestion.Cursor(strconv.Itoa(page + 1)),
		HasMore:    len(events) == 100,
	}, nil
}
