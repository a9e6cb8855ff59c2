// Package strava implements ingestion.Provider for Strava activities.
package strava

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

// Provider implements ingestion.Provider against the Strava activities API.
// Strava paginates by page number rather than a cursor token, so the
// cursor here encodes the next page number.
type Provider struct {
	cfg    providers.StravaConfig
	client *http.Client
}

// New constructs a strava Provider.
func New(cfg providers.StravaConfig) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.strava.com/api/v3"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *Provider) Name() string { return "strava" }

func (p *Provider) SupportsIncremental() bool { return false } // activities API has no cursor; paged by page number with no time window

type activity struct {
	ID        int64   `json:"id"`
	StartDate string  `json:"start_date"`
	Name      string  `json:"name"`
	Distance  float64 `json:"distance"`
	Type      string  `json:"type"`
}

func (p *Provider) FetchPage(ctx context.Context, accessToken string, _ ingestion.SyncMode, cursor ingestion.Cursor) (ingestion.Page, error) {
	page := 1
	if cursor != "" {
		if parsed, err := strconv.Atoi(string(cursor)); err == nil {
			page = parsed
		}
	}

	endpoint := fmt.Sprintf("%s/athlete/activities", p.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindNetwork, "build strava request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	q := req.URL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", "100")
	req.URL.RawQuery = q.Encode()

	resp, err := p.client.Do(req)
	if err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindNetwork, "call strava activities", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return ingestion.Page{}, lifelog.New(lifelog.KindRateLimit, "strava rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return ingestion.Page{}, lifelog.UpstreamHTTP("strava", resp.StatusCode, "activities fetch failed")
	}

	var activities []activity
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindEncoding, "decode strava response", err)
	}

	records := make([]ingestion.ProviderRecord, 0, len(activities))
	for _, a := range activities {
		ts, err := time.Parse(time.RFC3339, a.StartDate)
		if err != nil {
			continue
		}
		payload, err := json.Marshal(a)
		if err != nil {
			continue
		}
		records = append(records, ingestion.ProviderRecord{
			Key:       strconv.FormatInt(a.ID, 10),
			Timestamp: ts,
			Payload:   payload,
		})
	}

	return ingestion.Page{
		Records:    records,
		NextCursor: ingestion.Cursor(strconv.Itoa(page + 1)),
		HasMore:    len(activities) == 100,
	}, nil
}
