// Package google implements ingestion.Provider for Google Calendar and
// Gmail, following the common provider shape: config struct + http.Client
// + typed request/response.
package google

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

// CalendarProvider implements ingestion.Provider against the Google
// Calendar Events.list API.
type CalendarProvider struct {
	cfg    providers.GoogleConfig
	client *http.Client
}

// NewCalendarProvider constructs a CalendarProvider.
func NewCalendarProvider(cfg providers.GoogleConfig) *CalendarProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/calendar/v3"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &CalendarProvider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *CalendarProvider) Name() string { return "google" }

func (p *CalendarProvider) SupportsIncremental() bool { return true }

type calendarEvent struct {
	ID      string `json:"id"`
	Updated string `json:"updated"`
	Start   struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"end"`
	Summary string `json:"summary"`
}

type calendarListResponse struct {
	Items         []calendarEvent `json:"items"`
	NextPageToken string          `json:"nextPageToken"`
	NextSyncToken string          `json:"nextSyncToken"`
}

func (p *CalendarProvider) FetchPage(ctx context.Context, accessToken string, mode ingestion.SyncMode, cursor ingestion.Cursor) (ingestion.Page, error) {
	endpoint := fmt.Sprintf("%s/calendars/primary/events", p.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindNetwork, "build calendar request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	q := req.URL.Query()
	q.Set("singleEvents", "true")
	q.Set("maxResults", "250")
	if mode == ingestion.Incremental && cursor != "" {
		q.Set("syncToken", string(cursor))
	} else {
		q.Set("timeMin", time.Now().AddDate(0, -1, 0).Format(time.RFC3339))
	}
	req.URL.RawQuery = q.Encode()

	resp, err := p.client.Do(req)
	if err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindNetwork, "call google calendar", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		// Invalid/expired sync token: caller should retry with mode=FullRefresh.
		return ingestion.Page{}, lifelog.New(lifelog.KindInvalidInput, "calendar sync token expired")
	}
	if resp.StatusCode != http.StatusOK {
		return ingestion.Page{}, lifelog.UpstreamHTTP("google", resp.StatusCode, "calendar events.list failed")
	}

	var listResp calendarListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindEncoding, "decode calendar response", err)
	}

	records := make([]ingestion.ProviderRecord, 0, len(listResp.Items))
	for _, ev := range listResp.Items {
		ts, err := parseEventTime(ev.Updated)
		if err != nil {
			continue
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		records = append(records, ingestion.ProviderRecord{Key: ev.ID, Timestamp: ts, Payload: payload})
	}

	nextCursor := cursor
	hasMore := listResp.NextPageToken != ""
	if listResp.NextSyncToken != "" {
		nextCursor = ingestion.Cursor(listResp.NextSyncToken)
	}
	return ingestion.Page{Records: records, NextCursor: nextCursor, HasMore: hasMore}, nil
}

func parseEventTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, lifelog.New(lifelog.KindInvalidInput, "missing event timestamp")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if unixSec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unixSec, 0).UTC(), nil
	}
	return time.Time{}, lifelog.New(lifelog.KindInvalidInput, "unparseable event timestamp")
}
