package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lifelog/core/ingestion"
	"github.com/lifelog/core/ingestion/providers"
	"github.com/lifelog/core/lifelog"
)

// GmailProvider implements ingestion.Provider against the Gmail history
// and messages APIs, with a time-bounded full-resync fallback for when a
// history cursor becomes invalid.
type GmailProvider struct {
	cfg    providers.GoogleConfig
	client *http.Client
	logger *zap.Logger
}

// NewGmailProvider constructs a GmailProvider.
func NewGmailProvider(cfg providers.GoogleConfig, logger *zap.Logger) *GmailProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://gmail.googleapis.com/gmail/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GmailProvider{cfg: cfg, client: &http.Client{Timeout: timeout}, logger: logger}
}

func (p *GmailProvider) Name() string { return "google" }

func (p *GmailProvider) SupportsIncremental() bool { return true }

type gmailMessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

type gmailMessage struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	InternalDate string `json:"internalDate"` // epoch millis as string
	Snippet      string `json:"snippet"`
}

type gmailHistoryRecord struct {
	MessagesAdded []struct {
		Message gmailMessageRef `json:"message"`
	} `json:"messagesAdded"`
}

type gmailHistoryResponse struct {
	History           []gmailHistoryRecord `json:"history"`
	NextPageToken     string                `json:"nextPageToken"`
	HistoryID         string                `json:"historyId"`
}

func (p *GmailProvider) FetchPage(ctx context.Context, accessToken string, mode ingestion.SyncMode, cursor ingestion.Cursor) (ingestion.Page, error) {
	if mode == ingestion.Incremental && cursor != "" {
		page, err := p.fetchHistoryPage(ctx, accessToken, cursor)
		if err == nil {
			return page, nil
		}
		if e, ok := lifelog.As(err); ok && e.Kind == lifelog.KindInvalidInput {
			p.logger.Warn("gmail history cursor invalid, falling back to time-bounded full resync",
				zap.String("cursor", string(cursor)))
			return p.fetchTimeBoundedPage(ctx, accessToken)
		}
		return ingestion.Page{}, err
	}
	return p.fetchTimeBoundedPage(ctx, accessToken)
}

func (p *GmailProvider) fetchHistoryPage(ctx context.Context, accessToken string, cursor ingestion.Cursor) (ingestion.Page, error) {
	endpoint := fmt.Sprintf("%s/users/me/history", p.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindNetwork, "build gmail history request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	q := req.URL.Query()
	q.Set("startHistoryId", string(cursor))
	q.Set("historyTypes", "messageAdded")
	req.URL.RawQuery = q.Encode()

	resp, err := p.client.Do(req)
	if err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindNetwork, "call gmail history", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ingestion.Page{}, lifelog.New(lifelog.KindInvalidInput, "gmail history id expired")
	}
	if resp.StatusCode != http.StatusOK {
		return ingestion.Page{}, lifelog.UpstreamHTTP("google", resp.StatusCode, "gmail history.list failed")
	}

	var histResp gmailHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&histResp); err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindEncoding, "decode gmail history response", err)
	}

	var refs []gmailMessageRef
	for _, h := range histResp.History {
		for _, added := range h.MessagesAdded {
			refs = append(refs, added.Message)
		}
	}
	records, err := p.fetchMessages(ctx, accessToken, refs)
	if err != nil {
		return ingestion.Page{}, err
	}

	nextCursor := ingestion.Cursor(histResp.HistoryID)
	if nextCursor == "" {
		nextCursor = cursor
	}
	return ingestion.Page{Records: records, NextCursor: nextCursor, HasMore: histResp.NextPageToken != ""}, nil
}

func (p *GmailProvider) fetchTimeBoundedPage(ctx context.Context, accessToken string) (ingestion.Page, error) {
	endpoint := fmt.Sprintf("%s/users/me/messages", p.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindNetwork, "build gmail list request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	q := req.URL.Query()
	q.Set("q", "newer_than:30d")
	q.Set("maxResults", "100")
	req.URL.RawQuery = q.Encode()

	resp, err := p.client.Do(req)
	if err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindNetwork, "call gmail messages.list", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ingestion.Page{}, lifelog.UpstreamHTTP("google", resp.StatusCode, "gmail messages.list failed")
	}

	var listResp struct {
		Messages          []gmailMessageRef `json:"messages"`
		NextPageToken     string            `json:"nextPageToken"`
		ResultSizeEstimate int              `json:"resultSizeEstimate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return ingestion.Page{}, lifelog.Wrap(lifelog.KindEncoding, "decode gmail list response", err)
	}

	records, err := p.fetchMessages(ctx, accessToken, listResp.Messages)
	if err != nil {
		return ingestion.Page{}, err
	}

	// Recover with a historyId-style cursor derived from the most recent
	// message's internal date; a later history.list call with an invalid
	// id correctly triggers another fallback rather than silently drifting.
	var maxTS time.Time
	for _, r := range records {
		if r.Timestamp.After(maxTS) {
			maxTS = r.Timestamp
		}
	}
	return ingestion.Page{
		Records:    records,
		NextCursor: ingestion.Cursor(strconv.FormatInt(maxTS.UnixNano(), 10)),
		HasMore:    listResp.NextPageToken != "",
	}, nil
}

func (p *GmailProvider) fetchMessages(ctx context.Context, accessToken string, refs []gmailMessageRef) ([]ingestion.ProviderRecord, error) {
	threadOrder := map[string][]string{}
	messages := make(map[string]gmailMessage, len(refs))

	for _, ref := range refs {
		msg, err := p.fetchMessage(ctx, accessToken, ref.ID)
		if err != nil {
			return nil, err
		}
		messages[ref.ID] = msg
		threadOrder[msg.ThreadID] = append(threadOrder[msg.ThreadID], msg.ID)
	}

	for threadID := range threadOrder {
		ids := threadOrder[threadID]
		sort.SliceStable(ids, func(i, j int) bool {
			return messages[ids[i]].InternalDate < messages[ids[j]].InternalDate
		})
		threadOrder[threadID] = ids
	}

	records := make([]ingestion.ProviderRecord, 0, len(refs))
	for threadID, ids := range threadOrder {
		_ = threadID
		for i, id := range ids {
			msg := messages[id]
			ts, err := parseInternalDate(msg.InternalDate)
			if err != nil {
				continue
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			records = append(records, ingestion.ProviderRecord{
				Key:                msg.ID,
				Timestamp:          ts,
				Payload:            payload,
				ThreadPosition:     i + 1,
				ThreadMessageCount: len(ids),
			})
		}
	}
	return records, nil
}

func (p *GmailProvider) fetchMessage(ctx context.Context, accessToken, id string) (gmailMessage, error) {
	endpoint := fmt.Sprintf("%s/users/me/messages/%s", p.cfg.BaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gmailMessage{}, lifelog.Wrap(lifelog.KindNetwork, "build gmail message request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return gmailMessage{}, lifelog.Wrap(lifelog.KindNetwork, "call gmail messages.get", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return gmailMessage{}, lifelog.UpstreamHTTP("google", resp.StatusCode, "gmail messages.get failed")
	}

	var msg gmailMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return gmailMessage{}, lifelog.Wrap(lifelog.KindEncoding, "decode gmail message", err)
	}
	return msg, nil
}

func parseInternalDate(s string) (time.Time, error) {
	millis, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, lifelog.New(lifelog.KindInvalidInput, "unparseable gmail internalDate")
	}
	return time.UnixMilli(millis).UTC(), nil
}
