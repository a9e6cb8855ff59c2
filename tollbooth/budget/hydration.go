package budget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lifelog/core/config"
)

// AtlasBudget is one user's hydrated state from the remote ledger service.
type AtlasBudget struct {
	UserID             string  `json:"user_id"`
	BalanceUSD         float64 `json:"balance_usd"`
	Tier               *string `json:"tier,omitempty"`
	SubscriptionStatus *string `json:"subscription_status,omitempty"`
	TrialExpiresAt     *string `json:"trial_expires_at,omitempty"` // RFC3339
}

// UsageReport is one user's accumulated spend since the last report.
type UsageReport struct {
	UserID     string  `json:"user_id"`
	TokensUsed uint64  `json:"tokens_used"`
	CostUSD    float64 `json:"cost_usd"`
}

// UsageReportResponse is Atlas's response to a usage POST; it may
// piggyback the latest known client version for pull-based update checks.
type UsageReportResponse struct {
	Recorded     uint64       `json:"recorded"`
	Total        uint64       `json:"total"`
	LatestVersion *VersionInfo `json:"latest_version,omitempty"`
}

// AtlasClient is the HTTP binding to the remote ledger service. A nil or
// zero-value URL/Secret means Atlas is not configured; callers collapse to
// standalone mode rather than failing outright.
type AtlasClient struct {
	httpClient *http.Client
	url        string
	secret     string
	subdomain  string
}

// NewAtlasClient builds a client from the ambient Atlas configuration.
func NewAtlasClient(cfg config.AtlasConfig) *AtlasClient {
	return &AtlasClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		url:        cfg.URL,
		secret:     cfg.Secret,
		subdomain:  cfg.Subdomain,
	}
}

// Configured reports whether Atlas is reachable at all.
func (c *AtlasClient) Configured() bool {
	return c != nil && c.url != "" && c.secret != ""
}

// FetchBudgets pulls the full budget/tier/subscription snapshot from
// Atlas.
func (c *AtlasClient) FetchBudgets(ctx context.Context) ([]AtlasBudget, error) {
	hydrationURL := c.url + "/api/internal/budgets"
	if c.subdomain != "" {
		hydrationURL += "?subdomain=" + c.subdomain
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hydrationURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Atlas-Secret", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("atlas API error (%d): %s", resp.StatusCode, string(body))
	}

	var budgets []AtlasBudget
	if err := json.Unmarshal(body, &budgets); err != nil {
		return nil, fmt.Errorf("decoding atlas budgets response: %w", err)
	}
	return budgets, nil
}

// PostUsage reports accumulated spend back to Atlas.
func (c *AtlasClient) PostUsage(ctx context.Context, reports []UsageReport) (*UsageReportResponse, error) {
	payload, err := json.Marshal(reports)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/internal/usage", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Atlas-Secret", c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("atlas API error (%d): %s", resp.StatusCode, string(body))
	}

	if len(body) == 0 {
		return &UsageReportResponse{}, nil
	}
	var parsed UsageReportResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Non-fatal: Atlas accepted the report but replied with a body we
		// can't parse. The reports already succeeded from the caller's
		// point of view.
		return &UsageReportResponse{}, nil
	}
	return &parsed, nil
}

// Hydrate fetches the full snapshot from Atlas and upserts it into the
// manager's budget, tier, and subscription maps. Failure is the caller's
// to log; it never panics and never leaves partial state worse than
// standalone mode.
func (m *Manager) Hydrate(ctx context.Context) (int, error) {
	if !m.client.Configured() {
		return 0, fmt.Errorf("atlas not configured")
	}

	budgets, err := m.client.FetchBudgets(ctx)
	if err != nil {
		return 0, err
	}

	for _, b := range budgets {
		m.SetBudget(b.UserID, b.BalanceUSD)
		if b.Tier != nil {
			m.tiers.SetTier(b.UserID, *b.Tier)
		}
		if b.SubscriptionStatus != nil {
			var trialExpiry time.Time
			if b.TrialExpiresAt != nil {
				if t, err := time.Parse(time.RFC3339, *b.TrialExpiresAt); err == nil {
					trialExpiry = t
				}
			}
			m.subscriptions.Set(b.UserID, *b.SubscriptionStatus, trialExpiry)
		}
	}

	return len(budgets), nil
}

// RunRehydrator re-pulls the Atlas snapshot on every tick until ctx is
// cancelled. It is a no-op (returns immediately) when Atlas is not
// configured, per the standalone-mode requirement.
func (m *Manager) RunRehydrator(ctx context.Context, interval time.Duration) {
	if !m.client.Configured() {
		if m.logger != nil {
			m.logger.Debug("atlas not configured, re-hydration disabled")
		}
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := m.Hydrate(ctx)
			if err != nil {
				if m.logger != nil {
					m.logger.Warn("atlas re-hydration failed, will retry", zap.Error(err))
				}
				continue
			}
			if m.logger != nil {
				m.logger.Info("re-hydrated budgets/tiers/subscriptions from atlas", zap.Int("count", count))
			}
		}
	}
}
