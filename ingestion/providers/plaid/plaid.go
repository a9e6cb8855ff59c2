// Package plaid implements ingestion.Provider for the four Plaid streams:
// accounts, transactions, liabilities, investments.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lifelog/core/ingestion"
	"github.com/lifelog/core/ingestion/providers"
	"github.com/lifelog/core/lifelog"
)

func newHTTPClient(cfg providers.PlaidConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func doPlaidRequest(ctx context.Context, client *http.Client, cfg providers.PlaidConfig, path, accessToken string, body map[string]any, out any) error {
	if body == nil {
		body = map[string]any{}
	}
	body["client_id"] = cfg.ClientID
	body["access_token"] = accessToken

	payload, err := json.Marshal(body)
	if err != nil {
		return lifelog.Wrap(lifelog.KindEncoding, "encode plaid request", err)
	}

	endpoint := fmt.Sprintf("%s%s", cfg.BaseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return lifelog.Wrap(lifelog.KindNetwork, "build plaid request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return lifelog.Wrap(lifelog.KindNetwork, "call plaid", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return lifelog.UpstreamHTTP("plaid", resp.StatusCode, fmt.Sprintf("plaid %s failed", path))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return lifelog.Wrap(lifelog.KindEncoding, "decode plaid response", err)
	}
	return nil
}

// AccountsProvider implements ingestion.Provider for /accounts/get. Plaid
// returns the full account set every call; there is no cursor.
type AccountsProvider struct {
	cfg    providers.PlaidConfig
	client *http.Client
}

func NewAccountsProvider(cfg providers.PlaidConfig) *AccountsProvider {
	return &AccountsProvider{cfg: cfg, client: newHTTPClient(cfg)}
}

func (p *AccountsProvider) Name() string             { return "plaid" }
func (p *AccountsProvider) SupportsIncremental() bool { return false }

type plaidAccount struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Balances  struct {
		Current float64 `json:"current"`
	} `json:"balances"`
}

func (p *AccountsProvider) FetchPage(ctx context.Context, accessToken string, _ ingestion.SyncMode, _ ingestion.Cursor) (ingestion.Page, error) {
	var resp struct {
		Accounts []plaidAccount `json:"accounts"`
	}
	if err := doPlaidRequest(ctx, p.client, p.cfg, "/accounts/get", accessToken, nil, &resp); err != nil {
		return ingestion.Page{}, err
	}

	now := time.Now().UTC()
	records := make([]ingestion.ProviderRecord, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		payload, err := json.Marshal(a)
		if err != nil {
			continue
		}
		records = append(records, ingestion.ProviderRecord{Key: a.AccountID, Timestamp: now, Payload: payload})
	}
	return ingestion.Page{Records: records, HasMore: false}, nil
}

// TransactionsProvider implements ingestion.Provider for
// /transactions/sync, Plaid's cursor-based incremental transaction feed.
type TransactionsProvider struct {
	cfg    providers.PlaidConfig
	client *http.Client
}

func NewTransactionsProvider(cfg providers.PlaidConfig) *TransactionsProvider {
	return &TransactionsProvider{cfg: cfg, client: newHTTPClient(cfg)}
}

func (p *TransactionsProvider) Name() string             { return "plaid" }
func (p *TransactionsProvider) SupportsIncremental() bool { return true }

type plaidTransaction struct {
	TransactionID string  `json:"transaction_id"`
	Date          string  `json:"date"`
	Amount        float64 `json:"amount"`
	Name          string  `json:"name"`
}

func (p *TransactionsProvider) FetchPage(ctx context.Context, accessToken string, mode ingestion.SyncMode, cursor ingestion.Cursor) (ingestion.Page, error) {
	body := map[string]any{}
	if mode == ingestion.Incremental && cursor != "" {
		body["cursor"] = string(cursor)
	}

	var resp struct {
		Added      []plaidTransaction `json:"added"`
		Modified   []plaidTransaction `json:"modified"`
		NextCursor string             `json:"next_cursor"`
		HasMore    bool               `json:"has_more"`
	}
	if err := doPlaidRequest(ctx, p.client, p.cfg, "/transactions/sync", accessToken, body, &resp); err != nil {
		return ingestion.Page{}, err
	}

	all := append(append([]plaidTransaction{}, resp.Added...), resp.Modified...)
	records := make([]ingestion.ProviderRecord, 0, len(all))
	for _, tx := range all {
		ts, err := time.Parse("2006-01-02", tx.Date)
		if err != nil {
			continue
		}
		payload, err := json.Marshal(tx)
		if err != nil {
			continue
		}
		records = append(records, ingestion.ProviderRecord{Key: tx.TransactionID, Timestamp: ts, Payload: payload})
	}

	return ingestion.Page{
		Records:    records,
		NextCursor: ingestion.Cursor(resp.NextCursor),
		HasMore:    resp.HasMore,
	}, nil
}

// LiabilitiesProvider implements ingestion.Provider for /liabilities/get.
type LiabilitiesProvider struct {
	cfg    providers.PlaidConfig
	client *http.Client
}

func NewLiabilitiesProvider(cfg providers.PlaidConfig) *LiabilitiesProvider {
	return &LiabilitiesProvider{cfg: cfg, client: newHTTPClient(cfg)}
}

func (p *LiabilitiesProvider) Name() string             { return "plaid" }
func (p *LiabilitiesProvider) SupportsIncremental() bool { return false }

type plaidLiability struct {
	AccountID string  `json:"account_id"`
	APR       float64 `json:"apr_percentage"`
	Balance   float64 `json:"last_statement_balance"`
}

func (p *LiabilitiesProvider) FetchPage(ctx context.Context, accessToken string, _ ingestion.SyncMode, _ ingestion.Cursor) (ingestion.Page, error) {
	var resp struct {
		Liabilities struct {
			Credit []plaidLiability `json:"credit"`
		} `json:"liabilities"`
	}
	if err := doPlaidRequest(ctx, p.client, p.cfg, "/liabilities/get", accessToken, nil, &resp); err != nil {
		return ingestion.Page{}, err
	}

	now := time.Now().UTC()
	records := make([]ingestion.ProviderRecord, 0, len(resp.Liabilities.Credit))
	for _, l := range resp.Liabilities.Credit {
		payload, err := json.Marshal(l)
		if err != nil {
			continue
		}
		records = append(records, ingestion.ProviderRecord{Key: l.AccountID, Timestamp: now, Payload: payload})
	}
	return ingestion.Page{Records: records, HasMore: false}, nil
}

// InvestmentsProvider implements ingestion.Provider for
// /investments/holdings/get.
type InvestmentsProvider struct {
	cfg    providers.PlaidConfig
	client *http.Client
}

func NewInvestmentsProvider(cfg providers.PlaidConfig) *InvestmentsProvider {
	return &InvestmentsProvider{cfg: cfg, client: newHTTPClient(cfg)}
}

func (p *InvestmentsProvider) Name() string             { return "plaid" }
func (p *InvestmentsProvider) SupportsIncremental() bool { return false }

type plaidHolding struct {
	AccountID    string  `json:"account_id"`
	SecurityID   string  `json:"security_id"`
	Quantity     float64 `json:"quantity"`
	InstitutionValue float64 `json:"institution_value"`
}

func (p *InvestmentsProvider) FetchPage(ctx context.Context, accessToken string, _ ingestion.SyncMode, _ ingestion.Cursor) (ingestion.Page, error) {
	var resp struct {
		Holdings []plaidHolding `json:"holdings"`
	}
	if err := doPlaidRequest(ctx, p.client, p.cfg, "/investments/holdings/get", accessToken, nil, &resp); err != nil {
		return ingestion.Page{}, err
	}

	now := time.Now().UTC()
	records := make([]ingestion.ProviderRecord, 0, len(resp.Holdings))
	for _, h := range resp.Holdings {
		payload, err := json.Marshal(h)
		if err != nil {
			continue
		}
		records = append(records, ingestion.ProviderRecord{Key: h.AccountID + "/" + h.SecurityID, Timestamp: now, Payload: payload})
	}
	return ingestion.Page{Records: records, HasMore: false}, nil
}
