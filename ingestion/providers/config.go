// Package providers holds the thin per-upstream HTTP adapters implementing
// ingestion.Provider, one subpackage per provider, each following a config
// struct + http.Client + typed request/response shape.
package providers

import "time"

// GoogleConfig configures the Google Calendar/Gmail adapters.
type GoogleConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// GitHubConfig configures the GitHub events adapter.
type GitHubConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// StravaConfig configures the Strava activities adapter.
type StravaConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// PlaidConfig configures the Plaid accounts/transactions/liabilities adapters.
type PlaidConfig struct {
	BaseURL  string        `json:"base_url" yaml:"base_url"`
	ClientID string        `json:"client_id" yaml:"client_id"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}
