// Package oauthproxy models a separate service the executor delegates
// OAuth token lifecycle to, rather than talking to each provider's OAuth
// endpoint directly.
package oauthproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lifelog/core/internal/tlsutil"
	"github.com/lifelog/core/lifelog"
)

// Client calls the OAuth-proxy service's /refresh endpoint and builds its
// /auth authorization URLs. It has no call for the /token code-for-token
// exchange.
type Client struct {
	baseURL      string
	stateSecret  []byte
	httpClient   *http.Client
}

// New constructs an oauthproxy Client. stateSecret signs the OAuth
// state parameter (HS256) so callback validation can reject tampering.
func New(baseURL string, stateSecret []byte, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = tlsutil.SecureHTTPClient(15 * time.Second)
	}
	return &Client{baseURL: baseURL, stateSecret: stateSecret, httpClient: httpClient}
}

// RefreshResult is the proxy's /refresh response.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string // empty when the provider did not rotate it
	ExpiresIn    time.Duration
}

type refreshRequest struct {
	Provider     string `json:"provider"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh exchanges a refresh token for a new access token. Refresh
// failures are surfaced so the caller can mark the source with an auth
// error and abort the run.
func (c *Client) Refresh(ctx context.Context, provider, refreshToken string) (RefreshResult, error) {
	body, err := json.Marshal(refreshRequest{Provider: provider, RefreshToken: refreshToken})
	if err != nil {
		return RefreshResult{}, lifelog.Wrap(lifelog.KindEncoding, "encode refresh request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/refresh", bytes.NewReader(body))
	if err != nil {
		return RefreshResult{}, lifelog.Wrap(lifelog.KindNetwork, "build refresh request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RefreshResult{}, lifelog.Wrap(lifelog.KindNetwork, "call oauth-proxy refresh", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RefreshResult{}, lifelog.UpstreamHTTP("oauth-proxy", resp.StatusCode, "refresh token rejected")
	}

	var rr refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return RefreshResult{}, lifelog.Wrap(lifelog.KindEncoding, "decode refresh response", err)
	}
	return RefreshResult{
		AccessToken:  rr.AccessToken,
		RefreshToken: rr.RefreshToken,
		ExpiresIn:    time.Duration(rr.ExpiresIn) * time.Second,
	}, nil
}

// stateClaims are the claims embedded in the signed OAuth state parameter.
// State-parameter signing happens on authorisation initiation; validation
// happens on callback.
type stateClaims struct {
	SourceID string `json:"source_id"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// SignState produces the signed state parameter to attach to an
// authorisation-initiation redirect.
func (c *Client) SignState(sourceID, provider string, ttl time.Duration) (string, error) {
	claims := stateClaims{
		SourceID: sourceID,
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.stateSecret)
	if err != nil {
		return "", lifelog.Wrap(lifelog.KindInternal, "sign oauth state", err)
	}
	return signed, nil
}

// VerifyState validates a callback's state parameter and returns the
// source id and provider it was issued for.
func (c *Client) VerifyState(state string) (sourceID, provider string, err error) {
	token, err := jwt.ParseWithClaims(state, &stateClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return c.stateSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", "", lifelog.Wrap(lifelog.KindAuthentication, "invalid oauth state", err)
	}
	claims, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid {
		return "", "", lifelog.New(lifelog.KindAuthentication, "invalid oauth state claims")
	}
	return claims.SourceID, claims.Provider, nil
}

// AuthorizeURL builds the proxy's /auth redirect URL for the given
// provider, carrying the signed state.
func (c *Client) AuthorizeURL(provider, signedState string) string {
	return fmt.Sprintf("%s/auth?provider=%s&state=%s", c.baseURL, provider, signedState)
}
