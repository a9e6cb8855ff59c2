package proxy

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/lifelog/core/config"
)

// vertexAIScope is the OAuth2 scope required for Vertex AI's generative
// model endpoints.
const vertexAIScope = "https://www.googleapis.com/auth/cloud-platform"

// VertexTokenSource caches a GCP service-account access token, refreshing
// it via the standard JWT-bearer flow (golang.org/x/oauth2/google) only
// once its expiry approaches, memoizing the token for the process
// lifetime.
type VertexTokenSource struct {
	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewVertexTokenSource builds a token source from a service-account JSON
// key. Returns an error if the credentials JSON is empty or malformed.
func NewVertexTokenSource(cfg config.ProxyConfig) (*VertexTokenSource, error) {
	if cfg.VertexCredentials == "" {
		return nil, fmt.Errorf("vertex: no service account credentials configured")
	}
	jwtCfg, err := google.JWTConfigFromJSON([]byte(cfg.VertexCredentials), vertexAIScope)
	if err != nil {
		return nil, fmt.Errorf("vertex: parsing service account JSON: %w", err)
	}
	return &VertexTokenSource{source: jwtCfg.TokenSource(context.Background())}, nil
}

// AccessToken returns a valid bearer token, transparently refreshing when
// the cached one is within its expiry window (oauth2.TokenSource already
// handles the refresh-ahead-of-expiry logic internally).
func (v *VertexTokenSource) AccessToken(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	tok, err := v.source.Token()
	if err != nil {
		return "", fmt.Errorf("vertex: refreshing access token: %w", err)
	}
	return tok.AccessToken, nil
}

// VertexEndpoint builds the regional Vertex AI OpenAI-compatible chat
// completions endpoint for the configured project/location. The target
// model is carried in the request body's "model" field, same as any
// other OpenAI-compatible route.
func VertexEndpoint(cfg config.ProxyConfig) string {
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/endpoints/openapi/chat/completions",
		cfg.VertexLocation, cfg.VertexProjectID, cfg.VertexLocation,
	)
}
