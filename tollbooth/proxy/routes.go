package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/lifelog/core/internal/ctxkeys"
	"github.com/lifelog/core/lifelog"
)

// Router builds the proxy's HTTP surface: /v1/chat/completions,
// /v1/completions (legacy alias), and /v1/embeddings. Auth extraction
// here (internalSecret bearer + X-User-ID) is a minimal stand-in that
// implements the same user_id-in-request-context contract every handler
// downstream assumes.
func (h *Handler) Router(internalSecret string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", h.handleCompletions)
	mux.HandleFunc("/v1/completions", h.handleCompletions)
	mux.HandleFunc("/v1/embeddings", h.handleEmbeddings)
	return h.withAuth(internalSecret, mux)
}

func (h *Handler) withAuth(internalSecret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		token := strings.TrimPrefix(authz, "Bearer ")
		if internalSecret != "" && token != internalSecret {
			WriteError(w, &lifelog.Error{Kind: lifelog.KindAuthentication, Message: "invalid internal secret"})
			return
		}
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			WriteError(w, lifelog.New(lifelog.KindInvalidInput, "missing X-User-ID header"))
			return
		}
		ctx := ctxkeys.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleCompletions(w http.ResponseWriter, r *http.Request) {
	userID, _ := ctxkeys.UserID(r.Context())
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, lifelog.Wrap(lifelog.KindInvalidInput, "decoding request body", err))
		return
	}

	if req.Stream != nil && *req.Stream {
		if err := h.Stream(r.Context(), w, userID, req); err != nil {
			WriteError(w, err)
		}
		return
	}

	resp, err := h.Complete(r.Context(), userID, req)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleEmbeddings forwards to OpenAI's embeddings endpoint regardless
// of the requested model: embeddings require OpenAI specifically.
func (h *Handler) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	userID, _ := ctxkeys.UserID(r.Context())
	if err := h.admit(userID); err != nil {
		WriteError(w, err)
		return
	}
	if h.config.OpenAIAPIKey == "" {
		WriteError(w, lifelog.UpstreamHTTP("openai", http.StatusServiceUnavailable, "openai not configured (required for embeddings)"))
		return
	}

	reqBody, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, lifelog.Wrap(lifelog.KindNetwork, "reading embeddings request body", err))
		return
	}

	httpReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, "https://api.openai.com/v1/embeddings", strings.NewReader(string(reqBody)))
	if err != nil {
		WriteError(w, lifelog.Wrap(lifelog.KindNetwork, "building embeddings request", err))
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+h.config.OpenAIAPIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		WriteError(w, lifelog.Wrap(lifelog.KindNetwork, "calling openai embeddings", err))
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		WriteError(w, lifelog.Wrap(lifelog.KindNetwork, "reading embeddings response", err))
		return
	}

	if resp.StatusCode < 300 {
		var payload struct {
			Usage struct {
				TotalTokens int `json:"total_tokens"`
			} `json:"usage"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			// ~$0.0001 per 1K tokens.
			cost := float64(payload.Usage.TotalTokens) / 1000.0 * 0.0001
			h.budget.Deduct(userID, cost)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
}
