package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lifelog/core/lifelog"
)

// errorBody is the OpenAI-compatible error envelope, with an extra hint
// field for common upstream failure codes.
type errorBody struct {
	Error struct {
		Message            string `json:"message"`
		Type               string `json:"type"`
		Code               string `json:"code"`
		Hint               string `json:"hint,omitempty"`
		UpstreamStatus     int    `json:"upstream_status,omitempty"`
		SubscriptionStatus string `json:"status,omitempty"`
	} `json:"error"`
}

// upstreamHint maps an upstream status code to a human-actionable hint.
func upstreamHint(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "Check the provider API key configured for this model."
	case status == http.StatusTooManyRequests:
		return "Provider rate limit exceeded. Wait and retry."
	case status >= 500 && status <= 599:
		return "Provider service error. Try again or use a different model."
	default:
		return "Error communicating with the LLM provider."
	}
}

// WriteError renders a *lifelog.Error as the JSON body and status code a
// tollbooth client expects.
func WriteError(w http.ResponseWriter, err error) {
	e, ok := lifelog.As(err)
	if !ok {
		e = lifelog.Wrap(lifelog.KindInternal, err.Error(), err)
	}

	status := lifelog.HTTPStatus(e)
	var body errorBody
	body.Error.Type = lifelog.ErrorType(e)
	body.Error.Code = body.Error.Type

	switch e.Kind {
	case lifelog.KindInsufficientBudget:
		body.Error.Message = fmt.Sprintf("Insufficient budget. Current balance: $%.2f", e.Balance)
	case lifelog.KindSubscriptionExpired:
		body.Error.Message = "Subscription expired"
		body.Error.SubscriptionStatus = e.Provider // Provider carries the subscription status string here, not a provider name
	case lifelog.KindUpstreamHTTP:
		body.Error.Message = "[" + body.Error.Type + "] " + e.Message
		body.Error.Hint = upstreamHint(e.Status)
		body.Error.UpstreamStatus = e.Status
	default:
		body.Error.Message = e.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
