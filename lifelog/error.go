// Package lifelog carries cross-cutting types shared by every component of
// the ingestion-to-ontology core: the closed error-kind taxonomy and its HTTP
// classification.
package lifelog

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of error categories every component reports.
type Kind string

const (
	KindConfiguration        Kind = "configuration"
	KindAuthentication       Kind = "authentication"
	KindInvalidInput         Kind = "invalid_input"
	KindNotFound             Kind = "not_found"
	KindRateLimit            Kind = "rate_limit"
	KindUpstreamHTTP         Kind = "upstream_http"
	KindNetwork              Kind = "network"
	KindDatabase             Kind = "database"
	KindEncoding             Kind = "encoding"
	KindInsufficientBudget   Kind = "insufficient_budget"
	KindSubscriptionExpired  Kind = "subscription_expired"
	KindCancelled            Kind = "cancelled"
	KindTimeout              Kind = "timeout"
	KindInternal             Kind = "internal"
)

// Error is the shape every component returns for classifiable failures.
type Error struct {
	Kind     Kind
	Message  string
	Status   int    // populated for KindUpstreamHTTP
	Provider string // populated when the error originates from a named provider
	Balance  float64 // populated for KindInsufficientBudget
	Cause    error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (provider=%s)", e.Kind, e.Message, e.Provider)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a lifelog.Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a lifelog.Error of the given kind carrying cause as Unwrap target.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// UpstreamHTTP builds a KindUpstreamHTTP error carrying the upstream status.
func UpstreamHTTP(provider string, status int, message string) *Error {
	return &Error{Kind: KindUpstreamHTTP, Status: status, Provider: provider, Message: message}
}

// InsufficientBudget builds a KindInsufficientBudget error carrying the
// current balance, surfaced to callers as HTTP 402.
func InsufficientBudget(balance float64) *Error {
	return &Error{Kind: KindInsufficientBudget, Message: "insufficient budget", Balance: balance}
}

// As extracts a *Error from err via errors.As, for classification call sites.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus classifies a Kind into the HTTP status code it should surface
// as.
func HTTPStatus(e *Error) int {
	switch e.Kind {
	case KindInsufficientBudget, KindSubscriptionExpired:
		return http.StatusPaymentRequired
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindInvalidInput, KindEncoding:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamHTTP:
		switch {
		case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
			return http.StatusUnauthorized
		case e.Status == http.StatusTooManyRequests:
			return http.StatusTooManyRequests
		case e.Status >= 500:
			return http.StatusBadGateway
		default:
			return http.StatusBadGateway
		}
	case KindNetwork:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCancelled:
		return http.StatusRequestTimeout
	case KindDatabase, KindConfiguration, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorType maps a Kind to the tollbooth proxy's error.type response
// string. Only the kinds the proxy can actually emit are covered; callers
// fall back to "internal_error".
func ErrorType(e *Error) string {
	switch e.Kind {
	case KindInsufficientBudget:
		return "insufficient_quota"
	case KindSubscriptionExpired:
		return "subscription_expired"
	case KindRateLimit:
		return "rate_limited"
	case KindUpstreamHTTP:
		if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
			return "llm_provider_auth_failed"
		}
		if e.Status == http.StatusTooManyRequests {
			return "rate_limited"
		}
		if e.Status >= 500 {
			return "provider_error"
		}
		return "upstream_error"
	case KindNetwork:
		return "network_error"
	default:
		return "internal_error"
	}
}
