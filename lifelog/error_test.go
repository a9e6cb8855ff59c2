package lifelog

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus_InsufficientBudget(t *testing.T) {
	err := InsufficientBudget(1.23)
	assert.Equal(t, http.StatusPaymentRequired, HTTPStatus(err))
	assert.Equal(t, "insufficient_quota", ErrorType(err))
	assert.Equal(t, 1.23, err.Balance)
}

func TestHTTPStatus_UpstreamClassification(t *testing.T) {
	tests := []struct {
		status       int
		wantHTTP     int
		wantErrType  string
	}{
		{http.StatusUnauthorized, http.StatusUnauthorized, "llm_provider_auth_failed"},
		{http.StatusForbidden, http.StatusUnauthorized, "llm_provider_auth_failed"},
		{http.StatusTooManyRequests, http.StatusTooManyRequests, "rate_limited"},
		{http.StatusInternalServerError, http.StatusBadGateway, "provider_error"},
		{http.StatusBadRequest, http.StatusBadGateway, "upstream_error"},
	}

	for _, tt := range tests {
		e := UpstreamHTTP("openai", tt.status, "boom")
		assert.Equal(t, tt.wantHTTP, HTTPStatus(e))
		assert.Equal(t, tt.wantErrType, ErrorType(e))
	}
}

func TestHTTPStatus_Network(t *testing.T) {
	e := New(KindNetwork, "connection reset")
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(e))
	assert.Equal(t, "network_error", ErrorType(e))
}

func TestError_Unwrap(t *testing.T) {
	cause := assertAnError()
	e := Wrap(KindDatabase, "query failed", cause)
	assert.ErrorIs(t, e, cause)
}

func assertAnError() error {
	return New(KindInternal, "root cause")
}
