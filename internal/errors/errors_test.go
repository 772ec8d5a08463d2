package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/coinbridge/internal/market"
	"github.com/namelens/coinbridge/internal/upstream"
)

func TestFromUpstream(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"invalid input", fmt.Errorf("%w: unsupported interval", market.ErrInvalidInput), CodeInvalidInput, http.StatusBadRequest},
		{"rejected", &upstream.Error{Provider: "binance", StatusCode: 400, Code: "-1121"}, CodeUpstreamRejected, http.StatusBadRequest},
		{"rate limited", &upstream.Error{StatusCode: 429, RetryAfter: 5 * time.Second}, CodeRateLimited, http.StatusTooManyRequests},
		{"unreachable", fmt.Errorf("%w: spot", upstream.ErrUnreachable), CodeUpstreamUnavailable, http.StatusServiceUnavailable},
		{"timeout", fmt.Errorf("fetch: %w", context.DeadlineExceeded), CodeTimeout, http.StatusGatewayTimeout},
		{"other", fmt.Errorf("decode: boom"), CodeExternalService, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := FromUpstream(context.Background(), tt.err, "ticker failed")
			assert.Equal(t, tt.code, env.Code)
			assert.Equal(t, tt.status, HTTPStatusFromEnvelope(env))
			assert.NotEmpty(t, env.CorrelationID)
		})
	}
}

func TestFromUpstreamDetails(t *testing.T) {
	env := FromUpstream(context.Background(), &upstream.Error{StatusCode: 429, RetryAfter: 5 * time.Second}, "slow down")
	assert.EqualValues(t, 5, ResponseDetails(env)["retry_after_seconds"])
	assert.Contains(t, ResponseDetails(env), "wrapped_error")

	env = FromUpstream(context.Background(), fmt.Errorf("%w: spot", upstream.ErrUnreachable), "down")
	assert.Equal(t, upstream.UserAction, ResponseDetails(env)["user_action_required"])
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/binance/alpha/analyze", nil)
	RespondWithError(rec, req, NewInvalidInputError("symbol is required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeInvalidInput, body.Error.Code)
	assert.Equal(t, "symbol is required", body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestEnsureEnvelopeWrapsPlainErrors(t *testing.T) {
	env := EnsureEnvelope(fmt.Errorf("boom"))
	assert.Equal(t, CodeInternal, env.Code)
	assert.Equal(t, "boom", env.Context["wrapped_error"])
}
