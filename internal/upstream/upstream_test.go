package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassNone},
		{"unreachable", fmt.Errorf("%w: spot /ticker/price: dial tcp", ErrUnreachable), ClassUnavailable},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), ClassTimeout},
		{"invalid symbol", &Error{Provider: "binance", StatusCode: 400, Code: "-1121"}, ClassRejected},
		{"rate limited", &Error{StatusCode: 429}, ClassRateLimited},
		{"banned", &Error{StatusCode: 418}, ClassRateLimited},
		{"server error", &Error{StatusCode: 503}, ClassUnavailable},
		{"envelope failure", &Error{StatusCode: 200, Code: "100001"}, ClassFailed},
		{"plain", errors.New("boom"), ClassFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "binance: HTTP 400: Invalid symbol. (code -1121)",
		(&Error{Provider: "binance", StatusCode: 400, Code: "-1121", Msg: "Invalid symbol."}).Error())
	assert.Equal(t, "coingecko: HTTP 404: coin not found",
		(&Error{Provider: "coingecko", StatusCode: 404, Msg: "coin not found"}).Error())
	assert.Equal(t, "upstream: HTTP 500", (&Error{StatusCode: 500}).Error())
}

func TestStatusOf(t *testing.T) {
	wrapped := fmt.Errorf("ticker: %w", &Error{StatusCode: 451})
	assert.Equal(t, 451, StatusOf(wrapped))
	assert.Equal(t, 0, StatusOf(errors.New("x")))
}

func TestRetryAfterOf(t *testing.T) {
	wrapped := fmt.Errorf("klines: %w", &Error{StatusCode: 429, RetryAfter: 12 * time.Second})
	assert.Equal(t, 12*time.Second, RetryAfterOf(wrapped))
	assert.Equal(t, time.Duration(0), RetryAfterOf(errors.New("x")))
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Duration(0), RetryAfter(h))

	h.Set("Retry-After", "30")
	assert.Equal(t, 30*time.Second, RetryAfter(h))

	h.Set("Retry-After", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	assert.Greater(t, RetryAfter(h), 50*time.Minute)

	h.Set("Retry-After", "soon")
	assert.Equal(t, time.Duration(0), RetryAfter(h))
}
