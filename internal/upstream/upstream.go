// Package upstream classifies failures from third-party market data APIs.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrUnreachable is wrapped when every host tried for a request failed at
// the network level, was geo-blocked, or answered 5xx.
var ErrUnreachable = errors.New("upstream unreachable")

// Error is returned when a provider answers with a 4xx status, or with a
// 2xx envelope that carries a failure code.
//
// Msg is the provider's own message and must never include credentials.
type Error struct {
	Provider   string
	StatusCode int
	Code       string
	Msg        string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e == nil {
		return "upstream error"
	}
	provider := e.Provider
	if provider == "" {
		provider = "upstream"
	}
	switch {
	case e.Msg != "" && e.Code != "":
		return fmt.Sprintf("%s: HTTP %d: %s (code %s)", provider, e.StatusCode, e.Msg, e.Code)
	case e.Msg != "":
		return fmt.Sprintf("%s: HTTP %d: %s", provider, e.StatusCode, e.Msg)
	default:
		return fmt.Sprintf("%s: HTTP %d", provider, e.StatusCode)
	}
}

// Class groups upstream failures by how callers should react.
type Class string

const (
	ClassNone        Class = ""
	ClassRejected    Class = "rejected"
	ClassRateLimited Class = "rate_limited"
	ClassUnavailable Class = "unavailable"
	ClassTimeout     Class = "timeout"
	ClassFailed      Class = "failed"
)

// Classify maps err onto a Class.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, ErrUnreachable) {
		return ClassUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}

	var uerr *Error
	if errors.As(err, &uerr) && uerr != nil {
		status := uerr.StatusCode
		switch {
		case status == http.StatusTooManyRequests || status == http.StatusTeapot:
			return ClassRateLimited
		case status >= 500 && status <= 599:
			return ClassUnavailable
		case status >= 400 && status <= 499:
			return ClassRejected
		}
	}
	return ClassFailed
}

// IsUnreachable reports whether all hosts failed.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// StatusOf returns the provider HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var uerr *Error
	if errors.As(err, &uerr) && uerr != nil {
		return uerr.StatusCode
	}
	return 0
}

// RetryAfterOf returns the Retry-After hint carried by err, or 0.
func RetryAfterOf(err error) time.Duration {
	var uerr *Error
	if errors.As(err, &uerr) && uerr != nil {
		return uerr.RetryAfter
	}
	return 0
}

// RetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func RetryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	value := strings.TrimSpace(h.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if parsed, err := http.ParseTime(value); err == nil {
		if wait := time.Until(parsed); wait > 0 {
			return wait
		}
	}
	return 0
}

// UserAction is the hint shown to users when an upstream cannot be reached.
const UserAction = "⚠️ Network problem detected: make sure your VPN or proxy is connected, then retry. Accurate data is not available right now."
