package fetcher

import (
	"context"
	"errors"
	"strings"
)

// Kind classifies a fetch failure.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindTransport   Kind = "transport"
	KindURLFormat   Kind = "url_format"
)

// Error is the failure surface of the change fetcher. Messages never
// carry access tokens.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return "fetch " + string(e.Kind) + ": " + e.Message
}

// KindOf extracts the failure kind, defaulting to transport.
func KindOf(err error) Kind {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Kind
	}
	return KindTransport
}

func retryable(kind Kind) bool {
	return kind == KindTransport || kind == KindRateLimited
}

// classify maps a provider error to a failure kind by the status hints
// providers leave in their messages.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "404"):
		return KindNotFound
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"):
		return KindRateLimited
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return KindAuth
	default:
		return KindTransport
	}
}
