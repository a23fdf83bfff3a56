package llm

import (
	"context"
	"errors"
	"strings"
)

// Kind classifies a gateway failure.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindTransport   Kind = "transport"
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindParse       Kind = "parse"
)

// Error is the failure surface of the LLM gateway. The message is
// already redacted; credentials never pass through it.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return "llm " + string(e.Kind) + ": " + e.Message
}

// KindOf extracts the failure kind, defaulting to transport for
// unclassified errors.
func KindOf(err error) Kind {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}

// retryable reports whether a failure kind is worth another attempt.
// Auth and deterministic client errors never are; timeouts are
// bounded by the analyzer's overall deadline instead.
func retryable(kind Kind) bool {
	return kind == KindTransport || kind == KindRateLimited
}

// classify maps a raw backend error to a failure kind by inspecting
// the status hints backends leave in their messages.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return KindRateLimited
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return KindAuth
	case strings.Contains(msg, "400"):
		// Deterministic client error, never retried.
		return KindParse
	default:
		return KindTransport
	}
}
