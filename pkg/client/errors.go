package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/vlukiyanov/pagefetch/pkg/retry"
)

// Kind classifies fetch errors for retry predicates and metrics.
type Kind string

const (
	// KindNetwork covers connection and timeout failures.
	KindNetwork Kind = "network"

	// KindRateLimited covers explicit throttling signals from the remote side.
	KindRateLimited Kind = "rate_limited"

	// KindHTTP covers non-2xx responses other than throttling.
	KindHTTP Kind = "http"

	// KindDecode covers malformed or unexpected response bodies.
	KindDecode Kind = "decode"

	// KindCancelled covers caller-initiated cancellation.
	KindCancelled Kind = "cancelled"

	// KindUnknown is returned for errors outside the taxonomy.
	KindUnknown Kind = ""
)

// Sentinel errors crossing the fetch executor boundary.
var (
	// ErrRetryExhausted is surfaced when every retry budget ran out. It
	// carries the last underlying error.
	ErrRetryExhausted = retry.ErrExhausted

	// ErrCancelled is surfaced when a fetch, retry wait, or rate limiter
	// wait was aborted by the caller.
	ErrCancelled = errors.New("fetch cancelled")
)

// Error is a classified fetch error.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Status > 0 && e.Err != nil:
		return fmt.Sprintf("%s error (status %d): %s: %v", e.Kind, e.Status, e.Message, e.Err)
	case e.Status > 0:
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Cancellation is recognized before the
// typed classification so an aborted request never masquerades as a network
// failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// MatchKinds builds a retry predicate accepting errors of the given kinds.
func MatchKinds(kinds ...Kind) func(error) bool {
	return func(err error) bool {
		got := KindOf(err)
		for _, k := range kinds {
			if got == k {
				return true
			}
		}
		return false
	}
}
