// Package ratelimit implements a rolling-window rate limiter shared by all
// callers of a remote API. At most Window.MaxCalls permits are granted in any
// interval of Window.Duration; callers over the budget are suspended until
// the oldest grant leaves the window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for rate limiter operations.
var (
	grantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefetch_ratelimit_grants_total",
		Help: "Total number of permits granted by the rate limiter",
	})

	waitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefetch_ratelimit_waits_total",
		Help: "Total number of times a caller had to wait for a permit",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagefetch_ratelimit_wait_seconds",
		Help:    "Time callers spent waiting for a rate limit permit",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// Window is the immutable rate limit configuration: at most MaxCalls permits
// per rolling interval of Duration.
type Window struct {
	MaxCalls int
	Duration time.Duration
}

func (w Window) validate() error {
	if w.MaxCalls < 1 {
		return fmt.Errorf("max calls must be >= 1 (got %d)", w.MaxCalls)
	}
	if w.Duration <= 0 {
		return fmt.Errorf("window duration must be positive (got %v)", w.Duration)
	}
	return nil
}

// Limiter grants permits within a rolling window. It is safe for concurrent
// use; the timestamp ledger is only touched under the mutex, so two callers
// can never both take the last free slot.
type Limiter struct {
	mu     sync.Mutex
	window Window
	grants []time.Time
	logger zerolog.Logger
}

// NewLimiter creates a limiter for the given window.
func NewLimiter(w Window) (*Limiter, error) {
	if err := w.validate(); err != nil {
		return nil, fmt.Errorf("invalid rate window: %w", err)
	}

	return &Limiter{
		window: w,
		grants: make([]time.Time, 0, w.MaxCalls),
		logger: log.With().Str("component", "ratelimit").Logger(),
	}, nil
}

// Window returns the limiter's configuration.
func (l *Limiter) Window() Window {
	return l.window
}

// Acquire blocks until a permit is available or ctx is done. Each granted
// permit is recorded in the ledger; grants older than the window are pruned
// on every call. Waiting callers do not hold the mutex, so concurrent
// acquisitions make progress independently.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.prune(now)

		if len(l.grants) < l.window.MaxCalls {
			l.grants = append(l.grants, now)
			l.mu.Unlock()
			grantsTotal.Inc()
			return nil
		}

		// Wait until the oldest grant exits the window, then re-check.
		wait := l.grants[0].Add(l.window.Duration).Sub(now)
		l.mu.Unlock()

		waitsTotal.Inc()
		waitSeconds.Observe(wait.Seconds())

		l.logger.Debug().
			Dur("wait", wait).
			Int("max_calls", l.window.MaxCalls).
			Msg("Rate limit reached, waiting for free slot")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.logger.Warn().
				Dur("wait", wait).
				Msg("Context cancelled while waiting for rate limit permit")
			return fmt.Errorf("rate limiter wait aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// prune drops ledger entries older than the window. Caller must hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window.Duration)
	idx := 0
	for idx < len(l.grants) && !l.grants[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.grants = append(l.grants[:0], l.grants[idx:]...)
	}
}

// InFlight returns the number of grants currently inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(time.Now())
	return len(l.grants)
}
