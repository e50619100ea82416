// Package retry provides a layered retry policy composer. A Policy is an
// ordered list of rules, outer to inner; each rule retries a distinct class
// of failures with its own backoff and its own finite budget. The innermost
// matching rule handles an error first; only when its budget is exhausted
// does the error propagate to the next rule out.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefetch_retries_total",
		Help: "Total number of retry attempts by rule",
	}, []string{"rule"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagefetch_retry_backoff_seconds",
		Help:    "Backoff duration for retries by rule",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"rule"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefetch_retry_exhausted_total",
		Help: "Total number of times a rule's retry budget was exhausted",
	}, []string{"rule"})
)

// ErrExhausted is returned when a matching rule's retry budget runs out.
// The last underlying error is wrapped alongside it and remains visible to
// errors.Is and errors.As.
var ErrExhausted = errors.New("retry budget exhausted")

// Backoff computes the wait before re-invoking the wrapped unit. attempt is
// the number of failures seen so far by the rule, starting at 1.
type Backoff func(attempt int) time.Duration

// Fixed waits a constant duration between attempts.
func Fixed(d time.Duration) Backoff {
	return func(int) time.Duration {
		return d
	}
}

// Exponential doubles the wait on each attempt, starting at floor and capped
// at ceiling.
func Exponential(floor, ceiling time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := floor
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= ceiling {
				return ceiling
			}
		}
		if d > ceiling {
			return ceiling
		}
		return d
	}
}

// Rule retries one class of failures. Match decides whether an error belongs
// to the rule; Backoff spaces the attempts. A rule stops when MaxAttempts
// invocations of its wrapped unit have failed, or when its cumulative backoff
// waiting would exceed MaxElapsed, whichever bound is set. At least one bound
// is required: unbounded rules are rejected by NewPolicy.
type Rule struct {
	// Name labels the rule in logs and metrics.
	Name string

	// Match reports whether this rule handles the error.
	Match func(error) bool

	// Backoff spaces re-invocations of the wrapped unit.
	Backoff Backoff

	// MaxAttempts bounds the total invocations of the wrapped unit by this
	// rule. Zero means not attempt-bounded.
	MaxAttempts int

	// MaxElapsed bounds the cumulative time this rule spends waiting between
	// attempts. Zero means not time-bounded.
	MaxElapsed time.Duration
}

func (r Rule) validate() error {
	if r.Match == nil {
		return fmt.Errorf("rule %q: match predicate is required", r.Name)
	}
	if r.Backoff == nil {
		return fmt.Errorf("rule %q: backoff is required", r.Name)
	}
	if r.MaxAttempts <= 0 && r.MaxElapsed <= 0 {
		return fmt.Errorf("rule %q: unbounded rules are not allowed, set MaxAttempts or MaxElapsed", r.Name)
	}
	return nil
}

// Policy is an ordered list of rules, outermost first.
type Policy struct {
	rules []Rule
}

// NewPolicy builds a policy from rules given outermost first. Every rule must
// carry a finite stop condition.
func NewPolicy(rules ...Rule) (Policy, error) {
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return Policy{}, err
		}
	}
	return Policy{rules: rules}, nil
}

// Empty reports whether the policy has no rules. Executing an empty policy
// invokes the operation exactly once.
func (p Policy) Empty() bool {
	return len(p.rules) == 0
}

// Execute runs op under the policy. The innermost rule wraps the bare
// operation; on failure the innermost rule whose predicate accepts the error
// backs off and retries until its own budget runs out, then the error
// propagates outward. Errors no rule matches propagate immediately with zero
// retries. Backoff waits abort when ctx is done.
func (p Policy) Execute(ctx context.Context, op func() error) error {
	return p.run(ctx, 0, op)
}

func (p Policy) run(ctx context.Context, depth int, op func() error) error {
	if depth == len(p.rules) {
		return op()
	}

	rule := p.rules[depth]
	attempts := 0
	var waited time.Duration

	for {
		err := p.run(ctx, depth+1, op)
		if err == nil {
			if attempts > 0 {
				log.Info().
					Str("rule", rule.Name).
					Int("attempt", attempts+1).
					Msg("Operation succeeded after retry")
			}
			return nil
		}

		if !rule.Match(err) {
			return err
		}
		attempts++

		if rule.MaxAttempts > 0 && attempts >= rule.MaxAttempts {
			retryExhaustedTotal.WithLabelValues(rule.Name).Inc()
			log.Warn().
				Str("rule", rule.Name).
				Int("attempts", attempts).
				Err(err).
				Msg("Retry attempt budget exhausted")
			return fmt.Errorf("%w: rule %q gave up after %d attempts: %w", ErrExhausted, rule.Name, attempts, err)
		}

		wait := rule.Backoff(attempts)
		if rule.MaxElapsed > 0 && waited+wait > rule.MaxElapsed {
			retryExhaustedTotal.WithLabelValues(rule.Name).Inc()
			log.Warn().
				Str("rule", rule.Name).
				Dur("waited", waited).
				Err(err).
				Msg("Retry time budget exhausted")
			return fmt.Errorf("%w: rule %q gave up after %v of waiting: %w", ErrExhausted, rule.Name, waited, err)
		}

		retriesTotal.WithLabelValues(rule.Name).Inc()
		retryBackoffSeconds.WithLabelValues(rule.Name).Observe(wait.Seconds())

		log.Debug().
			Str("rule", rule.Name).
			Int("attempt", attempts).
			Dur("backoff", wait).
			Err(err).
			Msg("Retrying after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Str("rule", rule.Name).
				Int("attempt", attempts).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("retry wait aborted: %w", ctx.Err())
		case <-timer.C:
		}
		waited += wait
	}
}
