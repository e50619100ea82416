// Package client provides the fetch executor: one logical page fetch
// composed of credential injection, rate limiting, layered retries, and
// envelope decoding.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vlukiyanov/pagefetch/pkg/cache"
	"github.com/vlukiyanov/pagefetch/pkg/ratelimit"
	"github.com/vlukiyanov/pagefetch/pkg/retry"
)

// Prometheus metrics for fetch operations.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefetch_fetches_total",
		Help: "Total fetches by resource and outcome",
	}, []string{"resource", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagefetch_fetch_duration_seconds",
		Help:    "Fetch duration in seconds by resource",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefetch_fetch_errors_total",
		Help: "Total terminal fetch errors by kind",
	}, []string{"kind"})
)

// Config holds the fetch executor configuration.
type Config struct {
	// Transport performs the underlying GET calls. Required.
	Transport Transport

	// Limiter gates every transport attempt. Required.
	Limiter *ratelimit.Limiter

	// Policy is the layered retry policy. Empty means DefaultRetryPolicy.
	Policy retry.Policy

	// Shape selects the response envelope form for this endpoint family.
	Shape Shape

	// Credentials are merged into every request's query parameters.
	// Optional.
	Credentials CredentialSource

	// Cache holds fetched page bodies keyed by resource and parameters.
	// Optional; nil disables caching.
	Cache *cache.Store

	// CacheTTL is how long cached pages stay valid.
	CacheTTL time.Duration
}

// DefaultRetryPolicy is the layered policy applied to every fetch: an outer
// rule for transient network failures with exponential backoff (1s floor,
// 60s ceiling, 3 total attempts) around an inner rule for explicit remote
// throttling with a fixed 1s backoff bounded by 60s of cumulative waiting.
// The inner rule absorbs throttling so a remote 429 never burns the outer
// attempt budget.
func DefaultRetryPolicy() retry.Policy {
	policy, err := retry.NewPolicy(
		retry.Rule{
			Name:        "network",
			Match:       MatchKinds(KindNetwork),
			Backoff:     retry.Exponential(1*time.Second, 60*time.Second),
			MaxAttempts: 3,
		},
		retry.Rule{
			Name:       "rate_limited",
			Match:      MatchKinds(KindRateLimited),
			Backoff:    retry.Fixed(1 * time.Second),
			MaxElapsed: 60 * time.Second,
		},
	)
	if err != nil {
		// Both rules carry finite bounds, so this cannot happen.
		panic(err)
	}
	return policy
}

// Client executes single page fetches against one remote endpoint family.
type Client struct {
	transport Transport
	limiter   *ratelimit.Limiter
	policy    retry.Policy
	shape     Shape
	creds     CredentialSource
	cache     *cache.Store
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// New creates a fetch executor.
func New(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	policy := cfg.Policy
	if policy.Empty() {
		policy = DefaultRetryPolicy()
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultTTL
	}

	return &Client{
		transport: cfg.Transport,
		limiter:   cfg.Limiter,
		policy:    policy,
		shape:     cfg.Shape,
		creds:     cfg.Credentials,
		cache:     cfg.Cache,
		cacheTTL:  cacheTTL,
		logger:    log.With().Str("component", "client").Logger(),
	}, nil
}

// Fetch performs one logical page fetch. The transport runs under the retry
// policy; every transport attempt first takes a rate limiter permit, so
// retries consume slots like first attempts do. The response body is decoded
// per the configured shape; malformed bodies fail without retrying.
func (c *Client) Fetch(ctx context.Context, req FetchRequest) (*PageEnvelope, error) {
	start := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(req.Resource).Observe(time.Since(start).Seconds())
	}()

	if c.cache != nil {
		if body, ok := c.cacheLookup(ctx, req); ok {
			env, err := c.shape.Decode(body)
			if err == nil {
				fetchesTotal.WithLabelValues(req.Resource, "cache_hit").Inc()
				return env, nil
			}
			// A cached body that no longer decodes is stale configuration;
			// fall through to a fresh fetch.
			c.logger.Warn().Err(err).Str("resource", req.Resource).Msg("Cached body failed to decode, refetching")
		}
	}

	params := withCredentials(req.Params, c.creds)

	var body []byte
	err := c.policy.Execute(ctx, func() error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		data, err := c.transport.Get(ctx, req.Resource, params)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, c.terminal(req, err)
	}

	env, err := c.shape.Decode(body)
	if err != nil {
		return nil, c.terminal(req, err)
	}

	if c.cache != nil {
		key := cache.Key{Resource: req.Resource, Params: req.Params}
		if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
			c.logger.Warn().Err(err).Str("resource", req.Resource).Msg("Failed to cache page body")
		}
	}

	fetchesTotal.WithLabelValues(req.Resource, "ok").Inc()
	return env, nil
}

// cacheLookup returns a cached body for the request, if any. Cache failures
// degrade to a direct fetch.
func (c *Client) cacheLookup(ctx context.Context, req FetchRequest) ([]byte, bool) {
	key := cache.Key{Resource: req.Resource, Params: req.Params}
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("resource", req.Resource).Msg("Cache lookup failed")
		}
		return nil, false
	}
	return entry.Body, true
}

// terminal records and normalizes an error crossing the executor boundary.
func (c *Client) terminal(req FetchRequest, err error) error {
	kind := KindOf(err)
	fetchErrorsTotal.WithLabelValues(string(kind)).Inc()
	fetchesTotal.WithLabelValues(req.Resource, "error").Inc()

	c.logger.Warn().
		Err(err).
		Str("resource", req.Resource).
		Str("kind", string(kind)).
		Msg("Fetch failed")

	if kind == KindCancelled && !errors.Is(err, ErrCancelled) {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return err
}
