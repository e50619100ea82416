package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Transport is the consumed boundary to the remote API: an idempotent
// GET-style call on a resource path with query parameters. Implementations
// classify failures into the error taxonomy so retry predicates can tell
// them apart.
type Transport interface {
	Get(ctx context.Context, resource string, params url.Values) ([]byte, error)
}

// HTTPTransport is the default Transport on net/http.
type HTTPTransport struct {
	base       *url.URL
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// NewHTTPTransport creates a transport rooted at baseURL.
func NewHTTPTransport(baseURL, userAgent string) (*HTTPTransport, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute (got %q)", baseURL)
	}

	return &HTTPTransport{
		base: base,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: userAgent,
		logger:    log.With().Str("component", "transport").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// Get performs the request and classifies the outcome. Connection and
// timeout failures become network errors, HTTP 429 becomes a rate-limited
// error, and any other non-2xx status becomes an HTTP error carrying the
// status code.
func (t *HTTPTransport) Get(ctx context.Context, resource string, params url.Values) ([]byte, error) {
	u := t.base.JoinPath(resource)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Warn().Err(err).Str("resource", resource).Msg("HTTP request failed")
		return nil, &Error{Kind: KindNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.logger.Warn().Err(err).Str("resource", resource).Msg("Reading response body failed")
		return nil, &Error{Kind: KindNetwork, Message: "read response body", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		t.logger.Warn().
			Str("resource", resource).
			Int("status", resp.StatusCode).
			Msg("Remote signalled throttling")
		return nil, &Error{Kind: KindRateLimited, Status: resp.StatusCode, Message: "rate limited by remote"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		t.logger.Warn().
			Str("resource", resource).
			Int("status", resp.StatusCode).
			Msg("Request returned error status")
		return nil, &Error{Kind: KindHTTP, Status: resp.StatusCode, Message: resp.Status}
	}

	return body, nil
}
