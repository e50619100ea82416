package cache

import "time"

// DefaultTTL is the fallback lifetime for cached pages when the caller does
// not configure one.
const DefaultTTL = 5 * time.Minute

// Entry is a cached page body.
type Entry struct {
	// Body is the raw response body as returned by the transport.
	Body []byte `json:"body"`

	// CachedAt is when the body was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the entry is past its expiry.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiry, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
