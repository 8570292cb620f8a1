package cache

import (
	"time"
)

// DefaultTTL is the fallback lifetime for cached pages when the caller does
// not configure one. Star counts drift slowly, so repeated runs within this
// window can reuse pages without re-spending API quota.
const DefaultTTL = 30 * time.Minute

// Entry represents one cached search page.
type Entry struct {
	// Payload is the serialized page.
	Payload []byte `json:"payload"`

	// CachedAt is when the page was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// NewEntry builds an entry expiring ttl from now. A non-positive ttl falls
// back to DefaultTTL.
func NewEntry(payload []byte, ttl time.Duration) *Entry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &Entry{
		Payload:  payload,
		CachedAt: now,
		Expires:  now.Add(ttl),
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
