package quota

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/github-stars-collector/pkg/credentials"
)

// Prometheus metrics for quota tracking.
var quotaRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "collector_quota_remaining",
	Help: "Last observed rate-limit budget remaining, per masked credential",
}, []string{"credential"})

// Tracker records the latest observed quota per credential. Credentials never
// observed are unknown and assumed usable, so the first call on a fresh
// credential is always attempted optimistically.
type Tracker struct {
	mu     sync.Mutex
	states map[credentials.Credential]State
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[credentials.Credential]State),
	}
}

// Update records the latest observed quota for a credential, overwriting the
// prior value entirely. The API report is authoritative; budgets are never
// decremented locally between reports.
func (t *Tracker) Update(c credentials.Credential, remaining int, resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[c] = State{
		Remaining:  remaining,
		ResetAt:    resetAt,
		ObservedAt: time.Now(),
	}
	quotaRemaining.WithLabelValues(c.Mask()).Set(float64(remaining))
}

// MarkExhausted records a known-exhausted state for a credential, used when
// the API signals a rate limit without reporting budget numbers.
func (t *Tracker) MarkExhausted(c credentials.Credential, resetAt time.Time) {
	t.Update(c, 0, resetAt)
}

// State returns the last observation for the credential.
func (t *Tracker) State(c credentials.Credential) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[c]
	return s, ok
}

// IsExhausted returns true iff the credential's last observed budget is spent
// and its window has not reset. Unknown credentials are never exhausted.
func (t *Tracker) IsExhausted(c credentials.Credential, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[c]
	if !ok {
		return false
	}
	return s.Exhausted(now)
}

// NearExhaustion returns true when the credential's remaining budget is at or
// below the threshold and its window has not reset. A threshold below zero
// disables the check. Unknown credentials are never near exhaustion.
func (t *Tracker) NearExhaustion(c credentials.Credential, threshold int, now time.Time) bool {
	if threshold < 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[c]
	if !ok {
		return false
	}
	return s.Remaining <= threshold && now.Before(s.ResetAt)
}

// SoonestReset returns the earliest reset time still ahead of now among the
// given credentials. Returns false when none of them has a known future reset,
// which is the signal that waiting cannot help.
func (t *Tracker) SoonestReset(creds []credentials.Credential, now time.Time) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var soonest time.Time
	found := false
	for _, c := range creds {
		s, ok := t.states[c]
		if !ok || !s.ResetAt.After(now) {
			continue
		}
		if !found || s.ResetAt.Before(soonest) {
			soonest = s.ResetAt
			found = true
		}
	}
	return soonest, found
}
