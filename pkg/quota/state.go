// Package quota tracks per-credential API budget as reported by the
// X-RateLimit response headers. A Tracker is owned state: one instance per
// collection run, never shared across runs or processes.
package quota

import (
	"net/http"
	"strconv"
	"time"
)

// Rate limit headers returned by the GitHub API.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// State represents the last observed rate-limit budget for one credential.
type State struct {
	// Remaining is the number of calls left in the current window.
	// Extracted from the X-RateLimit-Remaining header.
	Remaining int `json:"remaining"`

	// ResetAt is the timestamp when the window replenishes.
	// Extracted from the X-RateLimit-Reset header (unix seconds).
	// The zero value means the API did not report a reset time.
	ResetAt time.Time `json:"reset_at"`

	// ObservedAt is when this state was recorded.
	ObservedAt time.Time `json:"observed_at"`
}

// Exhausted returns true when the budget is spent and the window has not yet
// reset. Once now reaches ResetAt the credential is presumed replenished even
// without a fresh report.
func (s State) Exhausted(now time.Time) bool {
	return s.Remaining <= 0 && now.Before(s.ResetAt)
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	duration := s.ResetAt.Sub(now)
	if duration < 0 {
		return 0
	}
	return duration
}

// ParseHeaders extracts rate-limit state from API response headers. It returns
// false when the remaining-budget header is absent or malformed; a missing or
// malformed reset header leaves ResetAt zero rather than failing, since GitHub
// omits it on some error responses.
func ParseHeaders(headers http.Header) (State, bool) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return State{}, false
	}
	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return State{}, false
	}

	var resetAt time.Time
	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		if resetUnix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			resetAt = time.Unix(resetUnix, 0)
		}
	}

	return State{Remaining: remaining, ResetAt: resetAt}, true
}
