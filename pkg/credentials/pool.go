// Package credentials manages the pool of API tokens used to authorize
// collection runs. The pool is a fixed ring: rotation walks it round-robin and
// quota exhaustion never shrinks it, since an exhausted token becomes usable
// again after its reset. Only revocation (an authentication failure) removes a
// token from consideration, and even then the ring order of the remaining
// tokens is preserved.
package credentials

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoCredentials indicates the pool was constructed without any usable token.
var ErrNoCredentials = errors.New("credentials: at least one credential is required")

// Credential is an opaque authentication token. Its identity is the token
// string itself; it is immutable once loaded.
type Credential string

// Mask returns a short identifier safe for logs and metric labels. The token
// itself must never be logged.
func (c Credential) Mask() string {
	if len(c) <= 4 {
		return "****"
	}
	return "..." + string(c[len(c)-4:])
}

// Pool holds an ordered, fixed set of credentials and the currently active
// position. It is safe for concurrent use, though a pool is normally owned by
// a single collection run.
type Pool struct {
	mu      sync.Mutex
	creds   []Credential
	active  int
	revoked map[Credential]bool
}

// NewPool builds a pool from raw token strings, trimming whitespace and
// dropping blank entries. It fails with ErrNoCredentials when no usable token
// remains.
func NewPool(tokens []string) (*Pool, error) {
	creds := make([]Credential, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		creds = append(creds, Credential(token))
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	return &Pool{
		creds:   creds,
		revoked: make(map[Credential]bool),
	}, nil
}

// Current returns the active credential.
func (p *Pool) Current() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds[p.active]
}

// Rotate advances to the next non-revoked credential in ring order, wrapping
// to the first after the last, and returns it. When every credential is
// revoked the position still advances one step so rotation stays cheap and
// deterministic.
func (p *Pool) Rotate() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < len(p.creds); i++ {
		p.active = (p.active + 1) % len(p.creds)
		if !p.revoked[p.creds[p.active]] {
			break
		}
	}
	return p.creds[p.active]
}

// Revoke permanently removes a credential from rotation consideration for the
// rest of the run. The ring itself keeps its shape; revoked entries are
// skipped by Rotate and reported unusable by HasUntried.
func (p *Pool) Revoke(c Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked[c] = true
}

// Revoked reports whether the credential has been revoked this run.
func (p *Pool) Revoked(c Credential) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revoked[c]
}

// HasUntried reports whether any non-revoked credential outside the excluded
// set remains. The engine passes the set of currently quota-exhausted
// credentials to decide between rotating and pausing.
func (p *Pool) HasUntried(excluded map[Credential]bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.creds {
		if p.revoked[c] || excluded[c] {
			continue
		}
		return true
	}
	return false
}

// Credentials returns the ring in order, including revoked entries.
func (p *Pool) Credentials() []Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Credential, len(p.creds))
	copy(out, p.creds)
	return out
}

// Position returns the ring index of the credential, for stable log and
// metric labels that must not contain the token itself.
func (p *Pool) Position(c Credential) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cand := range p.creds {
		if cand == c {
			return i, true
		}
	}
	return 0, false
}

// Size returns the number of credentials in the ring, including revoked ones.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}
