package pagination

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/github-stars-collector/pkg/github"
)

// Sentinel errors for engine construction and terminal failures.
var (
	// ErrInvalidConfig indicates a structurally invalid engine setup, such as
	// a missing dependency or a non-positive page size.
	ErrInvalidConfig = errors.New("pagination: invalid configuration")

	// ErrRetriesExhausted indicates a transient failure persisted past the
	// configured retry bound.
	ErrRetriesExhausted = errors.New("pagination: transient retries exhausted")

	// ErrNoUsableCredential indicates every credential is revoked or has no
	// known quota reset, so waiting cannot help.
	ErrNoUsableCredential = errors.New("pagination: no usable credential and no known quota reset")
)

// RunError is the terminal error of a failed run. It carries the records
// collected before the failure; for this offline analysis workload a partial
// result is more useful than none.
type RunError struct {
	Cause     error
	Collected []github.Repository
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pagination run failed after %d records: %v", len(e.Collected), e.Cause)
}

func (e *RunError) Unwrap() error {
	return e.Cause
}
