package pagination

// State identifies a phase of the collection state machine.
type State string

const (
	// StateFetching executes one search call with the active credential.
	StateFetching State = "fetching"

	// StateAdvancing folds a fetched page into the collected set and moves
	// the cursor forward.
	StateAdvancing State = "advancing"

	// StateRotating switches the active credential to the next usable one.
	StateRotating State = "rotating"

	// StatePaused waits for the soonest known quota reset.
	StatePaused State = "paused"

	// StateDone is terminal: the target was reached or the result set ended.
	StateDone State = "done"

	// StateFailed is terminal: the run stopped with partial results.
	StateFailed State = "failed"
)

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
