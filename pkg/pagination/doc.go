// Package pagination walks the paginated repository search with a pool of
// rotating credentials.
//
// The search cursor is a strictly sequential dependency, so exactly one page
// is in flight at a time. The engine runs a small state machine: fetch a page
// with the active credential, fold it into the collected set, and keep using
// that credential until its quota runs low. Rate-limited or revoked
// credentials trigger rotation to the next usable one; when the whole pool is
// exhausted the engine suspends until the soonest known quota reset instead
// of failing. Cursors stay valid across credentials, so rotation never
// restarts the walk.
//
// Example usage:
//
//	pool, _ := credentials.NewPool(tokens)
//	engine, _ := pagination.New(pool, quota.NewTracker(), client, pagination.DefaultConfig())
//	result, err := engine.Run(ctx)
//
// A failed run still returns the records collected before the failure; the
// error is a *RunError carrying the cause.
package pagination
