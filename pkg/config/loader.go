package config

// Loader yields the collector configuration. Implementations may reload it
// behind the caller's back, so Load returns a fresh snapshot each call.
type Loader interface {
	Load() (*Config, error)
}
