package strata

import "time"

// Config configures the compositor core.
type Config struct {
	// Backend selects the rendering backend by registry name; empty
	// picks the best available.
	Backend string

	// Workers is the CPU worker pool size.
	Workers int

	// TransactionTimeout bounds how long a closed transaction waits
	// for its barriers.
	TransactionTimeout time.Duration

	// ConfigureTimeout bounds how long a participant may sit on an
	// unacknowledged configure.
	ConfigureTimeout time.Duration

	// CursorSize is the nominal cursor size in layout pixels.
	CursorSize int
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Workers:            1,
		TransactionTimeout: 3 * time.Second,
		ConfigureTimeout:   3 * time.Second,
		CursorSize:         24,
	}
}

// WithBackend returns a copy with the backend name set.
func (c Config) WithBackend(name string) Config {
	c.Backend = name
	return c
}

// WithWorkers returns a copy with the worker count set.
func (c Config) WithWorkers(n int) Config {
	c.Workers = n
	return c
}

// WithTransactionTimeout returns a copy with the timeout set.
func (c Config) WithTransactionTimeout(d time.Duration) Config {
	c.TransactionTimeout = d
	return c
}
