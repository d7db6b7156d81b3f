package strata

import "errors"

// Common errors
var (
	// ErrNoBackend is returned when no rendering backend could be
	// initialized.
	ErrNoBackend = errors.New("strata: no rendering backend available")

	// ErrClosed is returned when operating on a closed state.
	ErrClosed = errors.New("strata: state closed")
)
