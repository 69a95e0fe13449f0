package fishing

import "errors"

// Error taxonomy shared across the ingestion pipeline. Callers classify with
// errors.Is; wrapping keeps the upstream detail attached.
var (
	// ErrUpstreamUnavailable means a provider fetch failed. The affected
	// location is skipped; the sweep continues.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedInput means a required field was absent from a single
	// record and no default policy applies. Only that record is skipped.
	ErrMalformedInput = errors.New("malformed input")

	// ErrStorageConflict means a write collided on a natural key.
	ErrStorageConflict = errors.New("storage conflict")

	// ErrConfigurationMissing is a fatal precondition (for example a missing
	// provider key) detected before any fetch is attempted.
	ErrConfigurationMissing = errors.New("configuration missing")
)
