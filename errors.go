package main

import "errors"

// Error taxonomy. Everything a transfer or an admin operation can fail
// with wraps one of these, so callers match with errors.Is.
var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSourceTooLarge    = errors.New("source too large")
	ErrDestinationError  = errors.New("destination error")
	ErrTransientNetwork  = errors.New("transient network error")
)

// isTransient reports whether a stage failure is worth retrying.
// Permanent failures (bad link, 4xx, size limit) surface immediately.
func isTransient(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}
