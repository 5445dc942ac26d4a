package watermark

import "errors"

var (
	// ErrInvalidInput is returned before any processing for empty planes,
	// empty or over-long payloads and out-of-range parameters.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientRegions is recorded as a warning when fewer
	// non-overlapping regions were found than requested. It is never
	// returned as an error.
	ErrInsufficientRegions = errors.New("insufficient regions")
)
