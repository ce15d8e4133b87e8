package main

import "errors"

var (
	// ErrMalformedMeasure marks measure data that had to be repaired or could
	// not be interpreted at all.
	ErrMalformedMeasure = errors.New("malformed measure data")

	// ErrUnboundedExpansion is returned when repeat expansion or the resulting
	// timeline would exceed the configured safety limits.
	ErrUnboundedExpansion = errors.New("unbounded repeat expansion")

	// ErrEmptyTimeline is returned when there are no measures to play.
	ErrEmptyTimeline = errors.New("empty timeline")

	ErrUnsupportedFormat = errors.New("unsupported tab format")
	ErrTabNotFound       = errors.New("tab not found")
)
