package domain

import "errors"

var (
	// ErrInsufficientData is returned when an input series is too short for
	// the requested computation.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrMismatchedLengths is returned when parallel arrays differ in length.
	ErrMismatchedLengths = errors.New("mismatched input lengths")

	// ErrInvalidParameter is returned for out-of-domain parameters or
	// non-finite input values.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnsortedSeries is returned when a dated series is not strictly ascending.
	ErrUnsortedSeries = errors.New("series not in chronological order")

	// ErrUnknownKind is returned for request kinds the engine does not handle.
	ErrUnknownKind = errors.New("unknown request kind")

	// ErrCurveNotFound is returned when no rating curve matches a lookup.
	ErrCurveNotFound = errors.New("rating curve not found")
)
