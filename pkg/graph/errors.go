package graph

import "errors"

var (
	// ErrPrecondition is returned when a caller breaks an operation's
	// contract: unknown or malformed vertex labels, accumulation after
	// normalization, or invalid build parameters.
	ErrPrecondition = errors.New("precondition violation")

	// ErrDegenerateGraph is returned when normalization has nothing to
	// normalize against (no observations, or a zero average score).
	ErrDegenerateGraph = errors.New("degenerate graph")

	// ErrInputShape is returned when a recommendation lacks a usable score
	// in weighted mode.
	ErrInputShape = errors.New("invalid input shape")
)
