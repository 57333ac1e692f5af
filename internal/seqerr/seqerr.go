// Package seqerr defines the error taxonomy shared by every sequencer
// package: control mutators and pattern generators return these so
// callers (the control-plane adapter, tests) can branch with errors.Is
// instead of string matching.
package seqerr

import "errors"

var (
	// ErrInvalidArgument marks a bad control argument or an out-of-range
	// parameter caught during validation, before any state is touched.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks a lookup miss on a base sequence or fx processor id.
	ErrNotFound = errors.New("not found")

	// ErrGenerationRefused marks a pattern generator declining to produce
	// events because its parameters are geometrically inconsistent
	// (Euclid pulses > steps, or loop_length not a multiple of steps).
	ErrGenerationRefused = errors.New("generation refused")

	// ErrIoTransient marks a recoverable I/O failure: a dropped datagram,
	// a full output-buffer write. The caller logs and continues.
	ErrIoTransient = errors.New("transient i/o failure")

	// ErrFatal marks a startup failure that should terminate the process
	// with a non-zero exit code.
	ErrFatal = errors.New("fatal")
)
