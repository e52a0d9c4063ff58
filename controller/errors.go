package controller

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a motion sequence is already in flight. The
	// serial line is exclusive, and queued gestures on a physical robot go
	// stale quickly, so new requests are rejected rather than queued.
	ErrBusy = errors.New("motion sequence already in flight")

	// ErrAckTimeout is returned when the executor does not acknowledge a
	// command within the configured timeout.
	ErrAckTimeout = errors.New("timed out waiting for ack")

	// ErrLinkClosed is returned when the serial channel is closed or
	// unwritable.
	ErrLinkClosed = errors.New("serial link closed")
)

// ParseError reports a malformed ack line. The channel state is suspect
// after one, so callers treat it like a timeout and abort the sequence.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed ack %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StepError reports a partially completed sequence: which gesture failed,
// at which step, and why. Steps after Index were never issued.
type StepError struct {
	Gesture string
	Index   int
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("gesture %q failed at step %d: %v", e.Gesture, e.Index, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
