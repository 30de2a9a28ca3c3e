package executor

import "errors"

var (
	// ErrEmptyCommand is returned when Run is called without a command.
	ErrEmptyCommand = errors.New("empty command")
)

// TimeoutMarker is appended to the transcript of a command killed on timeout.
const TimeoutMarker = "Command timed out."
