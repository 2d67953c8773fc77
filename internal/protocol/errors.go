package protocol

import "errors"

var (
	// ErrIncomplete means the buffer does not yet hold a complete JSON document
	ErrIncomplete = errors.New("incomplete message")

	// ErrMalformed means the buffer holds complete JSON that is not a valid message
	ErrMalformed = errors.New("malformed message")
)
