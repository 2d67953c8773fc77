package osutils

import "errors"

var (
	// ErrUnsupported is returned on platforms without an implementation
	ErrUnsupported = errors.New("not supported on this platform")

	// ErrNoActiveApp is returned when no application has focus
	ErrNoActiveApp = errors.New("no active application")
)
