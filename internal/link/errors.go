package link

import "errors"

var (
	// ErrPortNotFound is returned when no serial port matches the MacroPad description
	ErrPortNotFound = errors.New("macropad serial port not found")

	// ErrNotConnected is returned when writing without an open port
	ErrNotConnected = errors.New("not connected")
)
