package input

import "errors"

var (
	// ErrUnsupportedPlatform is returned where no key injector exists for the OS
	ErrUnsupportedPlatform = errors.New("key injection not supported on this platform")

	// ErrUnmappedKey is returned for keys or characters the injector cannot produce
	ErrUnmappedKey = errors.New("unmapped key")
)
