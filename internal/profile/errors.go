package profile

import "errors"

var (
	// ErrMalformed is returned when a profile file does not describe a valid profile
	ErrMalformed = errors.New("malformed profile")

	// ErrUnknownPlatform is returned for platform names other than mac, windows and linux
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrUnsupportedFormat is returned for profile files that are neither YAML nor TOML
	ErrUnsupportedFormat = errors.New("unsupported profile format")
)
