//go:build !linux && !darwin && !windows

package osutils

import "time"

// ActiveApp is a stub for unsupported platforms
func ActiveApp() (string, error) {
	return "", ErrUnsupported
}

// IdleDuration is a stub for unsupported platforms
func IdleDuration() (time.Duration, error) {
	return 0, ErrUnsupported
}
