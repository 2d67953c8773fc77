//go:build darwin

package osutils

import (
	"strings"
	"time"
)

const frontmostScript = `tell application "System Events" to get name of first application process whose frontmost is true`

// ActiveApp returns the name of the frontmost application
func ActiveApp() (string, error) {
	out, err := run("osascript", "-e", frontmostScript)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(out))
	if name == "" {
		return "", ErrNoActiveApp
	}
	return name, nil
}

// IdleDuration returns the time since the last HID input
func IdleDuration() (time.Duration, error) {
	out, err := run("ioreg", "-c", "IOHIDSystem", "-d", "4")
	if err != nil {
		return 0, err
	}
	return parseHIDIdleTime(out)
}
