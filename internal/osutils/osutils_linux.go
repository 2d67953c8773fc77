//go:build linux

package osutils

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ActiveApp returns the process name owning the focused X11 window.
// It needs xdotool.
func ActiveApp() (string, error) {
	out, err := run("xdotool", "getactivewindow", "getwindowpid")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoActiveApp, err)
	}
	pid, err := parsePID(out)
	if err != nil {
		return "", err
	}
	p, err := process.NewProcess(pid)
	if err != nil {
		return "", fmt.Errorf("failed to open process %d: %w", pid, err)
	}
	name, err := p.Name()
	if err != nil {
		return "", fmt.Errorf("failed to read name of process %d: %w", pid, err)
	}
	return ProcessDisplayName(name), nil
}

// IdleDuration returns the time since the last keyboard or mouse input.
// It needs xprintidle.
func IdleDuration() (time.Duration, error) {
	out, err := run("xprintidle")
	if err != nil {
		return 0, err
	}
	return parseMilliseconds(out)
}
