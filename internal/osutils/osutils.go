// Package osutils reports the host's focused application and input idle time
// for the companion.
package osutils

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const commandTimeout = 2 * time.Second

// ProcessDisplayName normalises an executable name into the name used for
// profile lookup ("C:\\...\\slack.exe" -> "slack", "Google Chrome" unchanged).
func ProcessDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".exe") {
		name = name[:len(name)-len(ext)]
	}
	return name
}

var hidIdleTime = regexp.MustCompile(`"HIDIdleTime"\s*=\s*(\d+)`)

// parseHIDIdleTime reads the idle time in nanoseconds from `ioreg -c IOHIDSystem`.
func parseHIDIdleTime(out []byte) (time.Duration, error) {
	m := hidIdleTime.FindSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("HIDIdleTime not found in ioreg output")
	}
	ns, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid HIDIdleTime: %w", err)
	}
	return time.Duration(ns), nil
}

// parseMilliseconds reads a single integer millisecond count (xprintidle).
func parseMilliseconds(out []byte) (time.Duration, error) {
	ms, err := strconv.ParseInt(string(bytes.TrimSpace(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid idle time %q: %w", bytes.TrimSpace(out), err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// parsePID reads a single process id (xdotool getwindowpid).
func parsePID(out []byte) (int32, error) {
	pid, err := strconv.ParseInt(string(bytes.TrimSpace(out)), 10, 32)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", bytes.TrimSpace(out))
	}
	return int32(pid), nil
}

func run(name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}
