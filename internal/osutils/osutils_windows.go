//go:build windows

package osutils

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetLastInputInfo = user32.NewProc("GetLastInputInfo")
)

type lastInputInfo struct {
	CbSize uint32
	DwTime uint32
}

// ActiveApp returns the executable name of the foreground window's process
// without its ".exe" suffix.
func ActiveApp() (string, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return "", ErrNoActiveApp
	}
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return "", fmt.Errorf("failed to get window process: %w", err)
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", fmt.Errorf("failed to open process %d: %w", pid, err)
	}
	name, err := p.Name()
	if err != nil {
		return "", fmt.Errorf("failed to read name of process %d: %w", pid, err)
	}
	return ProcessDisplayName(name), nil
}

// IdleDuration returns the time since the last input event
func IdleDuration() (time.Duration, error) {
	info := lastInputInfo{CbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}
	r, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if r == 0 {
		return 0, fmt.Errorf("GetLastInputInfo failed: %w", err)
	}
	// Both counters wrap at 2^32 ms.
	elapsed := uint32(windows.DurationSinceBoot().Milliseconds()) - info.DwTime
	return time.Duration(elapsed) * time.Millisecond, nil
}
