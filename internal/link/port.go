// Package link carries host-link messages over the MacroPad's USB serial data port,
// on the device side and in the host companion.
package link

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"macropad/internal/profile"
)

// Port is an open serial connection. A read that times out returns 0, nil.
type Port interface {
	io.ReadWriteCloser
}

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name         string `json:"name"`
	Product      string `json:"product"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// ListPorts returns all serial ports with their USB descriptions
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			Product:      d.Product,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
		})
	}
	return ports, nil
}

// DetectPort finds the MacroPad data port by its USB product description
func DetectPort(prefix string) (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	return matchPort(ports, prefix)
}

// matchPort picks the data port among the ports whose product starts with prefix.
// The board exposes a console port and a data port; the data port enumerates last.
func matchPort(ports []PortInfo, prefix string) (string, error) {
	var names []string
	for _, p := range ports {
		if p.IsUSB && strings.HasPrefix(p.Product, prefix) {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no USB product starting with %q", ErrPortNotFound, prefix)
	}
	sort.Strings(names)
	return names[len(names)-1], nil
}

// OpenPort opens a serial port. A positive readTimeout makes reads return 0, nil
// when no data arrives in time.
func OpenPort(name string, baud int, readTimeout time.Duration) (Port, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
		}
	}
	return port, nil
}

// HostPlatform returns the platform tag of the running host
func HostPlatform() profile.Platform {
	switch runtime.GOOS {
	case "darwin":
		return profile.Mac
	case "windows":
		return profile.Windows
	default:
		return profile.Linux
	}
}
