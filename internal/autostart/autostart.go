// Package autostart installs the host companion as a login item.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

// Label identifies the login item on every platform
const Label = "com.macropad.companion"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>-companion</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const linuxDesktopEntry = `[Desktop Entry]
Type=Application
Name=MacroPad Companion
Comment=Reports the focused application to the MacroPad
Exec="{{.ExecutablePath}}" -companion
Terminal=false
X-GNOME-Autostart-enabled=true
`

type entry struct {
	Label          string
	ExecutablePath string
}

// Enable enables auto-start of the companion on login
func Enable() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		return enableWindows(execPath)
	default:
		path, tmpl, err := entryFile()
		if err != nil {
			return err
		}
		return writeEntry(path, tmpl, execPath)
	}
}

// Disable disables auto-start on login
func Disable() error {
	if runtime.GOOS == "windows" {
		return disableWindows()
	}
	path, _, err := entryFile()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	if runtime.GOOS == "windows" {
		return isEnabledWindows()
	}
	path, _, err := entryFile()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// entryFile returns the login item path and template for macOS and Linux
func entryFile() (string, string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		return filepath.Join(home, "Library", "LaunchAgents", Label+".plist"), macLaunchAgentPlist, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", "", err
			}
			configDir = filepath.Join(home, ".config")
		}
		return filepath.Join(configDir, "autostart", Label+".desktop"), linuxDesktopEntry, nil
	default:
		return "", "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func writeEntry(path, text, execPath string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpl, err := template.New("entry").Parse(text)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, entry{Label: Label, ExecutablePath: execPath})
}
