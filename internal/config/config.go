// Package config provides configuration management for the MacroPad runtime and
// its host companion.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Key output backends
const (
	OutputUinput = "uinput"
	OutputLog    = "log"
)

// Duration is a time.Duration stored as a Go duration string ("60s", "300ms").
type Duration time.Duration

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration
type Config struct {
	// Device configures the pad runtime
	Device DeviceConfig `json:"device"`

	// Companion configures the host companion
	Companion CompanionConfig `json:"companion"`

	// API configures the optional status server
	API APIConfig `json:"api"`
}

// DeviceConfig contains settings of the pad runtime
type DeviceConfig struct {
	// MacroFolder holds the profile files (empty = "macros" next to the config file)
	MacroFolder string `json:"macro_folder"`

	// DefaultApp is the fallback profile key (e.g. "mac-Default")
	DefaultApp string `json:"default_app"`

	// SwitchTimeout returns Switch mode to Hotkey after inactivity
	SwitchTimeout Duration `json:"switch_timeout"`

	// PollInterval is the input polling period
	PollInterval Duration `json:"poll_interval"`

	// IdleColorInterval is the rainbow animation period
	IdleColorInterval Duration `json:"idle_color_interval"`

	// UpdateInterval is the update request period
	UpdateInterval Duration `json:"update_interval"`

	// SerialPort is the data port to the host (empty = no host link)
	SerialPort string `json:"serial_port,omitempty"`

	// BaudRate of the serial port
	BaudRate int `json:"baud_rate"`

	// KeyOutput selects the key output backend ("uinput" or "log")
	KeyOutput string `json:"key_output"`
}

// CompanionConfig contains settings of the host companion
type CompanionConfig struct {
	// SerialPort is the pad's data port (empty = auto-detect)
	SerialPort string `json:"serial_port,omitempty"`

	// PortPrefix is matched against the USB product description when auto-detecting
	PortPrefix string `json:"port_prefix"`

	// BaudRate of the serial port
	BaudRate int `json:"baud_rate"`

	// PollInterval is the active application polling period
	PollInterval Duration `json:"poll_interval"`

	// ReconnectInterval is the wait between connection attempts
	ReconnectInterval Duration `json:"reconnect_interval"`

	// IdleAfter sends "sleep" after this much host inactivity (0 = never)
	IdleAfter Duration `json:"idle_after"`

	// StartOnBoot installs the companion as a login item
	StartOnBoot bool `json:"start_on_boot"`

	// Tray shows the companion tray icon
	Tray bool `json:"tray"`
}

// APIConfig contains settings of the status API
type APIConfig struct {
	// Enabled starts the HTTP server
	Enabled bool `json:"enabled"`

	// Port is the listen port (default: 18090)
	Port int `json:"port"`

	// Token is an optional bearer token for API requests
	Token string `json:"token,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			DefaultApp:        "mac-Default",
			SwitchTimeout:     Duration(60 * time.Second),
			PollInterval:      Duration(5 * time.Millisecond),
			IdleColorInterval: Duration(50 * time.Millisecond),
			UpdateInterval:    Duration(200 * time.Millisecond),
			BaudRate:          9600,
			KeyOutput:         OutputUinput,
		},
		Companion: CompanionConfig{
			PortPrefix:        "Macropad",
			BaudRate:          9600,
			PollInterval:      Duration(300 * time.Millisecond),
			ReconnectInterval: Duration(2 * time.Second),
			Tray:              true,
		},
		API: APIConfig{
			Port: 18090,
		},
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager for the per-user config file
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerWithPath(configPath), nil
}

// NewManagerWithPath creates a configuration manager for an explicit file
func NewManagerWithPath(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "macropad")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "macropad")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "macropad")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// MacroFolder returns the profile directory, defaulting to "macros" beside the
// config file.
func (m *Manager) MacroFolder() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config.Device.MacroFolder != "" {
		return m.config.Device.MacroFolder
	}
	return filepath.Join(filepath.Dir(m.configPath), "macros")
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	m.mu.Lock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		// No config file, use defaults
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to parse %s: %w", m.configPath, err)
	}
	m.config = cfg
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}
	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	onChanged := m.onChanged
	m.mu.Unlock()
	if onChanged != nil {
		onChanged()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
