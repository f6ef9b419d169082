package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Settings holds user preferences that persist across runs.
type Settings struct {
	CrashReporting bool   `json:"crashReporting"`     // Whether to send crash reports to Sentry
	LogLevel       string `json:"logLevel,omitempty"` // Minimum level written to the log file
}

var (
	current      *Settings
	mu           sync.RWMutex
	pathOverride string
)

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{
		CrashReporting: false, // Opt-in, disabled by default
		LogLevel:       "info",
	}
}

// SetPath makes Load and Save use path instead of the per-user config file.
// An empty path restores the default location.
func SetPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	pathOverride = path
	current = nil
}

// getSettingsPath returns the path to the settings file. Callers hold mu.
func getSettingsPath() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "card-uid", "settings.json"), nil
}

// Load reads settings from disk, or returns defaults if the file doesn't exist.
// On any other error the defaults are installed and the error is returned.
func Load() (*Settings, error) {
	mu.Lock()
	defer mu.Unlock()

	current = DefaultSettings()

	path, err := getSettingsPath()
	if err != nil {
		return current, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return current, nil
	}
	if err != nil {
		return current, err
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, s); err != nil {
		return current, err
	}

	current = s
	return current, nil
}

// Save writes the current settings to disk.
func Save() error {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		current = DefaultSettings()
	}

	path, err := getSettingsPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Get returns the current settings (loads from disk if not yet loaded).
func Get() *Settings {
	mu.RLock()
	if current != nil {
		defer mu.RUnlock()
		return current
	}
	mu.RUnlock()

	s, _ := Load()
	return s
}

// SetCrashReporting updates the crash reporting preference and saves.
func SetCrashReporting(enabled bool) error {
	mu.Lock()
	if current == nil {
		current = DefaultSettings()
	}
	current.CrashReporting = enabled
	mu.Unlock()

	return Save()
}

// IsCrashReportingEnabled returns whether crash reporting is enabled.
func IsCrashReportingEnabled() bool {
	return Get().CrashReporting
}
