package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Playback settings
	Speed       string `json:"speed"`       // Last-used speed profile name
	AutoHeading bool   `json:"autoHeading"` // Camera follows the route bearing

	// Transition settings
	TransitionsEnabled   bool `json:"transitionsEnabled"`
	TransitionDurationMs int  `json:"transitionDurationMs"`

	// Pre-cache settings
	Lookahead       int `json:"lookahead"`
	CacheMaxEntries int `json:"cacheMaxEntries"`

	// Telemetry
	InstallID string `json:"installId"` // Stable anonymous ID for this install
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	return &UserSettings{
		Speed:                "cycling",
		AutoHeading:          true,
		TransitionsEnabled:   true,
		TransitionDurationMs: 300,
		Lookahead:            5,
		CacheMaxEntries:      50,
		InstallID:            uuid.NewString(),
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	// Unified directory structure: ~/.walkthru-earth/streetflix/settings/
	baseDir := filepath.Join(homeDir, ".walkthru-earth", "streetflix", "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from disk
func LoadSettings() (*UserSettings, error) {
	settingsPath := GetSettingsPath()

	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any missing fields
	defaults := DefaultSettings()
	if settings.Speed == "" {
		settings.Speed = defaults.Speed
	}
	if settings.TransitionDurationMs == 0 {
		settings.TransitionDurationMs = defaults.TransitionDurationMs
	}
	if settings.Lookahead == 0 {
		settings.Lookahead = defaults.Lookahead
	}
	if settings.CacheMaxEntries == 0 {
		settings.CacheMaxEntries = defaults.CacheMaxEntries
	}
	if settings.InstallID == "" {
		settings.InstallID = defaults.InstallID
		// Persist the freshly minted install ID so it stays stable
		SaveSettings(&settings)
	}

	return &settings, nil
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	settingsPath := GetSettingsPath()

	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// ValidateSettings checks the user-editable fields for sane values
func ValidateSettings(settings *UserSettings) error {
	if settings.TransitionDurationMs < 0 || settings.TransitionDurationMs > 5000 {
		return fmt.Errorf("transition duration must be between 0 and 5000 ms")
	}
	if settings.Lookahead < 1 || settings.Lookahead > 20 {
		return fmt.Errorf("lookahead must be between 1 and 20")
	}
	if settings.CacheMaxEntries <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	return nil
}
