package main

import (
	"log"
	"time"

	"github.com/barisozyurt/streetflix/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk and applies them to the live
// pipeline: transition config, lookahead, auto-heading, and speed all take
// effect without a restart.
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if err := config.ValidateSettings(settings); err != nil {
		return err
	}

	a.mu.Lock()
	// Never let the frontend swap the install ID out from under telemetry
	settings.InstallID = a.settings.InstallID

	if err := config.SaveSettings(settings); err != nil {
		a.mu.Unlock()
		return err
	}
	a.settings = settings
	a.mu.Unlock()

	// Apply to the running pipeline
	if a.engine != nil {
		cfg := a.engine.Config()
		cfg.Enabled = settings.TransitionsEnabled
		cfg.OverlayDuration = time.Duration(settings.TransitionDurationMs) * time.Millisecond
		a.engine.UpdateConfig(cfg)
	}
	if a.preCache != nil {
		a.preCache.SetLookahead(settings.Lookahead)
	}
	if a.orchestrator != nil {
		a.orchestrator.SetAutoHeading(settings.AutoHeading)
		a.orchestrator.SetSpeed(settings.Speed)
	}

	log.Printf("Settings saved and applied")
	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// SetAutoHeading toggles camera follow of the route bearing and persists it
func (a *App) SetAutoHeading(enabled bool) error {
	a.mu.Lock()
	a.settings.AutoHeading = enabled
	err := config.SaveSettings(a.settings)
	a.mu.Unlock()

	if a.orchestrator != nil {
		a.orchestrator.SetAutoHeading(enabled)
	}
	return err
}

// SetTransitionsEnabled toggles jump masking and persists the choice
func (a *App) SetTransitionsEnabled(enabled bool) error {
	a.mu.Lock()
	a.settings.TransitionsEnabled = enabled
	err := config.SaveSettings(a.settings)
	a.mu.Unlock()

	if a.engine != nil {
		cfg := a.engine.Config()
		cfg.Enabled = enabled
		a.engine.UpdateConfig(cfg)
	}
	return err
}

// SetTransitionDuration updates the overlay fade-out duration and persists it
func (a *App) SetTransitionDuration(ms int) error {
	a.mu.Lock()
	a.settings.TransitionDurationMs = ms
	if err := config.ValidateSettings(a.settings); err != nil {
		a.mu.Unlock()
		return err
	}
	err := config.SaveSettings(a.settings)
	a.mu.Unlock()

	if a.engine != nil {
		cfg := a.engine.Config()
		cfg.OverlayDuration = time.Duration(ms) * time.Millisecond
		a.engine.UpdateConfig(cfg)
	}
	return err
}

// SetLookahead updates how many upcoming waypoints get pre-fetched
func (a *App) SetLookahead(n int) error {
	a.mu.Lock()
	a.settings.Lookahead = n
	if err := config.ValidateSettings(a.settings); err != nil {
		a.mu.Unlock()
		return err
	}
	err := config.SaveSettings(a.settings)
	a.mu.Unlock()

	if a.preCache != nil {
		a.preCache.SetLookahead(n)
	}
	return err
}
