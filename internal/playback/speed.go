package playback

import "time"

// SpeedProfile maps a named playback cadence to its tick interval
type SpeedProfile struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
}

// DefaultProfiles returns the built-in cadence ladder, slowest first. These
// are tuning values, not algorithmic constants; callers may supply their own
// ladder to NewOrchestrator.
func DefaultProfiles() []SpeedProfile {
	return []SpeedProfile{
		{Name: "walking", Interval: 2500 * time.Millisecond},
		{Name: "cycling", Interval: 1200 * time.Millisecond},
		{Name: "driving", Interval: 600 * time.Millisecond},
		{Name: "flying", Interval: 250 * time.Millisecond},
	}
}
