package main

import (
	"context"
	"fmt"
	"log"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/barisozyurt/streetflix/internal/config"
	"github.com/barisozyurt/streetflix/internal/geomath"
	"github.com/barisozyurt/streetflix/internal/playback"
	"github.com/barisozyurt/streetflix/internal/precache"
	"github.com/barisozyurt/streetflix/internal/ratelimit"
	"github.com/barisozyurt/streetflix/internal/route"
	"github.com/barisozyurt/streetflix/internal/transition"
	"github.com/barisozyurt/streetflix/internal/viewer"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// App struct
type App struct {
	ctx      context.Context
	settings *config.UserSettings
	mu       sync.Mutex
	devMode  bool // Enable verbose logging in dev mode only
	phClient posthog.Client

	routeMgr *route.Manager
	limiter  *ratelimit.Handler

	// Built at startup once the Wails context exists
	bridge       *viewer.Bridge
	preCache     *precache.Manager
	engine       *transition.Engine
	orchestrator *playback.Orchestrator
}

// NewApp creates a new App application struct
func NewApp() *App {
	// Load user settings
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		client, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	return &App{
		settings: settings,
		phClient: phClient,
		routeMgr: route.NewManager(),
		limiter:  ratelimit.NewHandler(nil),
	}
}

// startup is called when the app starts. The viewer bridge and everything
// downstream of it need the Wails context, so the pipeline is assembled here
// rather than in NewApp.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	a.bridge = viewer.NewBridge(ctx)

	cacheCfg := precache.DefaultConfig()
	cacheCfg.MaxEntries = a.settings.CacheMaxEntries
	cacheCfg.Lookahead = a.settings.Lookahead
	a.preCache = precache.NewManager(cacheCfg, a.bridge, a.limiter)

	a.engine = transition.NewEngine(a.transitionConfig(), a.bridge, a.bridge)

	a.orchestrator = playback.NewOrchestrator(a.routeMgr, a.preCache, a.engine, nil)
	a.orchestrator.SetAutoHeading(a.settings.AutoHeading)
	if !a.orchestrator.SetSpeed(a.settings.Speed) {
		log.Printf("Unknown saved speed %q, keeping default", a.settings.Speed)
	}

	// Forward pipeline events to the frontend
	a.orchestrator.SetCallbacks(
		func(status playback.Status) {
			wailsRuntime.EventsEmit(ctx, "playback-state", status)
		},
		func(status playback.Status) {
			wailsRuntime.EventsEmit(ctx, "playback-progress", status)
		},
		func() {
			wailsRuntime.EventsEmit(ctx, "playback-complete", a.routeMgr.Summary())
			a.TrackEvent("playback_completed", map[string]interface{}{
				"waypoints": a.routeMgr.Len(),
			})
		},
	)
	a.limiter.SetOnBackoff(func(event ratelimit.Event) {
		wailsRuntime.EventsEmit(ctx, "prefetch-backoff", event)
	})
	a.limiter.SetOnRecovered(func(provider string) {
		wailsRuntime.EventsEmit(ctx, "prefetch-recovered", provider)
	})

	wailsRuntime.LogInfo(ctx, "Playback pipeline initialized")

	// Track app start
	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// transitionConfig derives the engine configuration from user settings
func (a *App) transitionConfig() transition.Config {
	cfg := transition.DefaultConfig()
	cfg.Enabled = a.settings.TransitionsEnabled
	cfg.OverlayDuration = time.Duration(a.settings.TransitionDurationMs) * time.Millisecond
	return cfg
}

// ready reports whether the pipeline has been assembled
func (a *App) ready() bool {
	return a.orchestrator != nil
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: a.settings.InstallID,
			Event:      event,
			Properties: props,
		})
	}
}

// Shutdown cleans up resources
func (a *App) Shutdown(ctx context.Context) {
	if a.orchestrator != nil {
		a.orchestrator.Stop()
	}
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// ===================
// Route Management
// ===================

// SetRoute replaces the current route with an explicit waypoint sequence
func (a *App) SetRoute(points []geomath.Point) (route.Summary, error) {
	a.routeMgr.SetRoute(points)
	if a.preCache != nil {
		a.preCache.Clear()
	}

	summary := a.routeMgr.Summary()
	a.emitRouteChanged(summary)
	a.TrackEvent("route_set", map[string]interface{}{
		"waypoints": summary.WaypointCount,
		"meters":    summary.TotalDistanceMeters,
	})

	if !a.routeMgr.Playable() {
		return summary, fmt.Errorf("route needs at least 2 waypoints")
	}
	return summary, nil
}

// SetRouteFromPolyline decodes an encoded polyline and sets it as the route
func (a *App) SetRouteFromPolyline(encoded string) (route.Summary, error) {
	points := geomath.DecodePolyline(encoded)
	if len(points) == 0 {
		return a.routeMgr.Summary(), fmt.Errorf("polyline decoded to no points")
	}
	return a.SetRoute(points)
}

// BuildFromEndpoints synthesizes a straight densified route between two points
func (a *App) BuildFromEndpoints(start, end geomath.Point) (route.Summary, error) {
	a.routeMgr.BuildFromEndpoints(start, end)
	if a.preCache != nil {
		a.preCache.Clear()
	}

	summary := a.routeMgr.Summary()
	a.emitRouteChanged(summary)
	return summary, nil
}

// ClearRoute drops the current route entirely
func (a *App) ClearRoute() {
	if a.ready() {
		a.orchestrator.Stop()
	}
	a.routeMgr.Clear()
	if a.preCache != nil {
		a.preCache.Clear()
	}
	a.emitRouteChanged(a.routeMgr.Summary())
}

func (a *App) emitRouteChanged(summary route.Summary) {
	if a.ctx != nil {
		wailsRuntime.EventsEmit(a.ctx, "route-changed", summary)
	}
}

// ===================
// Playback Controls
// ===================

// GetStatus returns the playback status snapshot for the control surface
func (a *App) GetStatus() playback.Status {
	if !a.ready() {
		return playback.Status{
			HasRoute:     a.routeMgr.Playable(),
			Speed:        a.settings.Speed,
			RouteSummary: a.routeMgr.Summary(),
		}
	}
	return a.orchestrator.Status()
}

// Play starts or resumes playback
func (a *App) Play() {
	if !a.ready() {
		return
	}
	a.orchestrator.Play()
	a.TrackEvent("playback_started", map[string]interface{}{
		"speed":     a.orchestrator.Speed(),
		"waypoints": a.routeMgr.Len(),
	})
}

// Pause suspends playback
func (a *App) Pause() {
	if !a.ready() {
		return
	}
	a.orchestrator.Pause()
}

// Stop halts playback and rewinds to the start of the route
func (a *App) Stop() {
	if !a.ready() {
		return
	}
	a.orchestrator.Stop()
}

// Skip moves the playback position by n waypoints (negative for backward)
func (a *App) Skip(n int) {
	if !a.ready() {
		return
	}
	a.orchestrator.Skip(n)
}

// JumpToPercent moves the playback position to a percentage of the route
func (a *App) JumpToPercent(p float64) {
	a.routeMgr.JumpToPercent(p)
	if a.ready() {
		a.orchestrator.Skip(0) // Re-aim the viewer at the new cursor
	}
}

// SetSpeed selects a speed profile by name and persists the choice
func (a *App) SetSpeed(name string) error {
	if !a.ready() {
		return fmt.Errorf("playback pipeline not ready")
	}
	if !a.orchestrator.SetSpeed(name) {
		return fmt.Errorf("unknown speed profile: %s", name)
	}
	a.persistSpeed(name)
	return nil
}

// SpeedUp steps to the next faster profile; returns the active profile name
func (a *App) SpeedUp() string {
	if !a.ready() {
		return a.settings.Speed
	}
	name := a.orchestrator.SpeedUp()
	a.persistSpeed(name)
	return name
}

// SlowDown steps to the next slower profile; returns the active profile name
func (a *App) SlowDown() string {
	if !a.ready() {
		return a.settings.Speed
	}
	name := a.orchestrator.SlowDown()
	a.persistSpeed(name)
	return name
}

func (a *App) persistSpeed(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.settings.Speed == name {
		return
	}
	a.settings.Speed = name
	if err := config.SaveSettings(a.settings); err != nil {
		log.Printf("Failed to persist speed setting: %v", err)
	}
}

// ===================
// Cache
// ===================

// GetCacheStats returns the pre-cache working set sizes
func (a *App) GetCacheStats() precache.Stats {
	if a.preCache == nil {
		return precache.Stats{}
	}
	return a.preCache.Stats()
}

// ClearCache empties the pre-cache
func (a *App) ClearCache() {
	if a.preCache != nil {
		a.preCache.Clear()
	}
}
