package transition

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/barisozyurt/streetflix/internal/geomath"
	"github.com/barisozyurt/streetflix/internal/viewer"
)

const (
	// How long the overlay must be visible before the jump, so the reveal
	// never exposes a half-loaded panorama
	settleDelay = 50 * time.Millisecond

	// Extra wait after load confirmation for the viewer to finish rendering
	renderDelay = 100 * time.Millisecond

	// Bound on waiting for the viewer's load confirmation. Hitting it is not
	// a failure; the move usually happened even when the ack is lost.
	loadTimeout = 2000 * time.Millisecond
)

// Config holds the hot-swappable transition settings
type Config struct {
	Enabled         bool          `json:"enabled"`
	OverlayDuration time.Duration `json:"overlayDuration"`
	Easing          string        `json:"easing"` // Opaque identifier handed to the overlay layer
	FallbackOpacity float64       `json:"fallbackOpacity"`
}

// DefaultConfig returns the default transition settings
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		OverlayDuration: 300 * time.Millisecond,
		Easing:          "ease-out",
		FallbackOpacity: 0.85,
	}
}

// Engine masks discrete viewpoint jumps behind a captured-frame or fade
// overlay. Strictly single-flight: a TransitionTo issued while another is in
// progress is rejected, never queued.
type Engine struct {
	mu   sync.Mutex // Guards busy and cfg
	busy bool
	cfg  Config

	animMu sync.Mutex // Serializes heading animations, independent of busy

	viewer  viewer.Service
	overlay viewer.Overlay
}

// NewEngine creates a transition engine over the given viewer and overlay
func NewEngine(cfg Config, svc viewer.Service, overlay viewer.Overlay) *Engine {
	return &Engine{cfg: cfg, viewer: svc, overlay: overlay}
}

// IsBusy reports whether a transition is in progress
func (e *Engine) IsBusy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Config returns the current transition settings
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// UpdateConfig swaps the transition settings. If an overlay is currently
// shown, its fade-out duration is retuned in place.
func (e *Engine) UpdateConfig(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg
	busy := e.busy
	e.mu.Unlock()

	if busy {
		e.overlay.SetFadeDuration(cfg.OverlayDuration)
	}
}

// TransitionTo executes one hide-move-reveal sequence to the target point,
// optionally setting a heading after the move. Returns false if another
// transition is in progress or any step of the move fails; the busy flag is
// released on every exit path.
func (e *Engine) TransitionTo(target geomath.Point, heading *float64) bool {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return false
	}
	cfg := e.cfg

	if !cfg.Enabled {
		// No masking requested: perform the move directly without taking
		// the single-flight lock
		e.mu.Unlock()
		return e.moveDirect(target, heading)
	}

	e.busy = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	// Cover the view before anything moves. A capture failure (tainted
	// canvas, no view source) downgrades to a plain fade, never aborts.
	if frame, ok := e.viewer.CaptureFrame(); ok {
		e.overlay.ShowFrame(frame)
	} else {
		e.overlay.ShowFade(cfg.FallbackOpacity)
	}
	time.Sleep(settleDelay)

	if err := e.viewer.SetPosition(target); err != nil {
		log.Printf("[Transition] Move failed: %v", err)
		e.overlay.Hide(0)
		return false
	}

	if heading != nil {
		pov := e.viewer.GetPointOfView()
		pov.Heading = *heading
		if err := e.viewer.SetPointOfView(pov); err != nil {
			log.Printf("[Transition] Heading set failed: %v", err)
			e.overlay.Hide(0)
			return false
		}
	}

	if !e.viewer.WaitForLoad(loadTimeout) {
		// Timed out waiting for confirmation; proceed anyway
		log.Printf("[Transition] Load confirmation timed out, revealing anyway")
	}
	time.Sleep(renderDelay)

	e.overlay.Hide(cfg.OverlayDuration)
	time.Sleep(cfg.OverlayDuration)

	return true
}

// moveDirect performs the jump without any overlay
func (e *Engine) moveDirect(target geomath.Point, heading *float64) bool {
	if err := e.viewer.SetPosition(target); err != nil {
		log.Printf("[Transition] Direct move failed: %v", err)
		return false
	}
	if heading != nil {
		pov := e.viewer.GetPointOfView()
		pov.Heading = *heading
		if err := e.viewer.SetPointOfView(pov); err != nil {
			log.Printf("[Transition] Direct heading set failed: %v", err)
			return false
		}
	}
	return true
}

// AnimateHeading sweeps the camera heading from one bearing to another over
// the given duration with a cubic ease-out. Independent of the transition
// single-flight; two animations on the same engine serialize.
func (e *Engine) AnimateHeading(from, to float64, duration time.Duration) {
	e.animMu.Lock()
	defer e.animMu.Unlock()

	diff := geomath.NormalizeHeadingDiff(from, to)
	if diff == 0 || duration <= 0 {
		pov := e.viewer.GetPointOfView()
		pov.Heading = to
		e.viewer.SetPointOfView(pov)
		return
	}

	const frameInterval = 16 * time.Millisecond
	start := time.Now()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for range ticker.C {
		t := float64(time.Since(start)) / float64(duration)
		if t > 1 {
			t = 1
		}
		eased := 1 - math.Pow(1-t, 3)

		heading := math.Mod(from+diff*eased+360, 360)
		pov := e.viewer.GetPointOfView()
		pov.Heading = heading
		e.viewer.SetPointOfView(pov)

		if t >= 1 {
			return
		}
	}
}
