package playback

import (
	"log"
	"sync"
	"time"

	"github.com/barisozyurt/streetflix/internal/precache"
	"github.com/barisozyurt/streetflix/internal/route"
	"github.com/barisozyurt/streetflix/internal/transition"
)

// State is the playback lifecycle state
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Status is the snapshot reported to the control surface
type Status struct {
	Playing         bool          `json:"playing"`
	Paused          bool          `json:"paused"`
	ProgressPercent float64       `json:"progressPercent"`
	HasRoute        bool          `json:"hasRoute"`
	Speed           string        `json:"speed"`
	RouteSummary    route.Summary `json:"routeSummary"`
}

// Orchestrator schedules playback: one advance cycle per tick, each cycle
// warming the pre-cache, transitioning to the next waypoint, and advancing
// the route cursor only when the transition succeeded. Pausing or stopping
// cancels the pending tick, never an in-flight transition.
type Orchestrator struct {
	mu          sync.Mutex
	state       State
	gen         uint64
	profiles    []SpeedProfile
	speedIdx    int
	autoHeading bool
	tick        *time.Timer

	route  *route.Manager
	cache  *precache.Manager
	engine *transition.Engine

	onState    func(Status)
	onProgress func(Status)
	onComplete func()
}

// NewOrchestrator creates a stopped orchestrator over the given pipeline.
// A nil or empty profiles slice selects the default cadence ladder.
func NewOrchestrator(rt *route.Manager, cache *precache.Manager, engine *transition.Engine, profiles []SpeedProfile) *Orchestrator {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}

	return &Orchestrator{
		state:       StateStopped,
		profiles:    profiles,
		autoHeading: true,
		route:       rt,
		cache:       cache,
		engine:      engine,
	}
}

// SetCallbacks wires the state-change, progress, and completion callbacks
func (o *Orchestrator) SetCallbacks(onState, onProgress func(Status), onComplete func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onState = onState
	o.onProgress = onProgress
	o.onComplete = onComplete
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status returns a status snapshot
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	state := o.state
	speed := o.profiles[o.speedIdx].Name
	o.mu.Unlock()

	return Status{
		Playing:         state == StatePlaying,
		Paused:          state == StatePaused,
		ProgressPercent: o.route.ProgressPercent(),
		HasRoute:        o.route.Playable(),
		Speed:           speed,
		RouteSummary:    o.route.Summary(),
	}
}

// Play starts or resumes playback. A no-op while already playing or without
// a playable route.
func (o *Orchestrator) Play() {
	o.mu.Lock()
	if o.state == StatePlaying {
		o.mu.Unlock()
		return
	}
	if !o.route.Playable() {
		o.mu.Unlock()
		log.Printf("[Playback] Play ignored: no playable route")
		return
	}
	o.state = StatePlaying
	o.gen++
	gen := o.gen
	o.mu.Unlock()

	log.Printf("[Playback] Playing")
	o.emitState()
	go o.advanceCycle(gen)
}

// Pause suspends playback after the current transition finishes. Only the
// pending tick is cancelled; a transition already in flight runs to
// completion, and the paused check suppresses its advance.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	if o.state != StatePlaying {
		o.mu.Unlock()
		return
	}
	o.state = StatePaused
	o.gen++
	o.cancelTickLocked()
	o.mu.Unlock()

	log.Printf("[Playback] Paused")
	o.emitState()
}

// Stop halts playback and rewinds the route cursor to the start
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.state = StateStopped
	o.gen++
	o.cancelTickLocked()
	o.mu.Unlock()

	o.route.Reset()
	log.Printf("[Playback] Stopped")
	o.emitState()
}

// Skip moves the cursor by n waypoints immediately, clamped to the route,
// and fires a best-effort transition to the new position. Playback state is
// untouched; a rejected transition leaves the view stale until the next
// regular tick resynchronizes it.
func (o *Orchestrator) Skip(n int) {
	if !o.route.Playable() {
		return
	}

	o.route.JumpTo(o.route.Cursor() + n)
	o.emitProgress()

	target, ok := o.route.CurrentWaypoint()
	if !ok {
		return
	}

	heading := o.headingArg()
	go func() {
		if !o.engine.TransitionTo(target, heading) {
			log.Printf("[Playback] Skip transition rejected, view resyncs on next tick")
		}
	}()
}

// advanceCycle runs one tick of playback for the given scheduling generation.
// Pause, Stop, and Play each bump the generation, so a cycle whose transition
// outlived one of those calls advances nothing and schedules nothing: the
// cursor never moves after a pause, and a resume never leaves two tick chains
// running.
func (o *Orchestrator) advanceCycle(gen uint64) {
	o.mu.Lock()
	if o.state != StatePlaying || o.gen != gen {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	next, ok := o.route.NextWaypoint()
	if !ok {
		// Route complete: a normal terminal condition. The cursor stays at
		// the end so progress reads 100.
		o.mu.Lock()
		o.state = StateStopped
		o.gen++
		o.cancelTickLocked()
		o.mu.Unlock()

		log.Printf("[Playback] Route complete")
		o.emitState()
		o.emitComplete()
		return
	}

	// Fire-and-forget warm of the upcoming window
	o.cache.Warm(o.route.Waypoints(), o.route.Cursor()+1, o.cache.Lookahead())

	moved := o.engine.TransitionTo(next, o.headingArg())

	o.mu.Lock()
	if o.state != StatePlaying || o.gen != gen {
		o.mu.Unlock()
		return
	}
	if moved {
		o.route.Advance()
	}
	interval := o.profiles[o.speedIdx].Interval
	o.cancelTickLocked()
	o.tick = time.AfterFunc(interval, func() { o.advanceCycle(gen) })
	o.mu.Unlock()

	if moved {
		o.emitProgress()
	}
}

// headingArg returns the auto-heading argument for the next transition, or
// nil when auto-heading is off or there is no next waypoint
func (o *Orchestrator) headingArg() *float64 {
	o.mu.Lock()
	auto := o.autoHeading
	o.mu.Unlock()

	if !auto {
		return nil
	}
	if _, ok := o.route.NextWaypoint(); !ok {
		return nil
	}
	h := o.route.HeadingToNext()
	return &h
}

// cancelTickLocked stops the pending scheduled tick. Caller holds o.mu.
func (o *Orchestrator) cancelTickLocked() {
	if o.tick != nil {
		o.tick.Stop()
		o.tick = nil
	}
}

// Speed returns the active speed profile name
func (o *Orchestrator) Speed() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.profiles[o.speedIdx].Name
}

// SetSpeed selects a speed profile by name; returns whether the name was
// recognized. Takes effect on the next scheduled tick.
func (o *Orchestrator) SetSpeed(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, p := range o.profiles {
		if p.Name == name {
			o.speedIdx = i
			return true
		}
	}
	return false
}

// SpeedUp steps to the next faster profile; returns the active profile name
func (o *Orchestrator) SpeedUp() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.speedIdx < len(o.profiles)-1 {
		o.speedIdx++
	}
	return o.profiles[o.speedIdx].Name
}

// SlowDown steps to the next slower profile; returns the active profile name
func (o *Orchestrator) SlowDown() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.speedIdx > 0 {
		o.speedIdx--
	}
	return o.profiles[o.speedIdx].Name
}

// AutoHeading reports whether the camera follows the route bearing
func (o *Orchestrator) AutoHeading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.autoHeading
}

// SetAutoHeading toggles camera follow of the route bearing
func (o *Orchestrator) SetAutoHeading(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.autoHeading = enabled
}

func (o *Orchestrator) emitState() {
	o.mu.Lock()
	cb := o.onState
	o.mu.Unlock()
	if cb != nil {
		cb(o.Status())
	}
}

func (o *Orchestrator) emitProgress() {
	o.mu.Lock()
	cb := o.onProgress
	o.mu.Unlock()
	if cb != nil {
		cb(o.Status())
	}
}

func (o *Orchestrator) emitComplete() {
	o.mu.Lock()
	cb := o.onComplete
	o.mu.Unlock()
	if cb != nil {
		cb()
	}
}
