package route

import (
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/barisozyurt/streetflix/internal/geomath"
)

// DefaultSpacingMeters is the target distance between consecutive waypoints
// after densification
const DefaultSpacingMeters = 20.0

// Summary describes the loaded route for the control surface
type Summary struct {
	StartLabel          string  `json:"startLabel"`
	EndLabel            string  `json:"endLabel"`
	WaypointCount       int     `json:"waypointCount"`
	TotalDistanceMeters float64 `json:"totalDistanceMeters"`
	ProgressPercent     float64 `json:"progressPercent"`
}

// Manager owns the waypoint sequence and the playback cursor into it
type Manager struct {
	mu            sync.RWMutex
	waypoints     []geomath.Point
	cursor        int
	totalDistance float64
	spacing       float64

	// Endpoint markers, kept only so a trivial two-point route can be rebuilt
	start *geomath.Point
	end   *geomath.Point
}

// NewManager creates a route manager with the default waypoint spacing
func NewManager() *Manager {
	return &Manager{spacing: DefaultSpacingMeters}
}

// SetRoute replaces the waypoint sequence, densifying the input so that no
// two consecutive waypoints are farther apart than the target spacing, and
// resets the cursor. Fewer than 2 points leaves the route unplayable.
func (m *Manager) SetRoute(points []geomath.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.waypoints = densify(points, m.spacing)
	m.cursor = 0
	m.totalDistance = totalDistance(m.waypoints)

	if len(m.waypoints) < 2 {
		log.Printf("[Route] Route not playable (%d waypoints)", len(m.waypoints))
		return
	}

	log.Printf("[Route] Route set: %d waypoints, %.0f m total", len(m.waypoints), m.totalDistance)
}

// BuildFromEndpoints synthesizes a straight densified line between two points
func (m *Manager) BuildFromEndpoints(start, end geomath.Point) {
	m.mu.Lock()
	m.start = &start
	m.end = &end
	m.mu.Unlock()

	m.SetRoute([]geomath.Point{start, end})
}

// densify inserts interpolated points between consecutive inputs farther
// apart than the target spacing
func densify(points []geomath.Point, spacing float64) []geomath.Point {
	if len(points) < 2 {
		out := make([]geomath.Point, len(points))
		copy(out, points)
		return out
	}

	out := make([]geomath.Point, 0, len(points))
	out = append(out, points[0])

	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		d := geomath.Distance(a, b)

		segments := int(math.Ceil(d / spacing))
		for j := 1; j < segments; j++ {
			t := float64(j) / float64(segments)
			out = append(out, geomath.Interpolate(a, b, t))
		}
		out = append(out, b)
	}

	return out
}

func totalDistance(points []geomath.Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += geomath.Distance(points[i-1], points[i])
	}
	return total
}

// Playable reports whether the route has at least 2 waypoints
func (m *Manager) Playable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.waypoints) >= 2
}

// Len returns the number of waypoints
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.waypoints)
}

// Cursor returns the current cursor index
func (m *Manager) Cursor() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursor
}

// Waypoints returns a copy of the waypoint sequence
func (m *Manager) Waypoints() []geomath.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]geomath.Point, len(m.waypoints))
	copy(out, m.waypoints)
	return out
}

// CurrentWaypoint returns the waypoint at the cursor
func (m *Manager) CurrentWaypoint() (geomath.Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cursor < 0 || m.cursor >= len(m.waypoints) {
		return geomath.Point{}, false
	}
	return m.waypoints[m.cursor], true
}

// NextWaypoint returns the waypoint after the cursor, or false at the end
func (m *Manager) NextWaypoint() (geomath.Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cursor+1 >= len(m.waypoints) {
		return geomath.Point{}, false
	}
	return m.waypoints[m.cursor+1], true
}

// Advance moves the cursor forward by one; returns whether it moved
func (m *Manager) Advance() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursor+1 >= len(m.waypoints) {
		return false
	}
	m.cursor++
	return true
}

// JumpTo moves the cursor to the given index, clamped to the valid range
func (m *Manager) JumpTo(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = m.clampIndex(index)
}

// JumpToPercent moves the cursor to the given percentage of the route
func (m *Manager) JumpToPercent(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.waypoints) < 2 {
		m.cursor = 0
		return
	}
	index := int(math.Floor(p / 100 * float64(len(m.waypoints)-1)))
	m.cursor = m.clampIndex(index)
}

func (m *Manager) clampIndex(index int) int {
	if len(m.waypoints) == 0 {
		return 0
	}
	if index < 0 {
		return 0
	}
	if index > len(m.waypoints)-1 {
		return len(m.waypoints) - 1
	}
	return index
}

// HeadingToNext returns the bearing from the current waypoint to the next
// one, or 0 if there is no next waypoint
func (m *Manager) HeadingToNext() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cursor+1 >= len(m.waypoints) {
		return 0
	}
	return geomath.Heading(m.waypoints[m.cursor], m.waypoints[m.cursor+1])
}

// ProgressPercent returns playback progress in [0, 100]
func (m *Manager) ProgressPercent() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progressLocked()
}

func (m *Manager) progressLocked() float64 {
	if len(m.waypoints) <= 1 {
		return 0
	}
	return float64(m.cursor) / float64(len(m.waypoints)-1) * 100
}

// DistanceTraveled sums segment distances up to the cursor
func (m *Manager) DistanceTraveled() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	traveled := 0.0
	for i := 1; i <= m.cursor && i < len(m.waypoints); i++ {
		traveled += geomath.Distance(m.waypoints[i-1], m.waypoints[i])
	}
	return traveled
}

// DistanceRemaining sums segment distances after the cursor
func (m *Manager) DistanceRemaining() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	remaining := 0.0
	for i := m.cursor + 1; i < len(m.waypoints); i++ {
		remaining += geomath.Distance(m.waypoints[i-1], m.waypoints[i])
	}
	return remaining
}

// IsComplete reports whether the cursor is at the last waypoint
func (m *Manager) IsComplete() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.waypoints) > 0 && m.cursor == len(m.waypoints)-1
}

// Reset moves the cursor back to the start without clearing the waypoints
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = 0
}

// Clear empties the route entirely
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.waypoints = nil
	m.cursor = 0
	m.totalDistance = 0
	m.start = nil
	m.end = nil
}

// Summary returns a route description for the control surface
func (m *Manager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		WaypointCount:       len(m.waypoints),
		TotalDistanceMeters: m.totalDistance,
		ProgressPercent:     m.progressLocked(),
	}

	if m.start != nil && m.end != nil {
		s.StartLabel = formatPoint(*m.start)
		s.EndLabel = formatPoint(*m.end)
	} else if len(m.waypoints) > 0 {
		s.StartLabel = formatPoint(m.waypoints[0])
		s.EndLabel = formatPoint(m.waypoints[len(m.waypoints)-1])
	}

	return s
}

func formatPoint(p geomath.Point) string {
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng)
}
