package route

import (
	"math"
	"testing"

	"github.com/barisozyurt/streetflix/internal/geomath"
)

func TestSetRouteDensifies(t *testing.T) {
	m := NewManager()

	start := geomath.Point{Lat: 0, Lng: 0}
	end := geomath.Point{Lat: 0, Lng: 0.001} // roughly 111 m

	m.SetRoute([]geomath.Point{start, end})

	d := geomath.Distance(start, end)
	minPoints := int(math.Ceil(d/DefaultSpacingMeters)) + 1
	if m.Len() < minPoints {
		t.Fatalf("densified to %d points, expected at least %d", m.Len(), minPoints)
	}

	wps := m.Waypoints()
	if wps[0] != start {
		t.Errorf("first waypoint %v, expected %v", wps[0], start)
	}
	if wps[len(wps)-1] != end {
		t.Errorf("last waypoint %v, expected %v", wps[len(wps)-1], end)
	}

	// Interpolation parameter must be strictly increasing along the line
	for i := 1; i < len(wps); i++ {
		if wps[i].Lng <= wps[i-1].Lng {
			t.Fatalf("waypoint %d not monotone: lng %f after %f", i, wps[i].Lng, wps[i-1].Lng)
		}
	}

	// Spacing stays near the target
	for i := 1; i < len(wps); i++ {
		seg := geomath.Distance(wps[i-1], wps[i])
		if seg > DefaultSpacingMeters+0.5 {
			t.Errorf("segment %d is %f m, exceeds target spacing", i, seg)
		}
	}
}

func TestSetRouteUnplayable(t *testing.T) {
	m := NewManager()

	m.SetRoute(nil)
	if m.Playable() {
		t.Error("empty route reported playable")
	}

	m.SetRoute([]geomath.Point{{Lat: 1, Lng: 1}})
	if m.Playable() {
		t.Error("single-point route reported playable")
	}
	if m.ProgressPercent() != 0 {
		t.Errorf("single-point progress = %f, expected 0", m.ProgressPercent())
	}
}

func TestAdvanceAndProgress(t *testing.T) {
	m := NewManager()
	m.BuildFromEndpoints(geomath.Point{Lat: 0, Lng: 0}, geomath.Point{Lat: 0, Lng: 0.001})

	if m.ProgressPercent() != 0 {
		t.Errorf("initial progress = %f, expected 0", m.ProgressPercent())
	}

	prev := 0.0
	steps := 0
	for m.Advance() {
		steps++
		p := m.ProgressPercent()
		if p < prev {
			t.Fatalf("progress decreased from %f to %f", prev, p)
		}
		prev = p
		if steps > m.Len() {
			t.Fatal("Advance never reached the end")
		}
	}

	if !m.IsComplete() {
		t.Error("route not complete after advancing to the end")
	}
	if m.ProgressPercent() != 100 {
		t.Errorf("final progress = %f, expected 100", m.ProgressPercent())
	}
	if m.Advance() {
		t.Error("Advance moved past the last waypoint")
	}
	if _, ok := m.NextWaypoint(); ok {
		t.Error("NextWaypoint returned a point at the end of the route")
	}
}

func TestJumpClamping(t *testing.T) {
	m := NewManager()
	m.BuildFromEndpoints(geomath.Point{Lat: 0, Lng: 0}, geomath.Point{Lat: 0, Lng: 0.001})
	last := m.Len() - 1

	m.JumpTo(-5)
	if m.Cursor() != 0 {
		t.Errorf("JumpTo(-5) left cursor at %d", m.Cursor())
	}

	m.JumpTo(10000)
	if m.Cursor() != last {
		t.Errorf("JumpTo(10000) left cursor at %d, expected %d", m.Cursor(), last)
	}

	m.JumpToPercent(-40)
	if m.Cursor() != 0 {
		t.Errorf("JumpToPercent(-40) left cursor at %d", m.Cursor())
	}

	m.JumpToPercent(250)
	if m.Cursor() != last {
		t.Errorf("JumpToPercent(250) left cursor at %d, expected %d", m.Cursor(), last)
	}

	m.JumpToPercent(50)
	want := int(math.Floor(0.5 * float64(last)))
	if m.Cursor() != want {
		t.Errorf("JumpToPercent(50) left cursor at %d, expected %d", m.Cursor(), want)
	}
}

func TestDistances(t *testing.T) {
	m := NewManager()
	m.BuildFromEndpoints(geomath.Point{Lat: 0, Lng: 0}, geomath.Point{Lat: 0, Lng: 0.001})

	total := m.DistanceTraveled() + m.DistanceRemaining()
	if m.DistanceTraveled() != 0 {
		t.Errorf("traveled %f at cursor 0, expected 0", m.DistanceTraveled())
	}

	m.JumpToPercent(100)
	if m.DistanceRemaining() != 0 {
		t.Errorf("remaining %f at the end, expected 0", m.DistanceRemaining())
	}

	endTotal := m.DistanceTraveled() + m.DistanceRemaining()
	if math.Abs(total-endTotal) > 0.01 {
		t.Errorf("traveled+remaining changed from %f to %f", total, endTotal)
	}
}

func TestHeadingToNext(t *testing.T) {
	m := NewManager()
	m.BuildFromEndpoints(geomath.Point{Lat: 0, Lng: 0}, geomath.Point{Lat: 0, Lng: 0.001})

	if h := m.HeadingToNext(); math.Abs(h-90) > 0.1 {
		t.Errorf("HeadingToNext = %f, expected 90 for a due-east route", h)
	}

	m.JumpToPercent(100)
	if h := m.HeadingToNext(); h != 0 {
		t.Errorf("HeadingToNext at route end = %f, expected 0", h)
	}
}

func TestResetAndClear(t *testing.T) {
	m := NewManager()
	m.BuildFromEndpoints(geomath.Point{Lat: 0, Lng: 0}, geomath.Point{Lat: 0, Lng: 0.001})

	m.JumpToPercent(100)
	m.Reset()
	if m.Cursor() != 0 {
		t.Errorf("Reset left cursor at %d", m.Cursor())
	}
	if !m.Playable() {
		t.Error("Reset cleared the waypoints")
	}

	m.Clear()
	if m.Playable() || m.Len() != 0 {
		t.Error("Clear left waypoints behind")
	}
}

func TestSummary(t *testing.T) {
	m := NewManager()
	m.BuildFromEndpoints(geomath.Point{Lat: 0, Lng: 0}, geomath.Point{Lat: 0, Lng: 0.001})

	s := m.Summary()
	if s.WaypointCount != m.Len() {
		t.Errorf("summary count %d, expected %d", s.WaypointCount, m.Len())
	}
	if s.StartLabel == "" || s.EndLabel == "" {
		t.Error("summary labels empty")
	}
	if math.Abs(s.TotalDistanceMeters-111.19) > 1 {
		t.Errorf("summary distance %f, expected about 111", s.TotalDistanceMeters)
	}
}
