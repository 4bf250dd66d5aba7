package precache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/barisozyurt/streetflix/internal/geomath"
	"github.com/barisozyurt/streetflix/internal/viewer"
)

// fakeViewer resolves every point to a deterministic panorama and serves
// fixed tile bytes, counting calls per key
type fakeViewer struct {
	mu           sync.Mutex
	resolveCalls map[string]int
	tileCalls    int
	failResolve  bool
	failTiles    bool
}

func newFakeViewer() *fakeViewer {
	return &fakeViewer{resolveCalls: make(map[string]int)}
}

func (f *fakeViewer) GetPosition() (geomath.Point, bool)      { return geomath.Point{}, false }
func (f *fakeViewer) GetPointOfView() viewer.PointOfView      { return viewer.PointOfView{} }
func (f *fakeViewer) SetPosition(p geomath.Point) error       { return nil }
func (f *fakeViewer) SetPointOfView(viewer.PointOfView) error { return nil }
func (f *fakeViewer) WaitForLoad(timeout time.Duration) bool  { return true }
func (f *fakeViewer) NavigableLinks() []viewer.NavLink        { return nil }
func (f *fakeViewer) CaptureFrame() ([]byte, bool)            { return nil, false }

func (f *fakeViewer) ResolvePanoID(p geomath.Point) (string, bool) {
	f.mu.Lock()
	key := Key(p)
	f.resolveCalls[key]++
	f.mu.Unlock()

	if f.failResolve {
		return "", false
	}
	return "pano-" + key, true
}

func (f *fakeViewer) FetchTile(panoID string, x, y, zoom int) ([]byte, error) {
	f.mu.Lock()
	f.tileCalls++
	f.mu.Unlock()

	if f.failTiles {
		return nil, fmt.Errorf("fetch refused")
	}
	return []byte{0xff, 0xd8}, nil
}

func (f *fakeViewer) resolveCount(p geomath.Point) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveCalls[Key(p)]
}

func testPoints(n int) []geomath.Point {
	points := make([]geomath.Point, n)
	for i := range points {
		points[i] = geomath.Point{Lat: float64(i) * 0.001, Lng: 0}
	}
	return points
}

func TestWarmCachesWindow(t *testing.T) {
	fv := newFakeViewer()
	m := NewManager(DefaultConfig(), fv, nil)

	points := testPoints(10)
	m.Warm(points, 0, 5)
	m.Wait()

	for i := 0; i < 5; i++ {
		if !m.IsCached(points[i]) {
			t.Errorf("waypoint %d not cached after warm", i)
		}
	}
	if m.IsCached(points[5]) {
		t.Error("waypoint beyond the lookahead window got cached")
	}

	stats := m.Stats()
	if stats.CachedCount != 5 {
		t.Errorf("cachedCount = %d, expected 5", stats.CachedCount)
	}
	if stats.LoadingCount != 0 {
		t.Errorf("loadingCount = %d after Wait, expected 0", stats.LoadingCount)
	}
	if stats.TileCount == 0 {
		t.Error("no tiles recorded after warm")
	}
	if stats.FullyLoadedCount != 5 {
		t.Errorf("fullyLoadedCount = %d with every tile succeeding, expected 5", stats.FullyLoadedCount)
	}
}

func TestWarmIdempotent(t *testing.T) {
	fv := newFakeViewer()
	m := NewManager(DefaultConfig(), fv, nil)

	points := testPoints(5)

	// Two immediate warms over the same window must never double-fetch a key
	m.Warm(points, 0, 5)
	m.Warm(points, 0, 5)
	m.Wait()

	for _, p := range points {
		if n := fv.resolveCount(p); n > 1 {
			t.Errorf("waypoint %s resolved %d times, expected at most once", Key(p), n)
		}
	}

	// A third warm after completion is also a no-op
	m.Warm(points, 0, 5)
	m.Wait()
	for _, p := range points {
		if n := fv.resolveCount(p); n > 1 {
			t.Errorf("cached waypoint %s re-resolved (%d times)", Key(p), n)
		}
	}
}

func TestEvictionOldestFirst(t *testing.T) {
	fv := newFakeViewer()
	cfg := DefaultConfig()
	cfg.MaxEntries = 3
	m := NewManager(cfg, fv, nil)

	points := testPoints(5)

	// Warm one point at a time so insertion order is deterministic
	for _, p := range points {
		m.Warm([]geomath.Point{p}, 0, 1)
		m.Wait()
	}

	stats := m.Stats()
	if stats.CachedCount != 3 {
		t.Fatalf("cachedCount = %d after overflow, expected exactly 3", stats.CachedCount)
	}

	for i := 0; i < 2; i++ {
		if m.IsCached(points[i]) {
			t.Errorf("oldest waypoint %d survived eviction", i)
		}
	}
	for i := 2; i < 5; i++ {
		if !m.IsCached(points[i]) {
			t.Errorf("recent waypoint %d was evicted", i)
		}
	}
}

func TestResolveFailureLeavesUncached(t *testing.T) {
	fv := newFakeViewer()
	fv.failResolve = true
	m := NewManager(DefaultConfig(), fv, nil)

	points := testPoints(3)
	m.Warm(points, 0, 3)
	m.Wait()

	stats := m.Stats()
	if stats.CachedCount != 0 {
		t.Errorf("cachedCount = %d with failing resolver, expected 0", stats.CachedCount)
	}
	if stats.LoadingCount != 0 {
		t.Errorf("loadingCount = %d after settled warm, expected 0", stats.LoadingCount)
	}
}

func TestTileFailureStillCaches(t *testing.T) {
	fv := newFakeViewer()
	fv.failTiles = true
	m := NewManager(DefaultConfig(), fv, nil)

	p := geomath.Point{Lat: 1, Lng: 2}
	m.Warm([]geomath.Point{p}, 0, 1)
	m.Wait()

	// The cache records "attempted": a known identifier is enough even if
	// every tile fetch failed
	if !m.IsCached(p) {
		t.Error("point with failed tile fetches not cached")
	}

	stats := m.Stats()
	if stats.CachedCount != 1 {
		t.Errorf("cachedCount = %d, expected 1", stats.CachedCount)
	}
	if stats.FullyLoadedCount != 0 {
		t.Errorf("fullyLoadedCount = %d with every tile failing, expected 0", stats.FullyLoadedCount)
	}
}

func TestSetLookaheadClamps(t *testing.T) {
	m := NewManager(DefaultConfig(), newFakeViewer(), nil)

	m.SetLookahead(0)
	if m.Lookahead() != 1 {
		t.Errorf("SetLookahead(0) gave %d, expected 1", m.Lookahead())
	}

	m.SetLookahead(99)
	if m.Lookahead() != 20 {
		t.Errorf("SetLookahead(99) gave %d, expected 20", m.Lookahead())
	}

	m.SetLookahead(7)
	if m.Lookahead() != 7 {
		t.Errorf("SetLookahead(7) gave %d, expected 7", m.Lookahead())
	}
}

func TestClear(t *testing.T) {
	fv := newFakeViewer()
	m := NewManager(DefaultConfig(), fv, nil)

	points := testPoints(3)
	m.Warm(points, 0, 3)
	m.Wait()
	m.Clear()

	stats := m.Stats()
	if stats.CachedCount != 0 || stats.LoadingCount != 0 || stats.TileCount != 0 {
		t.Errorf("Clear left %+v behind", stats)
	}
}
