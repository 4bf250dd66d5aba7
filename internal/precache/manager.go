package precache

import (
	"fmt"
	"log"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/barisozyurt/streetflix/internal/geomath"
	"github.com/barisozyurt/streetflix/internal/ratelimit"
	"github.com/barisozyurt/streetflix/internal/viewer"
)

// Config tunes the pre-cache working set and per-panorama tile fetching.
// TileCount and TileZoom are empirical values; three central tiles at a mid
// zoom cover the forward view without pulling a whole panorama.
type Config struct {
	MaxEntries    int    // Bound on the cached set, oldest-inserted evicted first
	Lookahead     int    // How many upcoming waypoints to warm per cycle
	TileCount     int    // Central tiles fetched per panorama
	TileZoom      int    // Zoom level of the fetched tiles
	TileCacheSize int    // Bound on the LRU tile byte store
	Provider      string // Backoff handler key for the imagery provider
}

// DefaultConfig returns the default pre-cache configuration
func DefaultConfig() Config {
	return Config{
		MaxEntries:    50,
		Lookahead:     5,
		TileCount:     3,
		TileZoom:      3,
		TileCacheSize: 256,
		Provider:      "streetview",
	}
}

// Stats reports the cache working set sizes. FullyLoadedCount is the subset
// of cached entries whose every tile fetch succeeded.
type Stats struct {
	CachedCount      int `json:"cachedCount"`
	FullyLoadedCount int `json:"fullyLoadedCount"`
	LoadingCount     int `json:"loadingCount"`
	TileCount        int `json:"tileCount"`
}

// entry is a completed cache record for one rounded location key
type entry struct {
	panoID  string
	tilesOK int // How many of the tile fetch attempts succeeded
}

// Manager pre-fetches imagery for upcoming waypoints. A rounded location key
// is in at most one of the loading and cached sets at any time; marking
// happens under the same mutex hold as the membership check, so repeated
// Warm calls never double-fetch a key.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	viewer  viewer.Service
	limiter *ratelimit.Handler

	cached  map[string]*entry
	order   []string // Insertion order of cached keys, oldest first
	loading map[string]struct{}
	tiles   *lru.Cache[string, []byte]

	// Last successfully resolved location, reused when the target is
	// effectively the point we already resolved
	lastKey  string
	lastPano string

	inflight sync.WaitGroup
}

// NewManager creates a pre-cache manager over the given viewer
func NewManager(cfg Config, svc viewer.Service, limiter *ratelimit.Handler) *Manager {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = DefaultConfig().Lookahead
	}
	if cfg.TileCount <= 0 {
		cfg.TileCount = DefaultConfig().TileCount
	}
	if cfg.TileZoom <= 0 {
		cfg.TileZoom = DefaultConfig().TileZoom
	}
	if cfg.TileCacheSize <= 0 {
		cfg.TileCacheSize = DefaultConfig().TileCacheSize
	}
	if cfg.Provider == "" {
		cfg.Provider = DefaultConfig().Provider
	}

	tiles, _ := lru.New[string, []byte](cfg.TileCacheSize)

	return &Manager{
		cfg:     cfg,
		viewer:  svc,
		limiter: limiter,
		cached:  make(map[string]*entry),
		loading: make(map[string]struct{}),
		tiles:   tiles,
	}
}

// Key returns the rounded cache key for a point (5 decimal places, roughly
// one meter of resolution)
func Key(p geomath.Point) string {
	return fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lng)
}

// Warm begins fetching imagery for the next lookahead waypoints starting at
// fromIndex. Never blocks; keys already cached or in flight are skipped.
func (m *Manager) Warm(waypoints []geomath.Point, fromIndex int, lookahead int) {
	if lookahead <= 0 {
		lookahead = m.Lookahead()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := fromIndex; i < fromIndex+lookahead && i < len(waypoints); i++ {
		if i < 0 {
			continue
		}
		p := waypoints[i]
		key := Key(p)

		if _, ok := m.cached[key]; ok {
			continue
		}
		if _, ok := m.loading[key]; ok {
			continue
		}

		m.loading[key] = struct{}{}
		m.inflight.Add(1)
		go m.fetchOne(p, key)
	}
}

// fetchOne resolves one location to a panorama and pulls its central tiles.
// All failures are absorbed here; the worst outcome is an un-cacheable point
// that simply leaves the loading set.
func (m *Manager) fetchOne(p geomath.Point, key string) {
	defer m.inflight.Done()

	panoID, ok := m.resolve(p, key)
	if !ok {
		m.mu.Lock()
		delete(m.loading, key)
		m.mu.Unlock()
		return
	}

	tilesOK := m.fetchTiles(panoID)

	// The entry records "attempted", not "fully loaded": once the panorama
	// identifier is known the jump can happen, partial tile loss only costs
	// visual quality
	m.mu.Lock()
	delete(m.loading, key)
	m.cached[key] = &entry{panoID: panoID, tilesOK: tilesOK}
	m.order = append(m.order, key)
	m.lastKey = key
	m.lastPano = panoID
	m.evictLocked()
	m.mu.Unlock()
}

// resolve maps a location to a panorama identifier
func (m *Manager) resolve(p geomath.Point, key string) (string, bool) {
	if panoID, ok := m.viewer.ResolvePanoID(p); ok {
		return panoID, true
	}

	// Lookup failed; if the target is effectively the point we last
	// resolved, reuse that identifier
	m.mu.Lock()
	lastKey, lastPano := m.lastKey, m.lastPano
	m.mu.Unlock()
	if lastPano != "" && lastKey == key {
		return lastPano, true
	}

	return "", false
}

// fetchTiles pulls the central tiles of a panorama in parallel and waits for
// every attempt to settle. Returns how many succeeded.
func (m *Manager) fetchTiles(panoID string) int {
	if m.limiter != nil && m.limiter.IsLimited(m.cfg.Provider) {
		return 0
	}

	cols := 1 << m.cfg.TileZoom
	row := (1 << (m.cfg.TileZoom - 1)) / 2 // Horizon row of the equirectangular grid
	startCol := cols/2 - m.cfg.TileCount/2

	var wg sync.WaitGroup
	var okCount int
	var countMu sync.Mutex

	for i := 0; i < m.cfg.TileCount; i++ {
		x := startCol + i
		wg.Add(1)
		go func(x int) {
			defer wg.Done()

			tileKey := fmt.Sprintf("%s/%d_%d_%d", panoID, x, row, m.cfg.TileZoom)
			if _, ok := m.tiles.Get(tileKey); ok {
				countMu.Lock()
				okCount++
				countMu.Unlock()
				return
			}

			data, err := m.viewer.FetchTile(panoID, x, row, m.cfg.TileZoom)
			if err != nil {
				if m.limiter != nil {
					m.limiter.RecordFailure(m.cfg.Provider)
				}
				return
			}
			if m.limiter != nil {
				m.limiter.RecordSuccess(m.cfg.Provider)
			}

			m.tiles.Add(tileKey, data)
			countMu.Lock()
			okCount++
			countMu.Unlock()
		}(x)
	}

	wg.Wait()
	return okCount
}

// evictLocked trims the cached set back to its bound, oldest-inserted first.
// Caller holds m.mu.
func (m *Manager) evictLocked() {
	for len(m.order) > m.cfg.MaxEntries {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.cached, oldest)
		log.Printf("[PreCache] Evicted %s (cache at bound %d)", oldest, m.cfg.MaxEntries)
	}
}

// IsCached reports whether imagery for the point has been fetched
func (m *Manager) IsCached(p geomath.Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cached[Key(p)]
	return ok
}

// PanoID returns the cached panorama identifier for a point, if known
func (m *Manager) PanoID(p geomath.Point) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.cached[Key(p)]; ok {
		return e.panoID, true
	}
	return "", false
}

// Stats returns the current working set sizes
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	full := 0
	for _, e := range m.cached {
		if e.tilesOK >= m.cfg.TileCount {
			full++
		}
	}

	return Stats{
		CachedCount:      len(m.cached),
		FullyLoadedCount: full,
		LoadingCount:     len(m.loading),
		TileCount:        m.tiles.Len(),
	}
}

// Lookahead returns the current lookahead window
func (m *Manager) Lookahead() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Lookahead
}

// SetLookahead updates the lookahead window, clamped to [1, 20]
func (m *Manager) SetLookahead(n int) {
	if n < 1 {
		n = 1
	}
	if n > 20 {
		n = 20
	}

	m.mu.Lock()
	m.cfg.Lookahead = n
	m.mu.Unlock()
}

// Clear empties the cached set, tile store, and loading markers
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cached = make(map[string]*entry)
	m.order = nil
	m.loading = make(map[string]struct{})
	m.tiles.Purge()
	m.lastKey = ""
	m.lastPano = ""
}

// Wait blocks until every in-flight fetch has settled. Warm is
// fire-and-forget during playback; tests use Wait to settle a cycle
// deterministically.
func (m *Manager) Wait() {
	m.inflight.Wait()
}
