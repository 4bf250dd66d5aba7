package ratelimit

import (
	"log"
	"sync"
	"time"
)

// DefaultFailureThreshold is how many consecutive fetch failures trip the
// backoff for a provider
const DefaultFailureThreshold = 5

// BackoffStrategy defines the hold-off intervals applied each time the
// failure threshold trips
type BackoffStrategy struct {
	Intervals []time.Duration
}

// DefaultBackoffStrategy returns the default escalating backoff
func DefaultBackoffStrategy() *BackoffStrategy {
	return &BackoffStrategy{
		Intervals: []time.Duration{
			30 * time.Second,
			1 * time.Minute,
			5 * time.Minute,
		},
	}
}

// Event records a backoff occurrence for one provider
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Trips     int       `json:"trips"` // How many hold-offs this provider has accumulated
	ResumesAt time.Time `json:"resumesAt"`
}

// Handler tracks consecutive fetch failures per imagery provider and holds
// off further prefetching while a provider looks rate limited. Prefetch
// failures are otherwise silent, so this is the only signal that a provider
// has started refusing tile requests.
type Handler struct {
	mu        sync.RWMutex
	failures  map[string]int
	trips     map[string]int
	limited   map[string]*Event
	strategy  *BackoffStrategy
	threshold int

	onBackoff   func(event Event)
	onRecovered func(provider string)
}

// NewHandler creates a backoff handler
func NewHandler(strategy *BackoffStrategy) *Handler {
	if strategy == nil {
		strategy = DefaultBackoffStrategy()
	}

	return &Handler{
		failures:  make(map[string]int),
		trips:     make(map[string]int),
		limited:   make(map[string]*Event),
		strategy:  strategy,
		threshold: DefaultFailureThreshold,
	}
}

// SetOnBackoff sets the callback for backoff events
func (h *Handler) SetOnBackoff(callback func(event Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onBackoff = callback
}

// SetOnRecovered sets the callback for recovery from backoff
func (h *Handler) SetOnRecovered(callback func(provider string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRecovered = callback
}

// IsLimited reports whether fetches for a provider should currently be held
// off. Expired hold-offs clear on the first check after they lapse.
func (h *Handler) IsLimited(provider string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	event, exists := h.limited[provider]
	if !exists {
		return false
	}

	if time.Now().Before(event.ResumesAt) {
		return true
	}

	// Hold-off elapsed; allow fetches again but keep the trip count so a
	// repeat failure escalates to the next interval
	delete(h.limited, provider)
	h.failures[provider] = 0
	log.Printf("[RateLimit] %s hold-off elapsed - prefetch resumed", provider)

	if h.onRecovered != nil {
		go h.onRecovered(provider)
	}
	return false
}

// RecordFailure counts one failed fetch; enough consecutive failures trip the
// backoff
func (h *Handler) RecordFailure(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failures[provider]++
	if h.failures[provider] < h.threshold {
		return
	}
	if _, tripped := h.limited[provider]; tripped {
		return
	}

	trips := h.trips[provider]
	var interval time.Duration
	if trips < len(h.strategy.Intervals) {
		interval = h.strategy.Intervals[trips]
	} else {
		interval = h.strategy.Intervals[len(h.strategy.Intervals)-1]
	}
	h.trips[provider] = trips + 1

	event := Event{
		Timestamp: time.Now(),
		Provider:  provider,
		Trips:     trips,
		ResumesAt: time.Now().Add(interval),
	}
	h.limited[provider] = &event

	log.Printf("[RateLimit] %s tripped after %d consecutive failures, holding off until %s",
		provider, h.failures[provider], event.ResumesAt.Format(time.RFC3339))

	if h.onBackoff != nil {
		go h.onBackoff(event)
	}
}

// RecordSuccess resets the failure tracking for a provider
func (h *Handler) RecordSuccess(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failures[provider] = 0
	h.trips[provider] = 0

	if _, exists := h.limited[provider]; exists {
		delete(h.limited, provider)
		log.Printf("[RateLimit] %s recovered", provider)

		if h.onRecovered != nil {
			go h.onRecovered(provider)
		}
	}
}

// CurrentState returns the active backoff event for a provider, if any
func (h *Handler) CurrentState(provider string) *Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.limited[provider]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}
