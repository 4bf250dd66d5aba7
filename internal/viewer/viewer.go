package viewer

import (
	"time"

	"github.com/barisozyurt/streetflix/internal/geomath"
)

// PointOfView represents the viewer's camera orientation
type PointOfView struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
	Zoom    float64 `json:"zoom"`
}

// NavLink represents a navigable connection out of the current panorama
type NavLink struct {
	Heading float64 `json:"heading"`
	PanoID  string  `json:"panoId"`
}

// Service is the abstract panoramic viewer the playback pipeline drives.
// How it is implemented (embedded widget, URL-driven fallback, test fake) is
// the implementation's concern; the pipeline depends only on this contract.
type Service interface {
	// GetPosition returns the viewer's current position, or false if the
	// viewer has no panorama loaded
	GetPosition() (geomath.Point, bool)

	// GetPointOfView returns the current camera orientation
	GetPointOfView() PointOfView

	// SetPosition moves the viewer to a new position
	SetPosition(p geomath.Point) error

	// SetPointOfView reorients the camera
	SetPointOfView(pov PointOfView) error

	// WaitForLoad blocks until the viewer confirms the current panorama has
	// loaded, or the timeout elapses. Returns true on confirmed load.
	WaitForLoad(timeout time.Duration) bool

	// NavigableLinks returns the links out of the current panorama
	NavigableLinks() []NavLink

	// CaptureFrame returns a still image of the current view, or false on any
	// capture failure (e.g. a cross-origin-restricted source)
	CaptureFrame() ([]byte, bool)

	// ResolvePanoID resolves a location to a panorama identifier, or false if
	// no imagery exists near the point
	ResolvePanoID(p geomath.Point) (string, bool)

	// FetchTile downloads one imagery tile of the given panorama
	FetchTile(panoID string, x, y, zoom int) ([]byte, error)
}

// Overlay is the screen cover used to mask a viewpoint jump
type Overlay interface {
	// ShowFrame covers the view with a captured still image
	ShowFrame(frame []byte)

	// ShowFade covers the view with a plain opaque layer
	ShowFade(opacity float64)

	// Hide removes the cover, fading out over the given duration
	Hide(fadeOut time.Duration)

	// SetFadeDuration retunes the fade-out of the currently shown cover
	SetFadeDuration(d time.Duration)
}
