package viewer

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/barisozyurt/streetflix/internal/geomath"
)

const (
	// Panorama tile endpoint for the street-level imagery provider
	TileURLTemplate = "https://streetviewpixels-pa.googleapis.com/v1/tile?cb_client=maps_sv.tactile&panoid=%s&x=%d&y=%d&zoom=%d"

	// User agent
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

	// How long the bridge waits for the frontend to answer a request before
	// giving up on that call
	requestTimeout = 3 * time.Second
)

// Bridge implements Service and Overlay against the embedded panorama widget.
// Each call is sent to the frontend as a "viewer:<op>" event carrying a
// request ID; the frontend answers on "viewer:reply:<id>". Tile downloads
// bypass the frontend and go straight to the tile endpoint.
type Bridge struct {
	ctx        context.Context
	httpClient *http.Client
}

// NewBridge creates a viewer bridge bound to the Wails context
func NewBridge(ctx context.Context) *Bridge {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	return &Bridge{
		ctx: ctx,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
	}
}

// request emits an event to the frontend and waits for the correlated reply.
// Returns nil and false if the frontend does not answer in time.
func (b *Bridge) request(op string, payload map[string]interface{}, timeout time.Duration) (map[string]interface{}, bool) {
	id := uuid.NewString()

	replyChan := make(chan map[string]interface{}, 1)
	cancel := wailsRuntime.EventsOnce(b.ctx, "viewer:reply:"+id, func(optionalData ...interface{}) {
		reply := map[string]interface{}{}
		if len(optionalData) > 0 {
			if m, ok := optionalData[0].(map[string]interface{}); ok {
				reply = m
			}
		}
		select {
		case replyChan <- reply:
		default:
		}
	})
	defer cancel()

	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["requestId"] = id
	wailsRuntime.EventsEmit(b.ctx, "viewer:"+op, payload)

	select {
	case reply := <-replyChan:
		return reply, true
	case <-time.After(timeout):
		return nil, false
	}
}

func replyFloat(reply map[string]interface{}, key string) (float64, bool) {
	v, ok := reply[key].(float64)
	return v, ok
}

// GetPosition returns the widget's current position
func (b *Bridge) GetPosition() (geomath.Point, bool) {
	reply, ok := b.request("get-position", nil, requestTimeout)
	if !ok {
		return geomath.Point{}, false
	}

	lat, latOK := replyFloat(reply, "lat")
	lng, lngOK := replyFloat(reply, "lng")
	if !latOK || !lngOK {
		return geomath.Point{}, false
	}

	return geomath.Point{Lat: lat, Lng: lng}, true
}

// GetPointOfView returns the widget's camera orientation
func (b *Bridge) GetPointOfView() PointOfView {
	reply, ok := b.request("get-pov", nil, requestTimeout)
	if !ok {
		return PointOfView{}
	}

	pov := PointOfView{}
	pov.Heading, _ = replyFloat(reply, "heading")
	pov.Pitch, _ = replyFloat(reply, "pitch")
	pov.Zoom, _ = replyFloat(reply, "zoom")
	return pov
}

// SetPosition moves the widget to a new position
func (b *Bridge) SetPosition(p geomath.Point) error {
	_, ok := b.request("set-position", map[string]interface{}{
		"lat": p.Lat,
		"lng": p.Lng,
	}, requestTimeout)
	if !ok {
		return fmt.Errorf("viewer did not acknowledge set-position")
	}
	return nil
}

// SetPointOfView reorients the widget's camera
func (b *Bridge) SetPointOfView(pov PointOfView) error {
	_, ok := b.request("set-pov", map[string]interface{}{
		"heading": pov.Heading,
		"pitch":   pov.Pitch,
	}, requestTimeout)
	if !ok {
		return fmt.Errorf("viewer did not acknowledge set-pov")
	}
	return nil
}

// WaitForLoad blocks until the widget reports the panorama loaded, bounded by
// the timeout. A timeout returns false; the caller decides whether that is an
// error.
func (b *Bridge) WaitForLoad(timeout time.Duration) bool {
	reply, ok := b.request("wait-for-load", map[string]interface{}{
		"timeoutMs": timeout.Milliseconds(),
	}, timeout+requestTimeout)
	if !ok {
		return false
	}

	loaded, _ := reply["loaded"].(bool)
	return loaded
}

// NavigableLinks returns the links out of the current panorama
func (b *Bridge) NavigableLinks() []NavLink {
	reply, ok := b.request("get-links", nil, requestTimeout)
	if !ok {
		return nil
	}

	raw, _ := reply["links"].([]interface{})
	links := make([]NavLink, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		link := NavLink{}
		link.Heading, _ = replyFloat(m, "heading")
		link.PanoID, _ = m["panoId"].(string)
		links = append(links, link)
	}
	return links
}

// CaptureFrame asks the frontend for a still of the current view. The widget
// answers with a base64 data payload, or an empty string when the canvas is
// tainted and unreadable.
func (b *Bridge) CaptureFrame() ([]byte, bool) {
	reply, ok := b.request("capture-frame", nil, requestTimeout)
	if !ok {
		return nil, false
	}

	encoded, _ := reply["frame"].(string)
	if encoded == "" {
		return nil, false
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// ResolvePanoID resolves a location to a panorama identifier via the widget's
// panorama service
func (b *Bridge) ResolvePanoID(p geomath.Point) (string, bool) {
	reply, ok := b.request("resolve-pano", map[string]interface{}{
		"lat": p.Lat,
		"lng": p.Lng,
	}, requestTimeout)
	if !ok {
		return "", false
	}

	panoID, _ := reply["panoId"].(string)
	return panoID, panoID != ""
}

// FetchTile downloads one panorama tile directly from the tile endpoint
func (b *Bridge) FetchTile(panoID string, x, y, zoom int) ([]byte, error) {
	tileURL := fmt.Sprintf(TileURLTemplate, url.QueryEscape(panoID), x, y, zoom)

	req, err := http.NewRequest("GET", tileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile request failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile: %w", err)
	}

	return data, nil
}

// ShowFrame covers the view with a captured still image
func (b *Bridge) ShowFrame(frame []byte) {
	wailsRuntime.EventsEmit(b.ctx, "overlay:show-frame", map[string]interface{}{
		"frame": base64.StdEncoding.EncodeToString(frame),
	})
}

// ShowFade covers the view with a plain opaque layer
func (b *Bridge) ShowFade(opacity float64) {
	wailsRuntime.EventsEmit(b.ctx, "overlay:show-fade", map[string]interface{}{
		"opacity": opacity,
	})
}

// Hide removes the cover with the given fade-out duration
func (b *Bridge) Hide(fadeOut time.Duration) {
	wailsRuntime.EventsEmit(b.ctx, "overlay:hide", map[string]interface{}{
		"fadeOutMs": fadeOut.Milliseconds(),
	})
}

// SetFadeDuration retunes the fade-out of the currently shown cover
func (b *Bridge) SetFadeDuration(d time.Duration) {
	wailsRuntime.EventsEmit(b.ctx, "overlay:set-duration", map[string]interface{}{
		"durationMs": d.Milliseconds(),
	})
}
