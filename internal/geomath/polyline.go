package geomath

// DecodePolyline decodes an encoded polyline string (signed varint deltas
// scaled by 1e5, the Google Maps encoding) into a point sequence. Malformed
// input yields an empty slice rather than an error; callers treat empty as
// "no route available".
func DecodePolyline(encoded string) []Point {
	points := make([]Point, 0, len(encoded)/4)
	lat, lng := 0, 0
	i := 0

	readDelta := func() (int, bool) {
		result, shift := 0, 0
		for {
			if i >= len(encoded) {
				return 0, false
			}
			b := int(encoded[i]) - 63
			i++
			if b < 0 {
				// Character below the printable encoding range
				return 0, false
			}
			result |= (b & 0x1f) << shift
			shift += 5
			if b < 0x20 {
				break
			}
			if shift > 30 {
				// Would overflow a 32-bit delta; input is garbage
				return 0, false
			}
		}
		if result&1 != 0 {
			return ^(result >> 1), true
		}
		return result >> 1, true
	}

	for i < len(encoded) {
		dLat, ok := readDelta()
		if !ok {
			return nil
		}
		dLng, ok := readDelta()
		if !ok {
			return nil
		}
		lat += dLat
		lng += dLng
		points = append(points, Point{
			Lat: float64(lat) / 1e5,
			Lng: float64(lng) / 1e5,
		})
	}

	return points
}
