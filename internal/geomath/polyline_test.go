package geomath

import (
	"math"
	"testing"
)

func TestDecodePolyline(t *testing.T) {
	// The canonical example from the encoding's documentation
	points := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")

	expected := []Point{
		{38.5, -120.2},
		{40.7, -120.95},
		{43.252, -126.453},
	}

	if len(points) != len(expected) {
		t.Fatalf("decoded %d points, expected %d", len(points), len(expected))
	}
	for i, want := range expected {
		if math.Abs(points[i].Lat-want.Lat) > 1e-5 || math.Abs(points[i].Lng-want.Lng) > 1e-5 {
			t.Errorf("point %d = %v, expected %v", i, points[i], want)
		}
	}
}

func TestDecodePolylineSinglePoint(t *testing.T) {
	points := DecodePolyline("_p~iF~ps|U")
	if len(points) != 1 {
		t.Fatalf("decoded %d points, expected 1", len(points))
	}
	if math.Abs(points[0].Lat-38.5) > 1e-5 || math.Abs(points[0].Lng+120.2) > 1e-5 {
		t.Errorf("point = %v, expected {38.5 -120.2}", points[0])
	}
}

func TestDecodePolylineMalformed(t *testing.T) {
	for _, encoded := range []string{
		"abc",         // truncated mid-varint
		"!!!",         // characters below the encoding range
		"_p~iF~ps|U_", // valid prefix, truncated continuation
	} {
		if points := DecodePolyline(encoded); len(points) != 0 {
			t.Errorf("DecodePolyline(%q) = %d points, expected empty", encoded, len(points))
		}
	}
}

func TestDecodePolylineEmpty(t *testing.T) {
	if points := DecodePolyline(""); len(points) != 0 {
		t.Errorf("DecodePolyline(\"\") = %d points, expected empty", len(points))
	}
}
