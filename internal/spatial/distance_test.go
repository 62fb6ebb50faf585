package spatial

import (
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64 // meters
		tolerance              float64
	}{
		{"same point", 12.9716, 77.5946, 12.9716, 77.5946, 0, 0.001},
		{"one degree of latitude", 12.0, 77.0, 13.0, 77.0, 111195, 50},
		{"bangalore to mysore", 12.9716, 77.5946, 12.2958, 76.6394, 127000, 3000},
		{"short hop", 12.9716, 77.5946, 12.9725, 77.5946, 100, 5},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := HaversineDistance(c.lat1, c.lon1, c.lat2, c.lon2)
			if math.Abs(got-c.want) > c.tolerance {
				t.Errorf("distance = %f m, want %f +/- %f", got, c.want, c.tolerance)
			}
		})
	}
}

func TestHaversineDistanceIsSymmetric(t *testing.T) {
	a := HaversineDistance(12.9716, 77.5946, 13.0827, 80.2707)
	b := HaversineDistance(13.0827, 80.2707, 12.9716, 77.5946)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestPathLengthMeters(t *testing.T) {
	// three points each ~111m apart along a meridian
	points := [][2]float64{
		{12.970, 77.59},
		{12.971, 77.59},
		{12.972, 77.59},
	}
	got := PathLengthMeters(points)
	if math.Abs(got-222.4) > 2 {
		t.Errorf("path length = %f m, want ~222.4", got)
	}

	if PathLengthMeters(points[:1]) != 0 {
		t.Error("single-point path length != 0")
	}
	if PathLengthMeters(nil) != 0 {
		t.Error("empty path length != 0")
	}
}
