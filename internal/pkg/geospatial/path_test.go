package geospatial_test

import (
	"math"
	"testing"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/pkg/geospatial"
)

func TestCumulative(t *testing.T) {
	path := []domain.GeoPoint{{Lon: 0, Lat: 0}, {Lon: 0, Lat: 0.001}, {Lon: 0, Lat: 0.003}}
	cum := geospatial.Cumulative(path)

	if len(cum) != 3 || cum[0] != 0 {
		t.Fatalf("unexpected cumulative distances %v", cum)
	}
	if math.Abs(cum[2]-3*cum[1]) > 0.01 {
		t.Errorf("expected third vertex at 3x the first leg, got %v", cum)
	}
}

func TestInterpolate(t *testing.T) {
	path := []domain.GeoPoint{{Lon: 0, Lat: 0}, {Lon: 0, Lat: 0.002}}
	cum := geospatial.Cumulative(path)

	tests := []struct {
		name string
		dist float64
		lat  float64
	}{
		{"start", 0, 0},
		{"before start clamps", -5, 0},
		{"midpoint", cum[1] / 2, 0.001},
		{"end", cum[1], 0.002},
		{"past end clamps", cum[1] + 100, 0.002},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := geospatial.Interpolate(path, cum, tt.dist)
			if math.Abs(p.Lat-tt.lat) > 1e-9 || p.Lon != 0 {
				t.Errorf("Interpolate(%v) = %+v, want lat %v", tt.dist, p, tt.lat)
			}
		})
	}
}

func TestInterpolate_Empty(t *testing.T) {
	if p := geospatial.Interpolate(nil, nil, 10); p != (domain.GeoPoint{}) {
		t.Errorf("expected zero point, got %+v", p)
	}
}
