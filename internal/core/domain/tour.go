package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// MaxWaypoints is the largest coordinate list a single directions request accepts.
const MaxWaypoints = 25

// Waypoint is a named, geolocated stop in the fixed tour sequence.
// ShortDescription and Images are optional; their zero values ("" and nil) are the defaults.
type Waypoint struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	ShortDescription string   `json:"short_description,omitempty"`
	Images           []string `json:"images,omitempty"`
	Coordinate       GeoPoint `json:"coordinate"`
}

// Tour is the immutable ordered list of waypoints a session walks through.
type Tour struct {
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	Welcome   string     `json:"welcome,omitempty"`
	Waypoints []Waypoint `json:"waypoints"`
}

// Validate checks the invariants a tour needs before any session can use it.
func (t *Tour) Validate() error {
	if len(t.Waypoints) == 0 {
		return ErrEmptyTour
	}
	if len(t.Waypoints) > MaxWaypoints {
		return fmt.Errorf("%w: %d > %d", ErrTooManyWaypoints, len(t.Waypoints), MaxWaypoints)
	}
	for i, w := range t.Waypoints {
		if strings.TrimSpace(w.Name) == "" {
			return fmt.Errorf("waypoint %d: %w", i, ErrUnnamedWaypoint)
		}
		if !w.Coordinate.Valid() {
			return fmt.Errorf("waypoint %d (%s): %w", i, w.Name, ErrInvalidCoordinate)
		}
	}
	return nil
}

// Len returns the number of waypoints.
func (t *Tour) Len() int { return len(t.Waypoints) }

// Coordinates returns the waypoint coordinates in tour order.
func (t *Tour) Coordinates() []GeoPoint {
	out := make([]GeoPoint, len(t.Waypoints))
	for i, w := range t.Waypoints {
		out[i] = w.Coordinate
	}
	return out
}

// Version identifies the ordered coordinate list. Routes are cached per version.
func (t *Tour) Version() string {
	h := sha256.New()
	var buf [8]byte
	for _, w := range t.Waypoints {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(w.Coordinate.Lon))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(w.Coordinate.Lat))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Bounds returns the box enclosing every waypoint.
func (t *Tour) Bounds() Bounds {
	if len(t.Waypoints) == 0 {
		return Bounds{}
	}
	first := t.Waypoints[0].Coordinate
	b := Bounds{MinLat: first.Lat, MaxLat: first.Lat, MinLon: first.Lon, MaxLon: first.Lon}
	for _, w := range t.Waypoints[1:] {
		b = b.Extend(w.Coordinate)
	}
	return b
}
