package tourfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/campustour/campustour/internal/core/domain"
)

const smallTour = `{
  "slug": "demo",
  "name": "Demo Tour",
  "welcome": "Hello",
  "waypoints": [
    {"name": "Gate", "description": "Start here", "coordinate": [76.615118, 12.313092]},
    {"name": "Library", "description": "Books", "short_description": "Quiet", "images": ["/images/lib.jpg"], "coordinate": [76.614141, 12.313176]}
  ]
}`

func TestDecode(t *testing.T) {
	tour, err := Decode(strings.NewReader(smallTour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tour.Len() != 2 {
		t.Fatalf("expected 2 waypoints, got %d", tour.Len())
	}
	gate := tour.Waypoints[0]
	if gate.Coordinate.Lon != 76.615118 || gate.Coordinate.Lat != 12.313092 {
		t.Errorf("coordinate order not [lon, lat]: %+v", gate.Coordinate)
	}
	if gate.ShortDescription != "" || gate.Images != nil {
		t.Errorf("optional fields should default to zero values: %+v", gate)
	}
	if tour.Waypoints[1].ShortDescription != "Quiet" {
		t.Errorf("short description = %q", tour.Waypoints[1].ShortDescription)
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"empty", `{"slug":"x","name":"x","waypoints":[]}`, domain.ErrEmptyTour},
		{"bad coordinate", `{"slug":"x","name":"x","waypoints":[{"name":"a","coordinate":[12.3, 95.0]}]}`, domain.ErrInvalidCoordinate},
		{"unnamed", `{"slug":"x","name":"x","waypoints":[{"name":"","coordinate":[1, 1]}]}`, domain.ErrUnnamedWaypoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := Decode(strings.NewReader(`{"slug":"x","stops":[]}`)); err == nil {
		t.Error("unknown fields should be rejected")
	}
}

func TestRepo_LoadTour(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tour.json")
	if err := os.WriteFile(path, []byte(smallTour), 0o600); err != nil {
		t.Fatal(err)
	}
	repo := NewRepo(path)

	tour, err := repo.LoadTour(context.Background(), "demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tour.Name != "Demo Tour" {
		t.Errorf("name = %q", tour.Name)
	}

	_, err = repo.LoadTour(context.Background(), "other")
	if !errors.Is(err, domain.ErrTourNotFound) {
		t.Errorf("expected ErrTourNotFound, got %v", err)
	}
}

func TestRepo_BundledTour(t *testing.T) {
	tour, err := NewRepo("../../../configs/tour.json").LoadTour(context.Background(), "sjce-campus")
	if err != nil {
		t.Fatalf("bundled tour must load: %v", err)
	}
	if tour.Len() != 24 {
		t.Errorf("expected 24 waypoints, got %d", tour.Len())
	}
}
