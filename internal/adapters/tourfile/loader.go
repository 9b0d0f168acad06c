package tourfile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/campustour/campustour/internal/core/domain"
)

// Coordinates in the file use the GeoJSON [lon, lat] order.
type fileWaypoint struct {
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	ShortDescription string     `json:"short_description"`
	Images           []string   `json:"images"`
	Coordinate       [2]float64 `json:"coordinate"`
}

type fileTour struct {
	Slug      string         `json:"slug"`
	Name      string         `json:"name"`
	Welcome   string         `json:"welcome"`
	Waypoints []fileWaypoint `json:"waypoints"`
}

// Decode reads and validates a tour document.
func Decode(r io.Reader) (*domain.Tour, error) {
	var ft fileTour
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ft); err != nil {
		return nil, fmt.Errorf("decode tour: %w", err)
	}

	t := &domain.Tour{
		Slug:      ft.Slug,
		Name:      ft.Name,
		Welcome:   ft.Welcome,
		Waypoints: make([]domain.Waypoint, len(ft.Waypoints)),
	}
	for i, w := range ft.Waypoints {
		t.Waypoints[i] = domain.Waypoint{
			Name:             w.Name,
			Description:      w.Description,
			ShortDescription: w.ShortDescription,
			Images:           w.Images,
			Coordinate:       domain.GeoPoint{Lon: w.Coordinate[0], Lat: w.Coordinate[1]},
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Repo implements ports.WaypointRepository from a JSON file on disk.
type Repo struct {
	path string
}

// NewRepo creates a file-backed repository.
func NewRepo(path string) *Repo {
	return &Repo{path: path}
}

// LoadTour reads the file and checks it holds the requested tour.
func (r *Repo) LoadTour(_ context.Context, slug string) (*domain.Tour, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open tour file: %w", err)
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}
	if slug != "" && t.Slug != slug {
		return nil, fmt.Errorf("%s holds %q, want %q: %w", r.path, t.Slug, slug, domain.ErrTourNotFound)
	}
	return t, nil
}
