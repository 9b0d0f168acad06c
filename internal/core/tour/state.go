package tour

import (
	"fmt"

	"github.com/campustour/campustour/internal/core/domain"
)

// State is a snapshot of a session's tour progress.
type State struct {
	CurrentStep         int              `json:"current_step"`
	Mode                domain.Mode      `json:"mode"`
	UserLocation        *domain.GeoPoint `json:"user_location,omitempty"`
	GeofencedIndex      *int             `json:"geofenced_index,omitempty"`
	Completed           bool             `json:"completed"`
	Celebrate           bool             `json:"celebrate"`
	OffRoute            bool             `json:"off_route"`
	LocationUnavailable bool             `json:"location_unavailable"`
	DirectionsAvailable bool             `json:"directions_available"`
	RouteFailed         bool             `json:"route_failed"`
}

// Geofenced returns the geofenced index or -1.
func (s State) Geofenced() int {
	if s.GeofencedIndex == nil {
		return -1
	}
	return *s.GeofencedIndex
}

// Camera sources.
const (
	CameraWaypoint = "waypoint"
	CameraUser     = "user"
)

// Camera is where the presentation layer should point the map.
type Camera struct {
	Target domain.GeoPoint `json:"target"`
	Source string          `json:"source"`
}

// StepView is the read model the presentation layer renders for the current step.
type StepView struct {
	State
	Waypoint       domain.Waypoint       `json:"waypoint"`
	Spot           int                   `json:"spot"`
	Total          int                   `json:"total"`
	Remaining      int                   `json:"remaining"`
	RemainingLabel string                `json:"remaining_label"`
	IsFirst        bool                  `json:"is_first"`
	IsLast         bool                  `json:"is_last"`
	Offset         int                   `json:"offset"`
	Instruction    string                `json:"instruction"`
	Instructions   []domain.ManeuverStep `json:"instructions"`
	Camera         Camera                `json:"camera"`
}

// RemainingLabel renders the count of stops left after the current one.
func RemainingLabel(remaining int) string {
	switch {
	case remaining <= 0:
		return "Final step"
	case remaining == 1:
		return "1 step remaining"
	default:
		return fmt.Sprintf("%d steps remaining", remaining)
	}
}
