package domain

import "time"

// ManeuverStep is one discrete instruction within a leg, as returned by a routing service.
type ManeuverStep struct {
	Instruction string     `json:"instruction"`
	Location    GeoPoint   `json:"location"`
	Type        string     `json:"type,omitempty"`
	Modifier    string     `json:"modifier,omitempty"`
	Name        string     `json:"name,omitempty"`
	Distance    float64    `json:"distance"` // meters
	Duration    float64    `json:"duration"` // seconds
	Geometry    []GeoPoint `json:"geometry,omitempty"`
}

// RouteLeg is the portion of a route between two consecutive waypoints.
// leg[i] connects waypoint i to waypoint i+1.
type RouteLeg struct {
	Steps    []ManeuverStep `json:"steps"`
	Distance float64        `json:"distance"`
	Duration float64        `json:"duration"`
	Summary  string         `json:"summary,omitempty"`
}

// Route is a walking route through every waypoint of a tour.
type Route struct {
	TourVersion string     `json:"tour_version"`
	Profile     string     `json:"profile"`
	Legs        []RouteLeg `json:"legs"`
	Distance    float64    `json:"distance"`
	Duration    float64    `json:"duration"`
	FetchedAt   time.Time  `json:"fetched_at"`
}
