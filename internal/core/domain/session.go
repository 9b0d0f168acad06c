package domain

import (
	"fmt"
	"time"
)

// Mode selects what drives tour progress.
type Mode string

const (
	// ModeLive lets the visitor's real-time location drive progress.
	ModeLive Mode = "live"
	// ModeVirtual is a manual walkthrough without physical presence.
	ModeVirtual Mode = "virtual"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLive, ModeVirtual:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Sensor error codes reported by a geolocation feed.
const (
	SensorPermissionDenied    = "permission_denied"
	SensorTimeout             = "timeout"
	SensorPositionUnavailable = "position_unavailable"
)

// LocationSample is one reading from a geolocation feed.
// A non-empty Error means the sensor failed and Point carries no data.
type LocationSample struct {
	Point     GeoPoint  `json:"point"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// EventType names a tour event.
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventStepChanged         EventType = "step_changed"
	EventGeofenceEntered     EventType = "geofence_entered"
	EventOffRoute            EventType = "off_route"
	EventTourCompleted       EventType = "tour_completed"
	EventModeChanged         EventType = "mode_changed"
	EventTourReset           EventType = "tour_reset"
	EventLocationUnavailable EventType = "location_unavailable"
	EventRouteLoaded         EventType = "route_loaded"
	EventRouteFailed         EventType = "route_failed"
	EventSessionEnded        EventType = "session_ended"
)

// TourEvent is published whenever a session's state changes in a way the presentation layer cares about.
type TourEvent struct {
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	Step      int       `json:"step"`
	Mode      Mode      `json:"mode"`
	Geofenced *int      `json:"geofenced,omitempty"`
	Completed bool      `json:"completed"`
	Time      time.Time `json:"time"`
}
