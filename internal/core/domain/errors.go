package domain

import "errors"

var (
	ErrEmptyTour         = errors.New("tour has no waypoints")
	ErrTooManyWaypoints  = errors.New("tour has more waypoints than the directions service accepts")
	ErrInvalidCoordinate = errors.New("waypoint coordinate out of range")
	ErrUnnamedWaypoint   = errors.New("waypoint name is required")
	ErrTourNotFound      = errors.New("tour not found")
	ErrInvalidMode       = errors.New("mode must be live or virtual")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session closed")
	ErrRouteUnavailable  = errors.New("route not available")
)
