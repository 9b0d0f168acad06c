package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/core/tour"
	"github.com/campustour/campustour/internal/core/usecases"
)

// TourResponse describes the loaded tour.
type TourResponse struct {
	Slug      string        `json:"slug"`
	Name      string        `json:"name"`
	Welcome   string        `json:"welcome,omitempty"`
	Version   string        `json:"version"`
	Waypoints int           `json:"waypoints"`
	Bounds    domain.Bounds `json:"bounds"`
}

// IndexedWaypoint is a waypoint with its position in the tour.
type IndexedWaypoint struct {
	Index int `json:"index"`
	domain.Waypoint
}

// SessionResponse is a session's step card.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	tour.StepView
}

// LocationResponse adds what the sample did.
type LocationResponse struct {
	SessionResponse
	Outcome string `json:"outcome"`
}

// RecenterResponse reports whether the camera now follows the visitor.
type RecenterResponse struct {
	SessionResponse
	Recentered bool `json:"recentered"`
}

type createSessionRequest struct {
	Mode string `json:"mode"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type jumpRequest struct {
	Index *int `json:"index"`
}

type locationRequest struct {
	Lon       *float64   `json:"lon"`
	Lat       *float64   `json:"lat"`
	Timestamp *time.Time `json:"timestamp"`
	Error     string     `json:"error"`
}

var sensorErrors = map[string]bool{
	domain.SensorPermissionDenied:    true,
	domain.SensorTimeout:             true,
	domain.SensorPositionUnavailable: true,
}

// GetTourHandler returns tour metadata and the welcome text.
func GetTourHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t := deps.Tours.Tour()
		return c.JSON(TourResponse{
			Slug:      t.Slug,
			Name:      t.Name,
			Welcome:   t.Welcome,
			Version:   t.Version(),
			Waypoints: t.Len(),
			Bounds:    t.Bounds(),
		})
	}
}

// ListWaypointsHandler returns the waypoints in visiting order.
func ListWaypointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		wps := deps.Tours.Tour().Waypoints
		indexed := make([]IndexedWaypoint, len(wps))
		for i, w := range wps {
			indexed[i] = IndexedWaypoint{Index: i, Waypoint: w}
		}

		offset, limit := parsePagination(c, domain.MaxWaypoints, domain.MaxWaypoints)
		page, pg := paginate(indexed, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetRouteHandler returns the walking route with every leg's instructions.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		route, err := deps.Tours.Route(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(route)
	}
}

// CreateSessionHandler opens a session. The body is optional; mode defaults to live.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createSessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}

		sess, view, err := deps.Tours.Create(c.UserContext(), domain.Mode(req.Mode))
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Location("/v1/sessions/" + sess.ID())
		return c.Status(fiber.StatusCreated).JSON(SessionResponse{SessionID: sess.ID(), StepView: view})
	}
}

// lookup resolves the :id parameter to an open session.
func lookup(c *fiber.Ctx, deps *Dependencies) (*usecases.Session, error) {
	return deps.Tours.Get(c.Params("id"))
}

// sessionAction wraps a session operation returning a step card.
func sessionAction(deps *Dependencies, op func(c *fiber.Ctx, s *usecases.Session) (tour.StepView, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookup(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		view, err := op(c, sess)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(SessionResponse{SessionID: sess.ID(), StepView: view})
	}
}

// GetSessionHandler returns the current step card.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return sessionAction(deps, func(c *fiber.Ctx, s *usecases.Session) (tour.StepView, error) {
		return s.View(c.UserContext())
	})
}

// DeleteSessionHandler ends a session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Tours.Close(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// NextHandler advances to the next waypoint.
func NextHandler(deps *Dependencies) fiber.Handler {
	return sessionAction(deps, func(c *fiber.Ctx, s *usecases.Session) (tour.StepView, error) {
		return s.Advance(c.UserContext())
	})
}

// PrevHandler goes back one waypoint.
func PrevHandler(deps *Dependencies) fiber.Handler {
	return sessionAction(deps, func(c *fiber.Ctx, s *usecases.Session) (tour.StepView, error) {
		return s.Retreat(c.UserContext())
	})
}

// ResetHandler restarts the tour.
func ResetHandler(deps *Dependencies) fiber.Handler {
	return sessionAction(deps, func(c *fiber.Ctx, s *usecases.Session) (tour.StepView, error) {
		return s.Reset(c.UserContext())
	})
}

// JumpHandler selects a waypoint directly, as a marker click does.
func JumpHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req jumpRequest
		if err := c.BodyParser(&req); err != nil || req.Index == nil {
			return errBadRequest(c, "index is required")
		}
		return sessionAction(deps, func(c *fiber.Ctx, s *usecases.Session) (tour.StepView, error) {
			return s.JumpTo(c.UserContext(), *req.Index)
		})(c)
	}
}

// SetModeHandler switches between live and virtual mode.
func SetModeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req modeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		mode, err := domain.ParseMode(req.Mode)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return sessionAction(deps, func(c *fiber.Ctx, s *usecases.Session) (tour.StepView, error) {
			return s.SetMode(c.UserContext(), mode)
		})(c)
	}
}

// RecenterHandler points the camera at the visitor's last known location.
func RecenterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookup(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		view, ok, err := sess.Recenter(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(RecenterResponse{
			SessionResponse: SessionResponse{SessionID: sess.ID(), StepView: view},
			Recentered:      ok,
		})
	}
}

// LocationHandler accepts a geolocation sample or a sensor error.
func LocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		var sample domain.LocationSample
		if req.Timestamp != nil {
			sample.Timestamp = *req.Timestamp
		}
		switch {
		case req.Error != "":
			if !sensorErrors[req.Error] {
				return errBadRequest(c, "error must be permission_denied, timeout or position_unavailable")
			}
			sample.Error = req.Error
		case req.Lon == nil || req.Lat == nil:
			return errBadRequest(c, "lon and lat are required")
		default:
			sample.Point = domain.GeoPoint{Lon: *req.Lon, Lat: *req.Lat}
			if !sample.Point.Valid() {
				return errBadRequest(c, "lon must be within [-180, 180] and lat within [-90, 90]")
			}
		}

		sess, err := lookup(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		view, outcome, err := sess.Location(c.UserContext(), sample)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(LocationResponse{
			SessionResponse: SessionResponse{SessionID: sess.ID(), StepView: view},
			Outcome:         outcome.String(),
		})
	}
}
