package tour

import (
	"errors"
	"fmt"
	"time"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/pkg/geospatial"
)

// Options tunes geofencing.
type Options struct {
	// GeofenceRadius is the proximity threshold in meters.
	GeofenceRadius float64
	// MinSampleInterval drops location samples that arrive sooner than this after the last accepted one.
	MinSampleInterval time.Duration
}

// Outcome describes what a location sample did to the state.
type Outcome int

const (
	SampleIgnored Outcome = iota
	SampleThrottled
	SampleFailed
	SampleEntered
	SampleInside
	SampleOffRoute
)

func (o Outcome) String() string {
	switch o {
	case SampleIgnored:
		return "ignored"
	case SampleThrottled:
		return "throttled"
	case SampleFailed:
		return "sensor_error"
	case SampleEntered:
		return "entered"
	case SampleInside:
		return "inside"
	case SampleOffRoute:
		return "off_route"
	}
	return "unknown"
}

// Controller is the tour-progress state machine for one session.
// It is not safe for concurrent use; a Session serializes access to it.
type Controller struct {
	tour   *domain.Tour
	coords []domain.GeoPoint
	opts   Options

	step         int
	mode         domain.Mode
	userLocation *domain.GeoPoint
	geofenced    int // -1 when none
	celebrate    bool
	offRoute     bool
	locationErr  bool
	recenter     bool
	lastSample   time.Time

	legs        []domain.RouteLeg
	routeFailed bool
}

// NewController validates the tour and returns a controller at the first waypoint in live mode.
func NewController(t *domain.Tour, opts Options) (*Controller, error) {
	if t == nil {
		return nil, domain.ErrEmptyTour
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tour: %w", err)
	}
	if opts.GeofenceRadius <= 0 {
		return nil, errors.New("geofence radius must be positive")
	}
	if opts.MinSampleInterval < 0 {
		return nil, errors.New("min sample interval must not be negative")
	}
	return &Controller{
		tour:      t,
		coords:    t.Coordinates(),
		opts:      opts,
		mode:      domain.ModeLive,
		geofenced: -1,
	}, nil
}

func (c *Controller) last() int { return len(c.coords) - 1 }

// setStep moves to i (clamped) and maintains the celebration flag.
func (c *Controller) setStep(i int) bool {
	i = max(0, min(i, c.last()))
	if i == c.step {
		return false
	}
	c.step = i
	c.celebrate = i == c.last()
	c.recenter = false
	return true
}

// Advance moves to the next waypoint. It is a no-op at the last one.
func (c *Controller) Advance() bool {
	if c.step >= c.last() {
		return false
	}
	return c.setStep(c.step + 1)
}

// Retreat moves to the previous waypoint. It is a no-op at the first one.
func (c *Controller) Retreat() bool {
	if c.step <= 0 {
		return false
	}
	return c.setStep(c.step - 1)
}

// JumpTo selects a waypoint directly, as a marker click does.
func (c *Controller) JumpTo(i int) bool {
	return c.setStep(i)
}

// Reset returns to the first waypoint and clears geofence and completion state. Mode is kept.
func (c *Controller) Reset() {
	c.step = 0
	c.geofenced = -1
	c.celebrate = false
	c.offRoute = false
	c.recenter = false
}

// SetMode switches between live and virtual. Entering virtual restarts the tour from
// the first waypoint and forgets the visitor's location; entering live re-arms geofencing.
func (c *Controller) SetMode(m domain.Mode) (bool, error) {
	if _, err := domain.ParseMode(string(m)); err != nil {
		return false, err
	}
	if m == c.mode {
		return false, nil
	}
	c.mode = m

	switch m {
	case domain.ModeVirtual:
		c.userLocation = nil
		c.geofenced = -1
		c.offRoute = false
		c.locationErr = false
		c.recenter = false
		c.celebrate = false
		c.step = 0
	case domain.ModeLive:
		c.lastSample = time.Time{}
	}
	return true, nil
}

// OnLocationSample evaluates a geolocation reading against every waypoint geofence.
// The nearest waypoint within the radius wins; exact ties go to the lowest index.
func (c *Controller) OnLocationSample(s domain.LocationSample) Outcome {
	if c.mode != domain.ModeLive {
		return SampleIgnored
	}
	if s.Error != "" {
		c.locationErr = true
		return SampleFailed
	}
	// A sample older than the last accepted one means the clock moved back;
	// it restarts the window instead of throttling until time catches up.
	if !c.lastSample.IsZero() {
		if d := s.Timestamp.Sub(c.lastSample); d >= 0 && d < c.opts.MinSampleInterval {
			return SampleThrottled
		}
	}
	c.lastSample = s.Timestamp

	loc := s.Point
	c.userLocation = &loc
	c.locationErr = false

	idx, dist := geospatial.Nearest(loc, c.coords)
	if dist >= c.opts.GeofenceRadius {
		c.geofenced = -1
		c.offRoute = true
		return SampleOffRoute
	}

	c.offRoute = false
	if idx == c.geofenced {
		return SampleInside
	}
	c.geofenced = idx
	c.setStep(idx)
	return SampleEntered
}

// OnLocationError records a sensor failure. Progress is left untouched.
func (c *Controller) OnLocationError() {
	if c.mode == domain.ModeLive {
		c.locationErr = true
	}
}

// Recenter asks the presentation layer to point at the visitor until the step changes.
// It reports false when there is no live location to center on.
func (c *Controller) Recenter() bool {
	if c.mode != domain.ModeLive || c.userLocation == nil {
		return false
	}
	c.recenter = true
	return true
}

// SetRoute installs freshly fetched legs.
func (c *Controller) SetRoute(legs []domain.RouteLeg) {
	c.legs = legs
	c.routeFailed = false
}

// SetRouteFailed drops any legs; instruction lookups fall back to NoDirections.
func (c *Controller) SetRouteFailed() {
	c.legs = nil
	c.routeFailed = true
}

// State returns a snapshot of the current progress.
func (c *Controller) State() State {
	s := State{
		CurrentStep:         c.step,
		Mode:                c.mode,
		Completed:           c.step == c.last(),
		Celebrate:           c.celebrate,
		OffRoute:            c.offRoute,
		LocationUnavailable: c.locationErr,
		DirectionsAvailable: len(c.legs) > 0,
		RouteFailed:         c.routeFailed,
	}
	if c.userLocation != nil {
		loc := *c.userLocation
		s.UserLocation = &loc
	}
	if c.geofenced >= 0 {
		g := c.geofenced
		s.GeofencedIndex = &g
	}
	return s
}

// View builds the step card read model for the current waypoint.
func (c *Controller) View() StepView {
	total := len(c.coords)
	spot := c.step + 1
	remaining := max(total-spot, 0)

	wp := c.tour.Waypoints[c.step]
	cam := Camera{Target: wp.Coordinate, Source: CameraWaypoint}
	if c.recenter && c.mode == domain.ModeLive && c.userLocation != nil {
		cam = Camera{Target: *c.userLocation, Source: CameraUser}
	}

	return StepView{
		State:          c.State(),
		Waypoint:       wp,
		Spot:           spot,
		Total:          total,
		Remaining:      remaining,
		RemainingLabel: RemainingLabel(remaining),
		IsFirst:        c.step == 0,
		IsLast:         c.step == c.last(),
		Offset:         OffsetForStep(c.legs, c.step),
		Instruction:    InstructionFor(c.legs, c.step),
		Instructions:   StepInstructions(c.legs, c.step),
		Camera:         cam,
	}
}
