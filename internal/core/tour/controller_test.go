package tour_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/core/tour"
)

var t0 = time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

// lineTour places n waypoints 0.001° of latitude (~111 m) apart along the prime meridian.
func lineTour(n int) *domain.Tour {
	t := &domain.Tour{Slug: "test", Name: "Test Tour"}
	for i := 0; i < n; i++ {
		t.Waypoints = append(t.Waypoints, domain.Waypoint{
			Name:       "Stop " + string(rune('A'+i)),
			Coordinate: domain.GeoPoint{Lon: 0, Lat: float64(i) * 0.001},
		})
	}
	return t
}

func newController(t *testing.T, n int) *tour.Controller {
	t.Helper()
	c, err := tour.NewController(lineTour(n), tour.Options{GeofenceRadius: 20, MinSampleInterval: 3 * time.Second})
	require.NoError(t, err)
	return c
}

func sampleAt(lat float64, at time.Time) domain.LocationSample {
	return domain.LocationSample{Point: domain.GeoPoint{Lon: 0, Lat: lat}, Timestamp: at}
}

func TestNewController_Validation(t *testing.T) {
	_, err := tour.NewController(nil, tour.Options{GeofenceRadius: 20})
	assert.ErrorIs(t, err, domain.ErrEmptyTour)

	_, err = tour.NewController(&domain.Tour{}, tour.Options{GeofenceRadius: 20})
	assert.ErrorIs(t, err, domain.ErrEmptyTour)

	_, err = tour.NewController(lineTour(3), tour.Options{GeofenceRadius: 0})
	assert.Error(t, err)

	bad := lineTour(2)
	bad.Waypoints[1].Coordinate.Lat = 91
	_, err = tour.NewController(bad, tour.Options{GeofenceRadius: 20})
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}

func TestController_InitialState(t *testing.T) {
	c := newController(t, 5)
	s := c.State()

	assert.Equal(t, 0, s.CurrentStep)
	assert.Equal(t, domain.ModeLive, s.Mode)
	assert.Nil(t, s.GeofencedIndex)
	assert.Nil(t, s.UserLocation)
	assert.False(t, s.Completed)
}

func TestController_StepStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 1; n <= 8; n++ {
		c := newController(t, n)
		for i := 0; i < 500; i++ {
			if rng.Intn(2) == 0 {
				c.Advance()
			} else {
				c.Retreat()
			}
			s := c.State()
			require.GreaterOrEqual(t, s.CurrentStep, 0)
			require.LessOrEqual(t, s.CurrentStep, n-1)
			require.Equal(t, s.CurrentStep == n-1, s.Completed)
		}
	}
}

func TestController_AdvanceIdempotentAtLast(t *testing.T) {
	c := newController(t, 3)
	assert.True(t, c.Advance())
	assert.True(t, c.Advance())

	before := c.State()
	for i := 0; i < 5; i++ {
		assert.False(t, c.Advance())
		assert.Equal(t, before, c.State())
	}
	assert.True(t, before.Completed)
}

func TestController_RetreatNoOpAtFirst(t *testing.T) {
	c := newController(t, 3)
	assert.False(t, c.Retreat())
	assert.Equal(t, 0, c.State().CurrentStep)
}

func TestController_CelebrateFlag(t *testing.T) {
	c := newController(t, 3)
	c.Advance()
	assert.False(t, c.State().Celebrate)

	c.Advance()
	assert.True(t, c.State().Celebrate)

	c.Retreat()
	assert.False(t, c.State().Celebrate, "leaving the last stop clears the celebration")

	c.Advance()
	assert.True(t, c.State().Celebrate)
	c.Reset()
	assert.False(t, c.State().Celebrate)
}

func TestController_ResetFromAnyState(t *testing.T) {
	c := newController(t, 4)
	c.OnLocationSample(sampleAt(0.002, t0))
	require.Equal(t, 2, c.State().Geofenced())

	c.Reset()
	s := c.State()
	assert.Equal(t, 0, s.CurrentStep)
	assert.Nil(t, s.GeofencedIndex)
	assert.Equal(t, domain.ModeLive, s.Mode)

	_, err := c.SetMode(domain.ModeVirtual)
	require.NoError(t, err)
	c.Advance()
	c.Reset()
	assert.Equal(t, 0, c.State().CurrentStep)
	assert.Equal(t, domain.ModeVirtual, c.State().Mode, "reset keeps the mode")
}

func TestController_GeofenceEntryOverridesStep(t *testing.T) {
	c := newController(t, 3)
	require.Equal(t, 0, c.State().CurrentStep)

	out := c.OnLocationSample(sampleAt(0.002+0.00005, t0))
	assert.Equal(t, tour.SampleEntered, out)

	s := c.State()
	require.NotNil(t, s.GeofencedIndex)
	assert.Equal(t, 2, *s.GeofencedIndex)
	assert.Equal(t, 2, s.CurrentStep)
	assert.True(t, s.Completed)
	assert.True(t, s.Celebrate)
	require.NotNil(t, s.UserLocation)
}

func TestController_SameGeofenceKeepsManualNavigation(t *testing.T) {
	c := newController(t, 4)
	c.OnLocationSample(sampleAt(0.001, t0))
	require.Equal(t, 1, c.State().CurrentStep)

	c.Advance()
	out := c.OnLocationSample(sampleAt(0.001, t0.Add(5*time.Second)))

	assert.Equal(t, tour.SampleInside, out)
	assert.Equal(t, 2, c.State().CurrentStep)
	assert.Equal(t, 1, c.State().Geofenced())
}

func TestController_OffRoute(t *testing.T) {
	c := newController(t, 3)
	c.OnLocationSample(sampleAt(0.001, t0))
	require.Equal(t, 1, c.State().Geofenced())

	out := c.OnLocationSample(sampleAt(0.0005, t0.Add(5*time.Second)))
	assert.Equal(t, tour.SampleOffRoute, out)

	s := c.State()
	assert.Nil(t, s.GeofencedIndex)
	assert.True(t, s.OffRoute)
	assert.Equal(t, 1, s.CurrentStep, "wandering off keeps the last step")

	c.OnLocationSample(sampleAt(0.001, t0.Add(10*time.Second)))
	assert.False(t, c.State().OffRoute)
}

func TestController_GeofenceTieBreak(t *testing.T) {
	tr := &domain.Tour{Slug: "tie", Name: "Tie", Waypoints: []domain.Waypoint{
		{Name: "Far", Coordinate: domain.GeoPoint{Lon: 0, Lat: 0.01}},
		{Name: "North", Coordinate: domain.GeoPoint{Lon: 0, Lat: 0.0001}},
		{Name: "Also far", Coordinate: domain.GeoPoint{Lon: 0, Lat: 0.02}},
		{Name: "South", Coordinate: domain.GeoPoint{Lon: 0, Lat: -0.0001}},
	}}
	c, err := tour.NewController(tr, tour.Options{GeofenceRadius: 20})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		c.OnLocationSample(sampleAt(0, t0.Add(time.Duration(i)*time.Second)))
		assert.Equal(t, 1, c.State().Geofenced(), "evaluation %d", i)
	}
}

func TestController_SetModeVirtualRestarts(t *testing.T) {
	c := newController(t, 6)
	c.OnLocationSample(sampleAt(0.004, t0))
	require.Equal(t, 4, c.State().CurrentStep)

	changed, err := c.SetMode(domain.ModeVirtual)
	require.NoError(t, err)
	assert.True(t, changed)

	s := c.State()
	assert.Equal(t, 0, s.CurrentStep)
	assert.Nil(t, s.GeofencedIndex)
	assert.Nil(t, s.UserLocation)
	assert.Equal(t, domain.ModeVirtual, s.Mode)
}

func TestController_SampleIgnoredInVirtual(t *testing.T) {
	c := newController(t, 4)
	_, err := c.SetMode(domain.ModeVirtual)
	require.NoError(t, err)
	c.Advance()
	before := c.State()

	assert.Equal(t, tour.SampleIgnored, c.OnLocationSample(sampleAt(0.003, t0)))
	assert.Equal(t, tour.SampleIgnored, c.OnLocationSample(domain.LocationSample{Error: domain.SensorTimeout}))
	assert.Equal(t, before, c.State())
}

func TestController_SetModeLiveRearmsGeofence(t *testing.T) {
	c := newController(t, 4)
	c.OnLocationSample(sampleAt(0.001, t0))
	_, _ = c.SetMode(domain.ModeVirtual)

	changed, err := c.SetMode(domain.ModeLive)
	require.NoError(t, err)
	assert.True(t, changed)

	// Same timestamp as the last accepted sample: not throttled after re-arming.
	assert.Equal(t, tour.SampleEntered, c.OnLocationSample(sampleAt(0.003, t0)))
	assert.Equal(t, 3, c.State().CurrentStep)
}

func TestController_SetModeSameOrInvalid(t *testing.T) {
	c := newController(t, 3)
	c.Advance()

	changed, err := c.SetMode(domain.ModeLive)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, c.State().CurrentStep)

	_, err = c.SetMode("teleport")
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestController_Throttle(t *testing.T) {
	c := newController(t, 4)
	assert.Equal(t, tour.SampleEntered, c.OnLocationSample(sampleAt(0.001, t0)))
	assert.Equal(t, tour.SampleThrottled, c.OnLocationSample(sampleAt(0.003, t0.Add(time.Second))))
	assert.Equal(t, 1, c.State().CurrentStep)

	assert.Equal(t, tour.SampleEntered, c.OnLocationSample(sampleAt(0.003, t0.Add(3*time.Second))))
	assert.Equal(t, 3, c.State().CurrentStep)
}

func TestController_ThrottleAfterClockJump(t *testing.T) {
	c := newController(t, 4)
	assert.Equal(t, tour.SampleEntered, c.OnLocationSample(sampleAt(0.001, t0.Add(time.Hour))))

	// Samples behind the last accepted one still geofence.
	assert.Equal(t, tour.SampleEntered, c.OnLocationSample(sampleAt(0.003, t0.Add(time.Minute))))
	assert.Equal(t, 3, c.State().CurrentStep)

	// The window restarts from the earlier sample.
	assert.Equal(t, tour.SampleThrottled, c.OnLocationSample(sampleAt(0.002, t0.Add(time.Minute+time.Second))))
	assert.Equal(t, tour.SampleEntered, c.OnLocationSample(sampleAt(0.002, t0.Add(2*time.Minute))))
	assert.Equal(t, 2, c.State().CurrentStep)
}

func TestController_LocationErrorKeepsState(t *testing.T) {
	c := newController(t, 4)
	c.OnLocationSample(sampleAt(0.002, t0))
	before := c.State()

	out := c.OnLocationSample(domain.LocationSample{Error: domain.SensorPermissionDenied})
	assert.Equal(t, tour.SampleFailed, out)

	s := c.State()
	assert.True(t, s.LocationUnavailable)
	assert.Equal(t, before.CurrentStep, s.CurrentStep)
	assert.Equal(t, before.GeofencedIndex, s.GeofencedIndex)

	c.OnLocationSample(sampleAt(0.002, t0.Add(10*time.Second)))
	assert.False(t, c.State().LocationUnavailable)
}

func TestController_JumpToClamps(t *testing.T) {
	c := newController(t, 3)
	assert.True(t, c.JumpTo(2))
	assert.Equal(t, 2, c.State().CurrentStep)
	assert.True(t, c.JumpTo(-4))
	assert.Equal(t, 0, c.State().CurrentStep)
	assert.True(t, c.JumpTo(99))
	assert.Equal(t, 2, c.State().CurrentStep)
	assert.False(t, c.JumpTo(2))
}

func TestController_ViewAndDirections(t *testing.T) {
	c := newController(t, 3)
	v := c.View()
	assert.Equal(t, 1, v.Spot)
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, 2, v.Remaining)
	assert.Equal(t, "2 steps remaining", v.RemainingLabel)
	assert.True(t, v.IsFirst)
	assert.Equal(t, tour.NoDirections, v.Instruction)
	assert.False(t, v.DirectionsAvailable)

	c.SetRoute(legsWithSteps(2, 3))
	c.Advance()
	v = c.View()
	assert.Equal(t, "1 step remaining", v.RemainingLabel)
	assert.Equal(t, 2, v.Offset)
	assert.Len(t, v.Instructions, 3)
	assert.Equal(t, "leg B step 0", v.Instruction)
	assert.True(t, v.DirectionsAvailable)

	c.Advance()
	v = c.View()
	assert.Equal(t, "Final step", v.RemainingLabel)
	assert.True(t, v.IsLast)
	assert.Equal(t, tour.NoDirections, v.Instruction)

	c.SetRouteFailed()
	c.Reset()
	v = c.View()
	assert.True(t, v.RouteFailed)
	assert.Equal(t, tour.NoDirections, v.Instruction)
}

func TestController_RecenterCamera(t *testing.T) {
	c := newController(t, 3)
	assert.False(t, c.Recenter(), "no location yet")

	c.OnLocationSample(sampleAt(0.0005, t0))
	require.True(t, c.Recenter())

	v := c.View()
	assert.Equal(t, tour.CameraUser, v.Camera.Source)
	assert.InDelta(t, 0.0005, v.Camera.Target.Lat, 1e-12)

	c.Advance()
	v = c.View()
	assert.Equal(t, tour.CameraWaypoint, v.Camera.Source)
	assert.InDelta(t, 0.001, v.Camera.Target.Lat, 1e-12)
}
