package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/pkg/metrics"
	"github.com/campustour/campustour/internal/pkg/telemetry"
)

// ErrNoRoute is returned when the provider answers without a usable route.
var ErrNoRoute = errors.New("directions: no route")

// Config points the client at a Mapbox Directions compatible endpoint.
type Config struct {
	BaseURL     string
	Owner       string // "mapbox"
	AccessToken string
	Timeout     time.Duration
}

// Client implements ports.DirectionsProvider over the Directions v5 HTTP API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a directions client.
func New(cfg Config) *Client {
	if cfg.Owner == "" {
		cfg.Owner = "mapbox"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type apiResponse struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Routes  []apiRoute `json:"routes"`
}

type apiRoute struct {
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Legs     []apiLeg `json:"legs"`
}

type apiLeg struct {
	Summary  string    `json:"summary"`
	Distance float64   `json:"distance"`
	Duration float64   `json:"duration"`
	Steps    []apiStep `json:"steps"`
}

type apiStep struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Maneuver struct {
		Instruction string     `json:"instruction"`
		Type        string     `json:"type"`
		Modifier    string     `json:"modifier"`
		Location    [2]float64 `json:"location"`
	} `json:"maneuver"`
	Geometry struct {
		Coordinates [][2]float64 `json:"coordinates"`
	} `json:"geometry"`
}

// Directions requests a walking route through coords in order. Fewer than two
// coordinates need no request and produce a route without legs.
func (c *Client) Directions(ctx context.Context, coords []domain.GeoPoint, profile string) (*domain.Route, error) {
	route := &domain.Route{Profile: profile, FetchedAt: time.Now().UTC()}
	if len(coords) < 2 {
		return route, nil
	}
	if len(coords) > domain.MaxWaypoints {
		return nil, fmt.Errorf("directions: %w", domain.ErrTooManyWaypoints)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "directions.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("directions.profile", profile),
		attribute.Int("directions.coordinates", len(coords)),
	)

	start := time.Now()
	resp, err := c.fetch(ctx, coords, profile)
	metrics.RouteFetchDuration.WithLabelValues(profile).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RouteFetchErrors.WithLabelValues(profile).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r := resp.Routes[0]
	if len(r.Legs) != len(coords)-1 {
		metrics.RouteFetchErrors.WithLabelValues(profile).Inc()
		err := fmt.Errorf("%w: got %d legs for %d coordinates", ErrNoRoute, len(r.Legs), len(coords))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	route.Distance = r.Distance
	route.Duration = r.Duration
	route.Legs = make([]domain.RouteLeg, len(r.Legs))
	for i, l := range r.Legs {
		route.Legs[i] = convertLeg(l)
	}
	return route, nil
}

func (c *Client) fetch(ctx context.Context, coords []domain.GeoPoint, profile string) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(coords, profile), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET directions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d from directions", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode directions: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from directions: %s", resp.StatusCode, out.Message)
	}
	if out.Code != "" && out.Code != "Ok" {
		return nil, fmt.Errorf("%w: %s %s", ErrNoRoute, out.Code, out.Message)
	}
	if len(out.Routes) == 0 {
		return nil, ErrNoRoute
	}
	return &out, nil
}

func (c *Client) requestURL(coords []domain.GeoPoint, profile string) string {
	pairs := make([]string, len(coords))
	for i, p := range coords {
		pairs[i] = strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
	}

	q := url.Values{}
	q.Set("steps", "true")
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	if c.cfg.AccessToken != "" {
		q.Set("access_token", c.cfg.AccessToken)
	}

	return fmt.Sprintf("%s/directions/v5/%s/%s/%s?%s",
		c.cfg.BaseURL, c.cfg.Owner, url.PathEscape(profile),
		strings.Join(pairs, ";"), q.Encode())
}

func convertLeg(l apiLeg) domain.RouteLeg {
	leg := domain.RouteLeg{
		Summary:  l.Summary,
		Distance: l.Distance,
		Duration: l.Duration,
		Steps:    make([]domain.ManeuverStep, len(l.Steps)),
	}
	for i, s := range l.Steps {
		step := domain.ManeuverStep{
			Instruction: s.Maneuver.Instruction,
			Location:    domain.GeoPoint{Lon: s.Maneuver.Location[0], Lat: s.Maneuver.Location[1]},
			Type:        s.Maneuver.Type,
			Modifier:    s.Maneuver.Modifier,
			Name:        s.Name,
			Distance:    s.Distance,
			Duration:    s.Duration,
		}
		if len(s.Geometry.Coordinates) > 0 {
			step.Geometry = make([]domain.GeoPoint, len(s.Geometry.Coordinates))
			for j, c := range s.Geometry.Coordinates {
				step.Geometry[j] = domain.GeoPoint{Lon: c[0], Lat: c[1]}
			}
		}
		leg.Steps[i] = step
	}
	return leg
}
