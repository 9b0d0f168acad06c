package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/core/tour"
)

// buildSchema creates the read-only GraphQL schema over the tour and its sessions.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lon": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{Type: graphql.Float},
		},
	})

	waypointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Waypoint",
		Fields: graphql.Fields{
			"index":             &graphql.Field{Type: graphql.Int},
			"name":              &graphql.Field{Type: graphql.String},
			"description":       &graphql.Field{Type: graphql.String},
			"short_description": &graphql.Field{Type: graphql.String},
			"images":            &graphql.Field{Type: graphql.NewList(graphql.String)},
			"coordinate":        &graphql.Field{Type: geoPointType},
		},
	})

	tourType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Tour",
		Fields: graphql.Fields{
			"slug":      &graphql.Field{Type: graphql.String},
			"name":      &graphql.Field{Type: graphql.String},
			"welcome":   &graphql.Field{Type: graphql.String},
			"version":   &graphql.Field{Type: graphql.String},
			"waypoints": &graphql.Field{Type: graphql.Int},
		},
	})

	maneuverType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Maneuver",
		Fields: graphql.Fields{
			"instruction": &graphql.Field{Type: graphql.String},
			"type":        &graphql.Field{Type: graphql.String},
			"modifier":    &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"distance":    &graphql.Field{Type: graphql.Float},
			"duration":    &graphql.Field{Type: graphql.Float},
			"location":    &graphql.Field{Type: geoPointType},
		},
	})

	legType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Leg",
		Fields: graphql.Fields{
			"from":     &graphql.Field{Type: graphql.Int},
			"distance": &graphql.Field{Type: graphql.Float},
			"duration": &graphql.Field{Type: graphql.Float},
			"summary":  &graphql.Field{Type: graphql.String},
			"steps":    &graphql.Field{Type: graphql.NewList(maneuverType)},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"tour_version": &graphql.Field{Type: graphql.String},
			"profile":      &graphql.Field{Type: graphql.String},
			"distance":     &graphql.Field{Type: graphql.Float},
			"duration":     &graphql.Field{Type: graphql.Float},
			"legs":         &graphql.Field{Type: graphql.NewList(legType)},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"session_id":           &graphql.Field{Type: graphql.String},
			"current_step":         &graphql.Field{Type: graphql.Int},
			"mode":                 &graphql.Field{Type: graphql.String},
			"completed":            &graphql.Field{Type: graphql.Boolean},
			"off_route":            &graphql.Field{Type: graphql.Boolean},
			"location_unavailable": &graphql.Field{Type: graphql.Boolean},
			"directions_available": &graphql.Field{Type: graphql.Boolean},
			"geofenced_index":      &graphql.Field{Type: graphql.Int},
			"remaining_label":      &graphql.Field{Type: graphql.String},
			"instruction":          &graphql.Field{Type: graphql.String},
			"waypoint":             &graphql.Field{Type: waypointType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"tour": &graphql.Field{
				Type:        tourType,
				Description: "The loaded tour",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t := deps.Tours.Tour()
					return map[string]interface{}{
						"slug":      t.Slug,
						"name":      t.Name,
						"welcome":   t.Welcome,
						"version":   t.Version(),
						"waypoints": t.Len(),
					}, nil
				},
			},
			"waypoints": &graphql.Field{
				Type:        graphql.NewList(waypointType),
				Description: "Waypoints in visiting order",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					wps := deps.Tours.Tour().Waypoints
					out := make([]map[string]interface{}, len(wps))
					for i, w := range wps {
						out[i] = waypointMap(i, w)
					}
					return out, nil
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Walking route through every waypoint",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					r, err := deps.Tours.Route(p.Context)
					if err != nil {
						return nil, err
					}
					legs := make([]map[string]interface{}, len(r.Legs))
					for i, l := range r.Legs {
						steps := make([]map[string]interface{}, len(l.Steps))
						for j, s := range l.Steps {
							steps[j] = map[string]interface{}{
								"instruction": s.Instruction,
								"type":        s.Type,
								"modifier":    s.Modifier,
								"name":        s.Name,
								"distance":    s.Distance,
								"duration":    s.Duration,
								"location":    pointMap(s.Location),
							}
						}
						legs[i] = map[string]interface{}{
							"from":     i,
							"distance": l.Distance,
							"duration": l.Duration,
							"summary":  l.Summary,
							"steps":    steps,
						}
					}
					return map[string]interface{}{
						"tour_version": r.TourVersion,
						"profile":      r.Profile,
						"distance":     r.Distance,
						"duration":     r.Duration,
						"legs":         legs,
					}, nil
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Current step card of an open session",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					sess, err := deps.Tours.Get(id)
					if err != nil {
						return nil, err
					}
					v, err := sess.View(p.Context)
					if err != nil {
						return nil, err
					}
					return sessionMap(id, v), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func pointMap(p domain.GeoPoint) map[string]interface{} {
	return map[string]interface{}{"lon": p.Lon, "lat": p.Lat}
}

func waypointMap(i int, w domain.Waypoint) map[string]interface{} {
	return map[string]interface{}{
		"index":             i,
		"name":              w.Name,
		"description":       w.Description,
		"short_description": w.ShortDescription,
		"images":            w.Images,
		"coordinate":        pointMap(w.Coordinate),
	}
}

func sessionMap(id string, v tour.StepView) map[string]interface{} {
	m := map[string]interface{}{
		"session_id":           id,
		"current_step":         v.CurrentStep,
		"mode":                 string(v.Mode),
		"completed":            v.Completed,
		"off_route":            v.OffRoute,
		"location_unavailable": v.LocationUnavailable,
		"directions_available": v.DirectionsAvailable,
		"remaining_label":      v.RemainingLabel,
		"instruction":          v.Instruction,
		"waypoint":             waypointMap(v.CurrentStep, v.Waypoint),
	}
	if v.GeofencedIndex != nil {
		m["geofenced_index"] = *v.GeofencedIndex
	}
	return m
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
