package geospatial

import (
	"math"

	"github.com/campustour/campustour/internal/core/domain"
)

// EarthRadiusMeters is the mean Earth radius of the spherical approximation.
const EarthRadiusMeters = 6371000.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Distance is Haversine over two GeoPoints.
func Distance(a, b domain.GeoPoint) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Nearest returns the index of the point closest to p and its distance in meters.
// Scanning is in ascending index with a strict comparison, so exact ties resolve to the lowest index.
// It returns -1 for an empty slice.
func Nearest(p domain.GeoPoint, points []domain.GeoPoint) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, q := range points {
		if d := Distance(p, q); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
