package geospatial

import "github.com/campustour/campustour/internal/core/domain"

// Cumulative returns the running distance in meters at each vertex of a path.
func Cumulative(path []domain.GeoPoint) []float64 {
	cum := make([]float64, len(path))
	for i := 1; i < len(path); i++ {
		cum[i] = cum[i-1] + Distance(path[i-1], path[i])
	}
	return cum
}

// Interpolate returns the point dist meters along path. cum must come from
// Cumulative(path). Distances outside the path clamp to its ends.
func Interpolate(path []domain.GeoPoint, cum []float64, dist float64) domain.GeoPoint {
	n := len(path)
	if n == 0 {
		return domain.GeoPoint{}
	}
	if dist <= 0 || cum[n-1] == 0 {
		return path[0]
	}
	if dist >= cum[n-1] {
		return path[n-1]
	}

	i := 1
	for i < n && cum[i] < dist {
		i++
	}
	d0, d1 := cum[i-1], cum[i]
	p0, p1 := path[i-1], path[i]
	if d1 == d0 {
		return p0
	}
	frac := (dist - d0) / (d1 - d0)
	return domain.GeoPoint{
		Lon: p0.Lon + (p1.Lon-p0.Lon)*frac,
		Lat: p0.Lat + (p1.Lat-p0.Lat)*frac,
	}
}
