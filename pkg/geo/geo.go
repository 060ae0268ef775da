// Package geo holds the great-circle math every proximity decision is built on.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is a finite point inside the lat/lng ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// DistanceKm returns the Haversine distance between a and b in kilometers.
func DistanceKm(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h slightly past 1 for antipodal points
	h = math.Min(1, h)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Offset returns the point reached by moving northKm north and eastKm east of c.
// It is a flat-earth approximation that holds for the few-kilometer radii used here.
func Offset(c Coordinate, northKm, eastKm float64) Coordinate {
	dLat := northKm / EarthRadiusKm
	dLng := eastKm / (EarthRadiusKm * math.Cos(toRad(c.Lat)))
	return Coordinate{
		Lat: c.Lat + dLat*180/math.Pi,
		Lng: c.Lng + dLng*180/math.Pi,
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
