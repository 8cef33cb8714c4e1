// Package geo provides great-circle distance functions for point-in-radius tests.
package geo

import (
	"math"

	"github.com/tidwall/geodesic"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6_371_000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceFunc returns the distance in meters between two points.
type DistanceFunc func(a, b Point) float64

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Haversine returns the great-circle distance in meters between a and b on a
// sphere of radius EarthRadiusMeters.
func Haversine(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(b.Lon) - toRadians(a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(math.Min(h, 1)))
}

// Radians holds a set of points pre-converted to radians so that repeated
// one-to-many scans do not redo the conversion per reference point.
type Radians struct {
	lat    []float64
	lon    []float64
	cosLat []float64
}

// NewRadians converts points to radians once.
func NewRadians(points []Point) *Radians {
	r := &Radians{
		lat:    make([]float64, len(points)),
		lon:    make([]float64, len(points)),
		cosLat: make([]float64, len(points)),
	}
	for i, p := range points {
		r.lat[i] = toRadians(p.Lat)
		r.lon[i] = toRadians(p.Lon)
		r.cosLat[i] = math.Cos(r.lat[i])
	}
	return r
}

// Len returns the number of points.
func (r *Radians) Len() int { return len(r.lat) }

// DistancesTo writes the haversine distance from every point to fixed into
// dst, which must have length Len(). It returns dst.
func (r *Radians) DistancesTo(fixed Point, dst []float64) []float64 {
	lat2 := toRadians(fixed.Lat)
	lon2 := toRadians(fixed.Lon)
	cosLat2 := math.Cos(lat2)

	for i := range r.lat {
		sLat := math.Sin((r.lat[i] - lat2) / 2)
		sLon := math.Sin((r.lon[i] - lon2) / 2)
		h := sLat*sLat + r.cosLat[i]*cosLat2*sLon*sLon
		dst[i] = 2 * EarthRadiusMeters * math.Asin(math.Sqrt(math.Min(h, 1)))
	}
	return dst
}

// HaversineMany returns the haversine distance from each point to fixed.
func HaversineMany(points []Point, fixed Point) []float64 {
	r := NewRadians(points)
	return r.DistancesTo(fixed, make([]float64, r.Len()))
}

// Geodesic returns the WGS84 ellipsoidal distance in meters between a and b.
func Geodesic(a, b Point) float64 {
	var s12, azi1, azi2 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &s12, &azi1, &azi2)
	return s12
}

// ValidCoordinate reports whether lat/lon are finite and inside the WGS84
// degree ranges.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Valid reports whether p is a usable coordinate.
func (p Point) Valid() bool {
	return ValidCoordinate(p.Lat, p.Lon)
}
