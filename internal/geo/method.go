package geo

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Method names a distance implementation.
type Method string

// Supported distance methods.
const (
	MethodHaversine Method = "haversine"
	MethodGeodesic  Method = "geodesic"
)

// ParseMethod validates a method name. Empty input selects haversine.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodHaversine:
		return MethodHaversine, nil
	case MethodGeodesic:
		return MethodGeodesic, nil
	default:
		return "", eris.Errorf("geo: unknown distance method %q", s)
	}
}

// Func returns the pairwise distance function for m.
func (m Method) Func() DistanceFunc {
	if m == MethodGeodesic {
		return Geodesic
	}
	return Haversine
}

func (m Method) String() string { return string(m) }
