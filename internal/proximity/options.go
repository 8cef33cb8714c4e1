package proximity

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metro-proximity/internal/geo"
)

// ProgressFunc receives scan progress. It must not retain the scan's inputs.
type ProgressFunc func(Progress)

// Option configures a scan.
type Option func(*scanConfig)

type scanConfig struct {
	method   geo.Method
	progress ProgressFunc
}

// WithMethod selects the distance implementation. Haversine uses the
// vectorised one-to-many scan; geodesic evaluates each pair on the WGS84
// ellipsoid.
func WithMethod(m geo.Method) Option {
	return func(c *scanConfig) {
		c.method = m
	}
}

// WithProgress registers a callback invoked after each station.
func WithProgress(fn ProgressFunc) Option {
	return func(c *scanConfig) {
		c.progress = fn
	}
}

func newScanConfig(opts []Option) scanConfig {
	c := scanConfig{method: geo.MethodHaversine}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c scanConfig) report(done, total int, stationID string) {
	if c.progress != nil {
		c.progress(Progress{Done: done, Total: total, StationID: stationID})
	}
}

func validateRadius(radius float64) error {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return eris.Wrapf(ErrInvalidRadius, "got %v", radius)
	}
	return nil
}
