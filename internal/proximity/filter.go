package proximity

import (
	"context"
)

// FilterWithinRadius flags each incident that lies strictly within radius
// meters of at least one station. The mask is the union of per-station
// membership, so station order does not affect it, and its length always
// equals len(incidents). Incidents or stations with invalid coordinates never
// match and are reported in Stats.
func FilterWithinRadius(ctx context.Context, incidents []Incident, stations []Station, radius float64, opts ...Option) (Mask, Stats, error) {
	cfg := newScanConfig(opts)
	mask := make(Mask, len(incidents))

	stats, err := scan(ctx, incidents, stations, radius, cfg, func(_, i int) {
		mask[i] = true
	})
	if err != nil {
		return nil, stats, err
	}
	return mask, stats, nil
}
