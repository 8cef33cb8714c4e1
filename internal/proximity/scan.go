package proximity

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metro-proximity/internal/geo"
)

// scanner holds the valid incidents of one scan, pre-converted for the
// distance method in use.
type scanner struct {
	method geo.Method
	points []geo.Point
	index  []int // position in points -> position in the caller's incident slice
	rad    *geo.Radians
	dist   []float64
}

func newScanner(incidents []Incident, method geo.Method) (*scanner, int) {
	s := &scanner{
		method: method,
		points: make([]geo.Point, 0, len(incidents)),
		index:  make([]int, 0, len(incidents)),
	}
	var skipped int
	for i, inc := range incidents {
		p := inc.Point()
		if !p.Valid() {
			skipped++
			continue
		}
		s.points = append(s.points, p)
		s.index = append(s.index, i)
	}
	if method == geo.MethodHaversine {
		s.rad = geo.NewRadians(s.points)
		s.dist = make([]float64, len(s.points))
	}
	return s, skipped
}

// within calls hit with the incident position of every incident strictly
// closer than radius to center.
func (s *scanner) within(center geo.Point, radius float64, hit func(int)) {
	if s.rad != nil {
		for j, d := range s.rad.DistancesTo(center, s.dist) {
			if d < radius {
				hit(s.index[j])
			}
		}
		return
	}
	dist := s.method.Func()
	for j, p := range s.points {
		if dist(p, center) < radius {
			hit(s.index[j])
		}
	}
}

// scan runs the station loop shared by the filter and the aggregator. The
// context is checked once per station.
func scan(ctx context.Context, incidents []Incident, stations []Station, radius float64, cfg scanConfig, hit func(station, incident int)) (Stats, error) {
	stats := Stats{Incidents: len(incidents), Stations: len(stations)}
	if err := validateRadius(radius); err != nil {
		return stats, err
	}

	sc, skipped := newScanner(incidents, cfg.method)
	stats.SkippedIncidents = skipped

	for si, st := range stations {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrapf(err, "proximity: scan interrupted after %d of %d stations", si, len(stations))
		}
		center := st.Point()
		if center.Valid() {
			sc.within(center, radius, func(i int) { hit(si, i) })
		} else {
			stats.SkippedStations++
		}
		cfg.report(si+1, len(stations), st.ID)
	}
	return stats, nil
}
