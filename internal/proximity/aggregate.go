package proximity

import (
	"context"
)

// AggregateCounts counts, for every station independently, the incidents
// strictly within radius meters. An incident near two stations is counted by
// both, so Counts.Total() can exceed the filter mask's match count.
//
// Every station gets an entry, including stations with invalid coordinates
// (count 0). An empty station set yields empty Counts and no error. Duplicate
// station IDs are rejected with ErrDuplicateStation.
func AggregateCounts(ctx context.Context, incidents []Incident, stations []Station, radius float64, opts ...Option) (Counts, Stats, error) {
	if err := CheckUniqueIDs(stationIDs(stations)); err != nil {
		return nil, Stats{Incidents: len(incidents), Stations: len(stations)}, err
	}

	cfg := newScanConfig(opts)
	counts := make(Counts, len(stations))
	for i, st := range stations {
		counts[i] = StationCount{StationID: st.ID, Line: st.Line}
	}

	stats, err := scan(ctx, incidents, stations, radius, cfg, func(si, _ int) {
		counts[si].Count++
	})
	if err != nil {
		return nil, stats, err
	}
	return counts, stats, nil
}
