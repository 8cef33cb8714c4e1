// Package proximity matches incidents to reference stations by distance.
//
// Both scans are brute force: every incident is tested against every station,
// O(N_incidents × N_stations) distance evaluations. Station sets are small
// (tens to a few hundred), so no spatial index is built.
package proximity

import (
	"github.com/sells-group/metro-proximity/internal/geo"
)

// DefaultRadiusMeters is the proximity threshold used when none is configured.
const DefaultRadiusMeters = 300.0

// Incident is a single geolocated event. Row is the 1-based source row, kept
// for diagnostics only.
type Incident struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Borough string  `json:"borough,omitempty"`
	Row     int     `json:"row,omitempty"`
}

// Point returns the incident location.
func (i Incident) Point() geo.Point { return geo.Point{Lat: i.Lat, Lon: i.Lon} }

// Station is a reference point. ID is unique and case-sensitive.
type Station struct {
	ID   string  `json:"id"`
	Line string  `json:"line,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Point returns the station location.
func (s Station) Point() geo.Point { return geo.Point{Lat: s.Lat, Lon: s.Lon} }

// StationCount is the number of incidents within radius of one station.
type StationCount struct {
	StationID string `json:"station_id" yaml:"station_id"`
	Line      string `json:"line,omitempty" yaml:"line,omitempty"`
	Count     int    `json:"count" yaml:"count"`
}

// Counts holds one entry per station, in station order.
type Counts []StationCount

// Total sums all counts.
func (c Counts) Total() int {
	var n int
	for _, sc := range c {
		n += sc.Count
	}
	return n
}

// ByID returns the counts keyed by station ID.
func (c Counts) ByID() map[string]int {
	m := make(map[string]int, len(c))
	for _, sc := range c {
		m[sc.StationID] = sc.Count
	}
	return m
}

// Mask flags, per incident, whether it lies within radius of any station.
type Mask []bool

// Matched returns the number of true entries.
func (m Mask) Matched() int {
	var n int
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// Apply returns the incidents whose mask entry is true. The input slice is
// not modified.
func (m Mask) Apply(incidents []Incident) []Incident {
	out := make([]Incident, 0, m.Matched())
	for i, v := range m {
		if v && i < len(incidents) {
			out = append(out, incidents[i])
		}
	}
	return out
}

// Stats describes rows excluded from a scan.
type Stats struct {
	Incidents        int `json:"incidents"`
	Stations         int `json:"stations"`
	SkippedIncidents int `json:"skipped_incidents"`
	SkippedStations  int `json:"skipped_stations"`
}

// Progress is emitted after each station is scanned.
type Progress struct {
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	StationID string `json:"station_id"`
}

// Fraction returns completion in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Done) / float64(p.Total)
}
