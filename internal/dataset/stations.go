package dataset

import (
	"io"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metro-proximity/internal/proximity"
)

type stationRecord struct {
	ID   string `csv:"estacion"`
	Line string `csv:"linea"`
	Lat  string `csv:"latitud"`
	Lon  string `csv:"longitud"`
}

// LoadStations reads a station table from path.
func LoadStations(path string) ([]proximity.Station, LoadReport, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, LoadReport{}, err
	}
	return DecodeStations(t)
}

// DecodeStations converts a table into stations. Rows without a station name
// are dropped. A station whose coordinates are unusable is kept with NaN
// coordinates so it still receives a (zero) count; the scan skips it.
// Duplicate names return proximity.ErrDuplicateStation.
func DecodeStations(t *Table) ([]proximity.Station, LoadReport, error) {
	var report LoadReport
	if err := t.Require(ColStation, ColLatitude, ColLongitude); err != nil {
		return nil, report, eris.Wrap(err, "dataset: stations")
	}

	dec, err := t.decoder()
	if err != nil {
		return nil, report, err
	}

	var stations []proximity.Station
	for row := 1; ; row++ {
		var rec stationRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, report, eris.Wrapf(err, "dataset: decode station row %d", row)
		}
		report.Rows++

		id := normalize(rec.ID)
		if id == "" {
			report.reject(row, "missing station name")
			continue
		}

		lat, lon, reason := parseCoordinate(rec.Lat, rec.Lon)
		if reason != "" {
			report.reject(row, id+": "+reason)
			lat, lon = math.NaN(), math.NaN()
		}
		stations = append(stations, proximity.Station{
			ID:   id,
			Line: normalize(rec.Line),
			Lat:  lat,
			Lon:  lon,
		})
	}

	ids := make([]string, len(stations))
	for i, s := range stations {
		ids[i] = s.ID
	}
	if err := proximity.CheckUniqueIDs(ids); err != nil {
		return nil, report, eris.Wrap(err, "dataset: stations")
	}

	report.Loaded = len(stations)
	return stations, report, nil
}
