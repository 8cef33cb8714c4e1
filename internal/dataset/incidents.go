package dataset

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/metro-proximity/internal/geo"
	"github.com/sells-group/metro-proximity/internal/proximity"
)

type incidentRecord struct {
	Lat     string `csv:"latitud"`
	Lon     string `csv:"longitud"`
	Borough string `csv:"alcaldia_hecho"`
}

// LoadIncidents reads an incident table from path.
func LoadIncidents(path string) ([]proximity.Incident, LoadReport, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, LoadReport{}, err
	}
	return DecodeIncidents(t)
}

// DecodeIncidents converts a table into incidents. Rows with a missing,
// non-numeric or out-of-range coordinate are dropped and counted in the
// report; they never fail the load.
func DecodeIncidents(t *Table) ([]proximity.Incident, LoadReport, error) {
	var report LoadReport
	if err := t.Require(ColLatitude, ColLongitude); err != nil {
		return nil, report, eris.Wrap(err, "dataset: incidents")
	}

	dec, err := t.decoder()
	if err != nil {
		return nil, report, err
	}

	incidents := make([]proximity.Incident, 0, len(t.Rows))
	for row := 1; ; row++ {
		var rec incidentRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, report, eris.Wrapf(err, "dataset: decode incident row %d", row)
		}
		report.Rows++

		lat, lon, reason := parseCoordinate(rec.Lat, rec.Lon)
		if reason != "" {
			report.reject(row, reason)
			continue
		}
		incidents = append(incidents, proximity.Incident{
			Lat:     lat,
			Lon:     lon,
			Borough: normalize(rec.Borough),
			Row:     row,
		})
	}
	report.Loaded = len(incidents)
	return incidents, report, nil
}

// parseCoordinate returns a non-empty reason when the pair is unusable.
func parseCoordinate(latStr, lonStr string) (float64, float64, string) {
	latStr, lonStr = strings.TrimSpace(latStr), strings.TrimSpace(lonStr)
	if latStr == "" || lonStr == "" {
		return 0, 0, "missing coordinate"
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, "non-numeric latitude " + strconv.Quote(latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, "non-numeric longitude " + strconv.Quote(lonStr)
	}
	if !geo.ValidCoordinate(lat, lon) {
		return 0, 0, "coordinate out of range"
	}
	return lat, lon, ""
}

// normalize trims s and converts it to Unicode NFC so that composed and
// decomposed accents compare equal. Case is preserved.
func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
