package dataset

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/metro-proximity/internal/compare"
	"github.com/sells-group/metro-proximity/internal/geo"
	"github.com/sells-group/metro-proximity/internal/proximity"
)

// countRow is the counts CSV layout; it is the same contract DecodeCounts
// reads, so an exported file can be fed back as a supplied table.
type countRow struct {
	Station string `csv:"estacion"`
	Line    string `csv:"linea"`
	Nearby  int    `csv:"delitos_cercanos"`
}

type comparisonRow struct {
	Station    string `csv:"estacion"`
	Reference  int    `csv:"delitos_cercanos_real"`
	Supplied   int    `csv:"delitos_cercanos_usuario"`
	Difference int    `csv:"diferencia"`
}

// WriteCountsCSV writes estacion,linea,delitos_cercanos rows.
func WriteCountsCSV(w io.Writer, counts proximity.Counts) error {
	rows := make([]countRow, len(counts))
	for i, c := range counts {
		rows[i] = countRow{Station: c.StationID, Line: c.Line, Nearby: c.Count}
	}
	return writeCSV(w, countRow{}, rows)
}

// WriteComparisonCSV writes the joined rows of a comparison.
func WriteComparisonCSV(w io.Writer, c compare.Comparison) error {
	rows := make([]comparisonRow, len(c.Rows))
	for i, r := range c.Rows {
		rows[i] = comparisonRow{
			Station:    r.StationID,
			Reference:  r.ReferenceCount,
			Supplied:   r.SuppliedCount,
			Difference: r.Difference,
		}
	}
	return writeCSV(w, comparisonRow{}, rows)
}

// writeCSV always emits the header, even for zero rows.
func writeCSV[T any](w io.Writer, header T, rows []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(header); err != nil {
		return eris.Wrap(err, "dataset: encode csv header")
	}
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "dataset: encode csv row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "dataset: flush csv")
	}
	return nil
}

// FeatureCollection builds GeoJSON point features for the given incidents and
// stations. Coordinates are [lon, lat]. Points with unusable coordinates are
// left out.
func FeatureCollection(incidents []proximity.Incident, stations []proximity.Station) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(incidents)+len(stations)),
	}
	for _, s := range stations {
		if !geo.ValidCoordinate(s.Lat, s.Lon) {
			continue
		}
		props := map[string]interface{}{"kind": "station", "estacion": s.ID}
		if s.Line != "" {
			props["linea"] = s.Line
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         s.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{s.Lon, s.Lat}),
			Properties: props,
		})
	}
	for _, inc := range incidents {
		if !geo.ValidCoordinate(inc.Lat, inc.Lon) {
			continue
		}
		props := map[string]interface{}{"kind": "incident"}
		if inc.Borough != "" {
			props["alcaldia_hecho"] = inc.Borough
		}
		if inc.Row > 0 {
			props["row"] = inc.Row
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{inc.Lon, inc.Lat}),
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON writes FeatureCollection(incidents, stations) as JSON.
func WriteGeoJSON(w io.Writer, incidents []proximity.Incident, stations []proximity.Station) error {
	if err := json.NewEncoder(w).Encode(FeatureCollection(incidents, stations)); err != nil {
		return eris.Wrap(err, "dataset: encode geojson")
	}
	return nil
}

// WriteYAML writes v as a YAML document.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "dataset: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "dataset: close yaml encoder")
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "dataset: encode json")
	}
	return nil
}
