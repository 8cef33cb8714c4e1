package dataset

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metro-proximity/internal/proximity"
)

type countRecord struct {
	ID    string `csv:"estacion"`
	Line  string `csv:"linea,omitempty"`
	Count string `csv:"delitos_cercanos"`
}

// LoadCounts reads a supplied per-station count table from path.
func LoadCounts(path string) (proximity.Counts, LoadReport, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, LoadReport{}, err
	}
	return DecodeCounts(t)
}

// DecodeCounts converts a supplied count table. Both estacion and
// delitos_cercanos are required; a table missing either fails with
// ErrMissingColumn. Rows with an empty name or a count that is not a
// non-negative integer are dropped and reported.
func DecodeCounts(t *Table) (proximity.Counts, LoadReport, error) {
	var report LoadReport
	if err := t.Require(ColStation, ColNearby); err != nil {
		return nil, report, eris.Wrap(err, "dataset: supplied counts")
	}

	dec, err := t.decoder()
	if err != nil {
		return nil, report, err
	}

	var counts proximity.Counts
	for row := 1; ; row++ {
		var rec countRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, report, eris.Wrapf(err, "dataset: decode count row %d", row)
		}
		report.Rows++

		id := normalize(rec.ID)
		if id == "" {
			report.reject(row, "missing station name")
			continue
		}
		n, ok := parseCount(rec.Count)
		if !ok {
			report.reject(row, id+": invalid count "+strconv.Quote(rec.Count))
			continue
		}
		counts = append(counts, proximity.StationCount{StationID: id, Line: normalize(rec.Line), Count: n})
	}

	ids := make([]string, len(counts))
	for i, c := range counts {
		ids[i] = c.StationID
	}
	if err := proximity.CheckUniqueIDs(ids); err != nil {
		return nil, report, eris.Wrap(err, "dataset: supplied counts")
	}

	report.Loaded = len(counts)
	return counts, report, nil
}

// maxCount is the largest per-station count accepted from a table.
const maxCount = math.MaxInt32

// parseCount accepts integers and integral floats such as "12.0" in
// [0, maxCount].
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0 && n <= maxCount
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > maxCount {
		return 0, false
	}
	return int(f), true
}
