// Package compare scores a supplied per-station count table against a
// reference one.
package compare

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metro-proximity/internal/proximity"
)

// Status describes whether a similarity score could be computed.
type Status string

const (
	// StatusOK means the score is well defined.
	StatusOK Status = "ok"
	// StatusEmpty means no station appears on both sides.
	StatusEmpty Status = "empty"
	// StatusUndefined means the matched reference counts sum to zero.
	StatusUndefined Status = "undefined"
)

var (
	// ErrEmptyComparison reports that the join produced no rows.
	ErrEmptyComparison = eris.New("compare: no station ids in common")

	// ErrUndefinedSimilarity reports a zero reference total.
	ErrUndefinedSimilarity = eris.New("compare: similarity undefined for zero reference total")
)

// Row is one joined station.
type Row struct {
	StationID      string `json:"station_id" yaml:"station_id"`
	Line           string `json:"line,omitempty" yaml:"line,omitempty"`
	ReferenceCount int    `json:"reference_count" yaml:"reference_count"`
	SuppliedCount  int    `json:"supplied_count" yaml:"supplied_count"`
	Difference     int    `json:"difference" yaml:"difference"`
}

// Comparison is the result of Compare.
type Comparison struct {
	Rows             []Row    `json:"rows" yaml:"rows"`
	DroppedReference []string `json:"dropped_reference,omitempty" yaml:"dropped_reference,omitempty"`
	DroppedSupplied  []string `json:"dropped_supplied,omitempty" yaml:"dropped_supplied,omitempty"`
	ReferenceTotal   int      `json:"reference_total" yaml:"reference_total"`
	SuppliedTotal    int      `json:"supplied_total" yaml:"supplied_total"`
	DifferenceTotal  int      `json:"difference_total" yaml:"difference_total"`
	Similarity       float64  `json:"similarity" yaml:"similarity"`
	Status           Status   `json:"status" yaml:"status"`
}

// Err returns the sentinel matching a non-OK status, or nil.
func (c Comparison) Err() error {
	switch c.Status {
	case StatusEmpty:
		return ErrEmptyComparison
	case StatusUndefined:
		return ErrUndefinedSimilarity
	default:
		return nil
	}
}

// Dropped returns how many station ids were excluded from the join.
func (c Comparison) Dropped() int {
	return len(c.DroppedReference) + len(c.DroppedSupplied)
}

// Compare inner-joins reference and supplied on station ID (rows follow the
// reference order) and scores them:
//
//	similarity = clamp(100 × (1 − Σ|ref−supplied| / Σref), 0, 100)
//
// Totals run over matched rows only. The score divides by the reference
// total, so swapping the arguments can change it. When the reference total is
// zero the status is StatusUndefined and similarity falls back to 100 if all
// differences are zero, 0 otherwise. Duplicate IDs on either side are an
// error because the join would be ambiguous.
func Compare(reference, supplied proximity.Counts) (Comparison, error) {
	if err := checkUnique(reference, "reference"); err != nil {
		return Comparison{}, err
	}
	if err := checkUnique(supplied, "supplied"); err != nil {
		return Comparison{}, err
	}

	suppliedByID := supplied.ByID()
	matched := make(map[string]struct{}, len(reference))

	var c Comparison
	for _, ref := range reference {
		sup, ok := suppliedByID[ref.StationID]
		if !ok {
			c.DroppedReference = append(c.DroppedReference, ref.StationID)
			continue
		}
		matched[ref.StationID] = struct{}{}
		diff := absInt(ref.Count - sup)
		c.Rows = append(c.Rows, Row{
			StationID:      ref.StationID,
			Line:           ref.Line,
			ReferenceCount: ref.Count,
			SuppliedCount:  sup,
			Difference:     diff,
		})
		c.ReferenceTotal += ref.Count
		c.SuppliedTotal += sup
		c.DifferenceTotal += diff
	}
	for _, sup := range supplied {
		if _, ok := matched[sup.StationID]; !ok {
			c.DroppedSupplied = append(c.DroppedSupplied, sup.StationID)
		}
	}

	switch {
	case len(c.Rows) == 0:
		c.Status = StatusEmpty
	case c.ReferenceTotal == 0:
		c.Status = StatusUndefined
		if c.DifferenceTotal == 0 {
			c.Similarity = 100
		}
	default:
		c.Status = StatusOK
		c.Similarity = Similarity(c.DifferenceTotal, c.ReferenceTotal)
	}
	return c, nil
}

// Similarity returns clamp(100 × (1 − diff/ref), 0, 100). ref must be > 0.
func Similarity(diffTotal, refTotal int) float64 {
	s := 100 * (1 - float64(diffTotal)/float64(refTotal))
	return math.Max(0, math.Min(100, s))
}

func checkUnique(c proximity.Counts, side string) error {
	ids := make([]string, len(c))
	for i, sc := range c {
		ids[i] = sc.StationID
	}
	if err := proximity.CheckUniqueIDs(ids); err != nil {
		return eris.Wrapf(err, "compare: %s counts", side)
	}
	return nil
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
