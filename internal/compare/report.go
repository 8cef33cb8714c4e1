package compare

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteReport prints a human-readable summary followed by the per-station
// table.
func WriteReport(w io.Writer, c Comparison) error {
	var sb strings.Builder

	sb.WriteString("=== Station Count Comparison ===\n")
	switch c.Status {
	case StatusEmpty:
		sb.WriteString("Similarity:        n/a (no stations in common)\n")
	case StatusUndefined:
		fmt.Fprintf(&sb, "Similarity:        %.2f%% (undefined: reference total is 0)\n", c.Similarity)
	default:
		fmt.Fprintf(&sb, "Similarity:        %.2f%%\n", c.Similarity)
	}
	fmt.Fprintf(&sb, "Matched stations:  %d\n", len(c.Rows))
	fmt.Fprintf(&sb, "Reference total:   %d\n", c.ReferenceTotal)
	fmt.Fprintf(&sb, "Supplied total:    %d\n", c.SuppliedTotal)
	fmt.Fprintf(&sb, "Difference total:  %d\n", c.DifferenceTotal)
	if len(c.DroppedReference) > 0 {
		fmt.Fprintf(&sb, "Missing from supplied (%d): %s\n", len(c.DroppedReference), strings.Join(c.DroppedReference, ", "))
	}
	if len(c.DroppedSupplied) > 0 {
		fmt.Fprintf(&sb, "Unknown in supplied (%d):   %s\n", len(c.DroppedSupplied), strings.Join(c.DroppedSupplied, ", "))
	}
	sb.WriteString("\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	if len(c.Rows) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATION\tREFERENCE\tSUPPLIED\tDIFF")
	for _, r := range c.Rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", r.StationID, r.ReferenceCount, r.SuppliedCount, r.Difference)
	}
	return tw.Flush()
}
