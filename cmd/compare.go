package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/metro-proximity/internal/compare"
	"github.com/sells-group/metro-proximity/internal/dataset"
	"github.com/sells-group/metro-proximity/internal/geo"
	"github.com/sells-group/metro-proximity/internal/proximity"
	"github.com/sells-group/metro-proximity/internal/store"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Score a supplied per-station count table against the reference counts",
	Long: "Joins the supplied table (estacion, delitos_cercanos) with reference counts on station name and " +
		"reports similarity = clamp(100 * (1 - sum|diff| / sum reference), 0, 100). Reference counts are " +
		"computed from the inputs with the reference method unless --reference names a precomputed table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("compare"); err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "text", "json", "yaml":
		default:
			return eris.Errorf("unknown format %q (want text, json or yaml)", format)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		suppliedPath, _ := cmd.Flags().GetString("supplied")
		supplied, report, err := dataset.LoadCounts(suppliedPath)
		if err != nil {
			return eris.Wrap(err, "supplied table")
		}
		if report.Invalid > 0 {
			zap.L().Warn("supplied rows skipped",
				zap.Int("invalid", report.Invalid),
				zap.Any("examples", report.Errors),
			)
		}

		method, err := resolveMethod(cmd, cfg.Proximity.ReferenceMethod)
		if err != nil {
			return err
		}

		run := &store.Run{
			Kind:   store.KindCompare,
			Method: method.String(),
			Radius: cfg.Proximity.RadiusMeters,
		}

		var reference proximity.Counts
		if refPath, _ := cmd.Flags().GetString("reference"); refPath != "" {
			reference, _, err = dataset.LoadCounts(refPath)
			if err != nil {
				return eris.Wrap(err, "reference table")
			}
			run.Method = "file"
			run.Stations = len(reference)
		} else {
			reference, run.SnapshotHash, err = computeReference(ctx, method, run)
			if err != nil {
				return err
			}
		}

		cmp, err := compare.Compare(reference, supplied)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch format {
		case "json":
			err = dataset.WriteJSON(out, cmp)
		case "yaml":
			err = dataset.WriteYAML(out, cmp)
		default:
			err = compare.WriteReport(out, cmp)
		}
		if err != nil {
			return err
		}

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			err := writeOutput(out, output, func(w io.Writer) error {
				return dataset.WriteComparisonCSV(w, cmp)
			})
			if err != nil {
				return err
			}
		}

		if n := cmp.Dropped(); n > 0 {
			zap.L().Info("stations left out of comparison",
				zap.Int("dropped", n),
				zap.Int("missing_from_supplied", len(cmp.DroppedReference)),
				zap.Int("unknown_in_supplied", len(cmp.DroppedSupplied)),
			)
		}

		sim := cmp.Similarity
		run.Similarity = &sim
		run.Status = string(cmp.Status)
		run.Matched = len(cmp.Rows)
		run.Counts = reference
		recordRun(ctx, cmd, run)

		if strict, _ := cmd.Flags().GetBool("strict"); strict {
			return cmp.Err()
		}
		if err := cmp.Err(); err != nil {
			zap.L().Warn("similarity not well defined", zap.String("status", string(cmp.Status)), zap.Error(err))
		}
		return nil
	},
}

// computeReference aggregates counts from the configured inputs and fills the
// input sizes on run.
func computeReference(ctx context.Context, method geo.Method, run *store.Run) (proximity.Counts, string, error) {
	snap, err := loadSnapshot(ctx)
	if err != nil {
		return nil, "", err
	}
	counts, _, err := proximity.AggregateCounts(ctx, snap.Incidents, snap.Stations, cfg.Proximity.RadiusMeters,
		proximity.WithMethod(method),
		proximity.WithProgress(progressLogger("compare")),
	)
	if err != nil {
		return nil, "", err
	}
	run.Incidents = len(snap.Incidents)
	run.Stations = len(snap.Stations)
	return counts, snap.Hash, nil
}

func init() {
	compareCmd.Flags().String("supplied", "", "supplied count table (CSV or XLSX with estacion, delitos_cercanos)")
	compareCmd.Flags().String("reference", "", "precomputed reference count table; skips the scan")
	compareCmd.Flags().String("method", "", "reference distance method: haversine or geodesic (default from config)")
	compareCmd.Flags().StringP("output", "o", "", "write the joined comparison rows as CSV to this path")
	compareCmd.Flags().String("format", "text", "report format: text, json or yaml")
	compareCmd.Flags().Bool("strict", false, "exit non-zero when the join is empty or similarity is undefined")
	_ = compareCmd.MarkFlagRequired("supplied")
	rootCmd.AddCommand(compareCmd)
}
