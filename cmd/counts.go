package main

import (
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/metro-proximity/internal/dataset"
	"github.com/sells-group/metro-proximity/internal/proximity"
	"github.com/sells-group/metro-proximity/internal/store"
)

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Count incidents within the radius of each station",
	Long: "Counts, per station, the incidents within the radius. An incident near two stations " +
		"is counted by both. Output columns match the supplied-count format (estacion, linea, delitos_cercanos).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("counts"); err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		method, err := resolveMethod(cmd, cfg.Proximity.Method)
		if err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx)
		if err != nil {
			return err
		}

		radius := cfg.Proximity.RadiusMeters
		counts, stats, err := proximity.AggregateCounts(ctx, snap.Incidents, snap.Stations, radius,
			proximity.WithMethod(method),
			proximity.WithProgress(progressLogger("counts")),
		)
		if err != nil {
			return err
		}
		zap.L().Info("counts computed",
			zap.Int("stations", len(counts)),
			zap.Int("total", counts.Total()),
			zap.Int("skipped_incidents", stats.SkippedIncidents),
			zap.Int("skipped_stations", stats.SkippedStations),
		)

		output, _ := cmd.Flags().GetString("output")
		err = writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
			return writeCounts(w, format, counts)
		})
		if err != nil {
			return err
		}

		recordRun(ctx, cmd, &store.Run{
			Kind:         store.KindCounts,
			Method:       method.String(),
			Radius:       radius,
			SnapshotHash: snap.Hash,
			Incidents:    len(snap.Incidents),
			Stations:     len(snap.Stations),
			Matched:      counts.Total(),
			Counts:       counts,
		})
		return nil
	},
}

func checkFormat(format string) error {
	switch format {
	case "csv", "json", "yaml":
		return nil
	default:
		return eris.Errorf("unknown format %q (want csv, json or yaml)", format)
	}
}

func writeCounts(w io.Writer, format string, counts proximity.Counts) error {
	switch format {
	case "json":
		return dataset.WriteJSON(w, counts)
	case "yaml":
		return dataset.WriteYAML(w, counts)
	default:
		return dataset.WriteCountsCSV(w, counts)
	}
}

func init() {
	countsCmd.Flags().String("method", "", "distance method: haversine or geodesic (default from config)")
	countsCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	countsCmd.Flags().String("format", "csv", "output format: csv, json or yaml")
	rootCmd.AddCommand(countsCmd)
}
