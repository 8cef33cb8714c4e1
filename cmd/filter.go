package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/metro-proximity/internal/dataset"
	"github.com/sells-group/metro-proximity/internal/proximity"
	"github.com/sells-group/metro-proximity/internal/store"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Flag incidents within the radius of any station",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("filter"); err != nil {
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
		mask, stats, err := proximity.FilterWithinRadius(ctx, snap.Incidents, snap.Stations, radius,
			proximity.WithMethod(method),
			proximity.WithProgress(progressLogger("filter")),
		)
		if err != nil {
			return err
		}

		matched := mask.Matched()
		printFilterSummary(cmd.OutOrStdout(), stats, matched, radius)

		if path, _ := cmd.Flags().GetString("geojson"); path != "" {
			err := writeOutput(cmd.OutOrStdout(), path, func(w io.Writer) error {
				return dataset.WriteGeoJSON(w, mask.Apply(snap.Incidents), snap.Stations)
			})
			if err != nil {
				return err
			}
		}

		recordRun(ctx, cmd, &store.Run{
			Kind:         store.KindFilter,
			Method:       method.String(),
			Radius:       radius,
			SnapshotHash: snap.Hash,
			Incidents:    len(snap.Incidents),
			Stations:     len(snap.Stations),
			Matched:      matched,
		})
		return nil
	},
}

func printFilterSummary(w io.Writer, stats proximity.Stats, matched int, radius float64) {
	var pct float64
	if stats.Incidents > 0 {
		pct = 100 * float64(matched) / float64(stats.Incidents)
	}
	fmt.Fprintf(w, "Incidents:  %d (%d without usable coordinates)\n", stats.Incidents, stats.SkippedIncidents)
	fmt.Fprintf(w, "Stations:   %d (%d without usable coordinates)\n", stats.Stations, stats.SkippedStations)
	fmt.Fprintf(w, "Within %gm: %d (%.1f%%)\n", radius, matched, pct)
}

func init() {
	filterCmd.Flags().String("method", "", "distance method: haversine or geodesic (default from config)")
	filterCmd.Flags().String("geojson", "", "write matched incidents and stations as GeoJSON to this path")
	rootCmd.AddCommand(filterCmd)
}
