package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/metro-proximity/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "metro-proximity",
	Short: "Count crime incidents near metro stations",
	Long: "Loads geolocated incidents and metro stations, flags incidents within a radius of any station, " +
		"aggregates per-station counts and scores supplied count tables against a reference.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyFlagOverrides(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("incidents", "", "incident table path or URL (default from config)")
	pf.String("stations", "", "station table path or URL (default from config)")
	pf.Float64("radius", 0, "proximity radius in meters (default from config)")
	pf.String("borough", "", "only use incidents from this borough (alcaldia_hecho)")
	pf.Float64("sample", 0, "fraction of incidents to keep, in (0, 1]")
	pf.Uint64("seed", 0, "sampling seed (default from config)")
	pf.Int("max-points", 0, "cap on the number of incidents after sampling (0 = no cap)")
	pf.Bool("no-store", false, "do not record the run in history")
}

// applyFlagOverrides copies explicitly set persistent flags over c.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("incidents") {
		c.Data.IncidentsPath, _ = fs.GetString("incidents")
	}
	if fs.Changed("stations") {
		c.Data.StationsPath, _ = fs.GetString("stations")
	}
	if fs.Changed("radius") {
		c.Proximity.RadiusMeters, _ = fs.GetFloat64("radius")
	}
	if fs.Changed("borough") {
		c.Data.Borough, _ = fs.GetString("borough")
	}
	if fs.Changed("sample") {
		c.Data.SampleFraction, _ = fs.GetFloat64("sample")
	}
	if fs.Changed("seed") {
		c.Data.SampleSeed, _ = fs.GetUint64("seed")
	}
	if fs.Changed("max-points") {
		c.Data.MaxPoints, _ = fs.GetInt("max-points")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
