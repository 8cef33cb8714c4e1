package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/metro-proximity/internal/config"
	"github.com/sells-group/metro-proximity/internal/dataset"
	"github.com/sells-group/metro-proximity/internal/fetcher"
	"github.com/sells-group/metro-proximity/internal/geo"
	"github.com/sells-group/metro-proximity/internal/proximity"
	"github.com/sells-group/metro-proximity/internal/store"
)

// loadSnapshot reads both tables, narrows the incidents per the data config
// and hashes the result.
func loadSnapshot(ctx context.Context) (proximity.Snapshot, error) {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout: time.Duration(cfg.Data.DownloadTimeout) * time.Second,
	})
	in, err := dataset.NewLoader(f).Load(ctx, dataset.Sources{
		Incidents:         cfg.Data.IncidentsPath,
		IncidentsFallback: cfg.Data.IncidentsFallback,
		Stations:          cfg.Data.StationsPath,
		StationsFallback:  cfg.Data.StationsFallback,
	})
	if err != nil {
		return proximity.Snapshot{}, eris.Wrap(err, "load inputs")
	}

	incidents := prepareIncidents(in.Incidents, cfg.Data)
	zap.L().Info("incidents selected",
		zap.Int("loaded", len(in.Incidents)),
		zap.Int("selected", len(incidents)),
		zap.String("borough", cfg.Data.Borough),
		zap.Float64("sample_fraction", cfg.Data.SampleFraction),
	)
	return proximity.NewSnapshot(incidents, in.Stations), nil
}

// prepareIncidents applies the borough filter, then sampling, then the cap.
func prepareIncidents(incidents []proximity.Incident, d config.DataConfig) []proximity.Incident {
	out := dataset.FilterBorough(incidents, d.Borough)
	if d.SampleFraction > 0 && d.SampleFraction < 1 {
		out = dataset.Sample(out, d.SampleFraction, d.SampleSeed)
	}
	return dataset.Limit(out, d.MaxPoints, d.SampleSeed)
}

// resolveMethod reads --method, falling back to def.
func resolveMethod(cmd *cobra.Command, def string) (geo.Method, error) {
	m, _ := cmd.Flags().GetString("method")
	if m == "" {
		m = def
	}
	return geo.ParseMethod(m)
}

// progressLogger logs scan progress at most once per 10% step.
func progressLogger(op string) proximity.ProgressFunc {
	log := zap.L().With(zap.String("component", op))
	last := -1
	return func(p proximity.Progress) {
		step := int(p.Fraction() * 10)
		if step == last {
			return
		}
		last = step
		log.Info("scan progress",
			zap.Int("done", p.Done),
			zap.Int("total", p.Total),
			zap.String("station", p.StationID),
		)
	}
}

// openStore returns nil when --no-store is set.
func openStore(ctx context.Context, cmd *cobra.Command) (store.Store, error) {
	if noStore, _ := cmd.Flags().GetBool("no-store"); noStore {
		return nil, nil
	}
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}

// recordRun saves r unless history is disabled. Failures are only logged.
func recordRun(ctx context.Context, cmd *cobra.Command, r *store.Run) {
	st, err := openStore(ctx, cmd)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.Error(err))
		return
	}
	if st == nil {
		return
	}
	defer st.Close() //nolint:errcheck

	if err := st.SaveRun(ctx, r); err != nil {
		zap.L().Warn("save run", zap.Error(err))
		return
	}
	zap.L().Info("run recorded", zap.String("run_id", r.ID), zap.String("kind", string(r.Kind)))
}

// writeOutput sends fn's output to path, or to stdout when path is "" or "-".
func writeOutput(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := fn(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}
	return nil
}
