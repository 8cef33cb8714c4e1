package dataset

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/metro-proximity/internal/fetcher"
	"github.com/sells-group/metro-proximity/internal/proximity"
)

// Sources names where the two input tables live. A location is a file path
// or an http(s) URL. When a remote download fails the matching Fallback path
// is read instead, if set.
type Sources struct {
	Incidents         string
	IncidentsFallback string
	Stations          string
	StationsFallback  string
}

// Inputs is the loaded incident and station data with their load reports.
type Inputs struct {
	Incidents      []proximity.Incident
	Stations       []proximity.Station
	IncidentReport LoadReport
	StationReport  LoadReport
}

// Loader reads Sources, resolving each location through a Fetcher.
type Loader struct {
	fetcher fetcher.Fetcher
	log     *zap.Logger
}

// NewLoader creates a Loader. A nil f only resolves local paths.
func NewLoader(f fetcher.Fetcher) *Loader {
	if f == nil {
		f = fetcher.Local{}
	}
	return &Loader{
		fetcher: f,
		log:     zap.L().With(zap.String("component", "dataset")),
	}
}

// Load reads incidents and stations concurrently.
func (l *Loader) Load(ctx context.Context, src Sources) (*Inputs, error) {
	in := &Inputs{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, cleanup, err := l.fetcher.Fetch(gctx, src.Incidents, src.IncidentsFallback)
		if err != nil {
			return eris.Wrap(err, "dataset: incidents")
		}
		defer cleanup()
		in.Incidents, in.IncidentReport, err = LoadIncidents(p)
		return err
	})
	g.Go(func() error {
		p, cleanup, err := l.fetcher.Fetch(gctx, src.Stations, src.StationsFallback)
		if err != nil {
			return eris.Wrap(err, "dataset: stations")
		}
		defer cleanup()
		in.Stations, in.StationReport, err = LoadStations(p)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.log.Info("inputs loaded",
		zap.Int("incidents", len(in.Incidents)),
		zap.Int("incidents_invalid", in.IncidentReport.Invalid),
		zap.Int("stations", len(in.Stations)),
		zap.Int("stations_invalid", in.StationReport.Invalid),
	)
	return in, nil
}
