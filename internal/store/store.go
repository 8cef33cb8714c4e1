// Package store persists proximity run history to SQLite or Postgres.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/metro-proximity/internal/proximity"
)

// ErrNotFound is returned by GetRun for an unknown ID.
var ErrNotFound = eris.New("store: run not found")

// Kind is the operation a run recorded.
type Kind string

const (
	KindFilter  Kind = "filter"
	KindCounts  Kind = "counts"
	KindCompare Kind = "compare"
)

// Run is one recorded computation. Counts is only populated by GetRun;
// ListRuns returns summaries.
type Run struct {
	ID           string           `json:"id" yaml:"id"`
	Kind         Kind             `json:"kind" yaml:"kind"`
	Method       string           `json:"method" yaml:"method"`
	Radius       float64          `json:"radius_meters" yaml:"radius_meters"`
	SnapshotHash string           `json:"snapshot_hash" yaml:"snapshot_hash"`
	Incidents    int              `json:"incidents" yaml:"incidents"`
	Stations     int              `json:"stations" yaml:"stations"`
	Matched      int              `json:"matched" yaml:"matched"`
	Similarity   *float64         `json:"similarity,omitempty" yaml:"similarity,omitempty"`
	Status       string           `json:"status,omitempty" yaml:"status,omitempty"`
	Counts       proximity.Counts `json:"counts,omitempty" yaml:"counts,omitempty"`
	CreatedAt    time.Time        `json:"created_at" yaml:"created_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind  Kind `json:"kind,omitempty"`
	Limit int  `json:"limit,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// SaveRun inserts r with its per-station counts. An empty ID and zero
	// CreatedAt are filled in.
	SaveRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns newest first, without counts.
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns a Store for driver ("sqlite" or "postgres") and runs migrations.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(driver) {
	case "sqlite", "":
		s, err = NewSQLite(dsn)
	case "postgres", "postgresql":
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func prepareRun(r *Run) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		return 50
	}
	return filter.Limit
}
