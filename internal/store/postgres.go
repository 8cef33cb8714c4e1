package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/metro-proximity/internal/db"
	"github.com/sells-group/metro-proximity/internal/proximity"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	method        TEXT NOT NULL,
	radius        DOUBLE PRECISION NOT NULL,
	snapshot_hash TEXT NOT NULL,
	incidents     INTEGER NOT NULL DEFAULT 0,
	stations      INTEGER NOT NULL DEFAULT 0,
	matched       INTEGER NOT NULL DEFAULT 0,
	similarity    DOUBLE PRECISION,
	status        TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_counts (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	station_id TEXT NOT NULL,
	line       TEXT NOT NULL DEFAULT '',
	count      INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
`

var runCountColumns = []string{"run_id", "position", "station_id", "line", "count"}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun writes the run row and COPYs its counts in one transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, r *Run) error {
	prepareRun(r)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, kind, method, radius, snapshot_hash, incidents, stations, matched, similarity, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, string(r.Kind), r.Method, r.Radius, r.SnapshotHash,
		r.Incidents, r.Stations, r.Matched, r.Similarity, r.Status, r.CreatedAt,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return eris.Wrapf(err, "postgres: insert run %s", r.ID)
	}

	rows := make([][]any, len(r.Counts))
	for i, c := range r.Counts {
		rows[i] = []any{r.ID, i, c.StationID, c.Line, c.Count}
	}
	if _, err := db.CopyFrom(ctx, tx, "run_counts", runCountColumns, rows); err != nil {
		_ = tx.Rollback(ctx)
		return eris.Wrapf(err, "postgres: save counts for run %s", r.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit run")
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	var kind string
	err := s.pool.QueryRow(ctx,
		`SELECT id, kind, method, radius, snapshot_hash, incidents, stations, matched, similarity, status, created_at FROM runs WHERE id = $1`,
		id,
	).Scan(&r.ID, &kind, &r.Method, &r.Radius, &r.SnapshotHash,
		&r.Incidents, &r.Stations, &r.Matched, &r.Similarity, &r.Status, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	r.Kind = Kind(kind)

	rows, err := s.pool.Query(ctx,
		`SELECT station_id, line, count FROM run_counts WHERE run_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get counts %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var c proximity.StationCount
		if err := rows.Scan(&c.StationID, &c.Line, &c.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		r.Counts = append(r.Counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: get counts iterate")
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, kind, method, radius, snapshot_hash, incidents, stations, matched, similarity, status, created_at FROM runs`
	var args []any
	if filter.Kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(listLimit(filter))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.Method, &r.Radius, &r.SnapshotHash,
			&r.Incidents, &r.Stations, &r.Matched, &r.Similarity, &r.Status, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Kind = Kind(kind)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list runs iterate")
	}
	return runs, nil
}
