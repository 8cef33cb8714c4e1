package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/metro-proximity/internal/proximity"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// NewSQLite opens a SQLite database at the given path in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: open")
	}
	return &SQLiteStore{db: db}, nil
}

// sqliteDSN appends a _pragma parameter for each of sqlitePragmas that dsn
// does not already set.
func sqliteDSN(dsn string) string {
	var params []string
	for _, p := range sqlitePragmas {
		name := p[:strings.IndexByte(p, '(')]
		if strings.Contains(dsn, "_pragma="+name) {
			continue
		}
		params = append(params, "_pragma="+p)
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	method        TEXT NOT NULL,
	radius        REAL NOT NULL,
	snapshot_hash TEXT NOT NULL,
	incidents     INTEGER NOT NULL DEFAULT 0,
	stations      INTEGER NOT NULL DEFAULT 0,
	matched       INTEGER NOT NULL DEFAULT 0,
	similarity    REAL,
	status        TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_counts (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	station_id TEXT NOT NULL,
	line       TEXT NOT NULL DEFAULT '',
	count      INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, r *Run) error {
	prepareRun(r)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, kind, method, radius, snapshot_hash, incidents, stations, matched, similarity, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Kind), r.Method, r.Radius, r.SnapshotHash,
		r.Incidents, r.Stations, r.Matched, r.Similarity, r.Status, r.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", r.ID)
	}

	if len(r.Counts) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO run_counts (run_id, position, station_id, line, count) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare counts")
		}
		defer stmt.Close() //nolint:errcheck

		for i, c := range r.Counts {
			if _, err := stmt.ExecContext(ctx, r.ID, i, c.StationID, c.Line, c.Count); err != nil {
				return eris.Wrapf(err, "sqlite: insert count %s", c.StationID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit run")
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, method, radius, snapshot_hash, incidents, stations, matched, similarity, status, created_at
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT station_id, line, count FROM run_counts WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get counts %s", id)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var c proximity.StationCount
		if err := rows.Scan(&c.StationID, &c.Line, &c.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		r.Counts = append(r.Counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: get counts iterate")
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, kind, method, radius, snapshot_hash, incidents, stations, matched, similarity, status, created_at
		FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs iterate")
	}
	return runs, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var (
		r          Run
		kind       string
		similarity sql.NullFloat64
	)
	err := row.Scan(&r.ID, &kind, &r.Method, &r.Radius, &r.SnapshotHash,
		&r.Incidents, &r.Stations, &r.Matched, &similarity, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Kind = Kind(kind)
	if similarity.Valid {
		v := similarity.Float64
		r.Similarity = &v
	}
	return &r, nil
}
