package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/metro-proximity/internal/proximity"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func ptr(f float64) *float64 { return &f }

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("SaveAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run := &Run{
			Kind:         KindCounts,
			Method:       "haversine",
			Radius:       300,
			SnapshotHash: "abc123",
			Incidents:    1000,
			Stations:     3,
			Counts: proximity.Counts{
				{StationID: "Zócalo", Line: "2", Count: 12},
				{StationID: "Allende", Line: "2", Count: 0},
				{StationID: "Hidalgo", Line: "3", Count: 7},
			},
		}
		require.NoError(t, s.SaveRun(ctx, run))
		assert.NotEmpty(t, run.ID)
		assert.False(t, run.CreatedAt.IsZero())

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, KindCounts, got.Kind)
		assert.Equal(t, "haversine", got.Method)
		assert.Equal(t, 300.0, got.Radius)
		assert.Equal(t, "abc123", got.SnapshotHash)
		assert.Nil(t, got.Similarity)
		assert.Equal(t, run.Counts, got.Counts, "counts keep station order")
	})

	t.Run("SimilarityRoundTrips", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run := &Run{Kind: KindCompare, Method: "geodesic", Radius: 250, SnapshotHash: "h", Similarity: ptr(87.5), Status: "ok"}
		require.NoError(t, s.SaveRun(ctx, run))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Similarity)
		assert.InDelta(t, 87.5, *got.Similarity, 1e-9)
		assert.Equal(t, "ok", got.Status)
		assert.Empty(t, got.Counts)
	})

	t.Run("GetRun_NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("ListRuns_NewestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

		for i, kind := range []Kind{KindFilter, KindCounts, KindCompare, KindCounts} {
			require.NoError(t, s.SaveRun(ctx, &Run{
				Kind:         kind,
				Method:       "haversine",
				Radius:       300,
				SnapshotHash: "h",
				Matched:      i,
				CreatedAt:    base.Add(time.Duration(i) * time.Minute),
				Counts:       proximity.Counts{{StationID: "A", Count: i}},
			}))
		}

		runs, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 4)
		assert.Equal(t, 3, runs[0].Matched)
		assert.Equal(t, 0, runs[3].Matched)
		assert.Nil(t, runs[0].Counts, "list returns summaries")

		counts, err := s.ListRuns(ctx, RunFilter{Kind: KindCounts})
		require.NoError(t, err)
		require.Len(t, counts, 2)
		for _, r := range counts {
			assert.Equal(t, KindCounts, r.Kind)
		}

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, 50, listLimit(RunFilter{}))
	assert.Equal(t, 50, listLimit(RunFilter{Limit: 5000}))
	assert.Equal(t, 10, listLimit(RunFilter{Limit: 10}))
}
