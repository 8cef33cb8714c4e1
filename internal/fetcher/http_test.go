package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		Limiter:     rate.NewLimiter(rate.Inf, 1),
	})
}

const stationsCSV = "estacion,latitud,longitud\nA,19.43,-99.13\n"

func TestFetch_DownloadsKeepingExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(stationsCSV))
	}))
	defer srv.Close()

	path, cleanup, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/data/stations.xlsx", "")
	require.NoError(t, err)

	assert.Equal(t, "stations.xlsx", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stationsCSV, string(data))

	cleanup()
	_, err = os.Stat(filepath.Dir(path))
	assert.True(t, os.IsNotExist(err), "cleanup removes the temp dir")
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(stationsCSV))
	}))
	defer srv.Close()

	path, cleanup, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/stations.csv", "")
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, int32(3), calls.Load())
	assert.FileExists(t, path)
}

func TestFetch_AttemptsExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, cleanup, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/stations.csv", "")
	require.Error(t, err)
	cleanup()

	assert.Contains(t, err.Error(), "gave up")
	assert.Contains(t, err.Error(), "status 429")
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, _, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/missing.csv", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_FallbackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	fallback := filepath.Join(t.TempDir(), "metro_stations.csv")
	require.NoError(t, os.WriteFile(fallback, []byte(stationsCSV), 0o644))

	path, cleanup, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/stations.csv", fallback)
	require.NoError(t, err)
	cleanup()
	assert.Equal(t, fallback, path)
}

func TestFetch_CancelledContextSkipsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(stationsCSV))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestFetcher().Fetch(ctx, srv.URL+"/stations.csv", "fallback.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetch_LocalLocations(t *testing.T) {
	tests := []struct {
		name     string
		location string
		fallback string
		want     string
		wantErr  bool
	}{
		{name: "file path", location: "data/a.csv", fallback: "b.csv", want: "data/a.csv"},
		{name: "empty uses fallback", location: "", fallback: "b.csv", want: "b.csv"},
		{name: "nothing configured", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, f := range []Fetcher{newTestFetcher(), Local{}} {
				path, cleanup, err := f.Fetch(context.Background(), tt.location, tt.fallback)
				require.NotNil(t, cleanup)
				cleanup()
				if tt.wantErr {
					assert.Error(t, err)
					continue
				}
				require.NoError(t, err)
				assert.Equal(t, tt.want, path)
			}
		})
	}
}

func TestLocal_RemoteNeedsFallback(t *testing.T) {
	_, _, err := Local{}.Fetch(context.Background(), "https://example.com/a.csv", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no HTTP fetcher")

	path, _, err := Local{}.Fetch(context.Background(), "https://example.com/a.csv", "a.csv")
	require.NoError(t, err)
	assert.Equal(t, "a.csv", path)
}

func TestWait_Bounds(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{BackoffBase: 2 * time.Millisecond, MaxBackoff: 4 * time.Millisecond})

	start := time.Now()
	require.NoError(t, f.wait(context.Background(), 10))
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond, "capped ceiling still waits at least half")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.wait(ctx, 1), context.Canceled)
}

func TestLocalName(t *testing.T) {
	tests := map[string]string{
		"https://x.org/data/stations.xlsx":               "stations.xlsx",
		"https://x.org/data/STATIONS.CSV":                "STATIONS.CSV",
		"https://drive.google.com/uc?export=download&id": "uc.csv",
		"https://x.org/a.csv?dl=1":                       "a.csv",
		"https://x.org/":                                 "source.csv",
		"https://x.org/export.json":                      "export.json.csv",
	}
	for in, want := range tests {
		assert.Equal(t, want, LocalName(in), in)
	}
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/a.csv"))
	assert.True(t, IsRemote("HTTP://example.com/a.csv"))
	assert.False(t, IsRemote("data/a.csv"))
	assert.False(t, IsRemote("/abs/path.xlsx"))
}
