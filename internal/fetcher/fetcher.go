// Package fetcher resolves dataset locations to local files. Remote http(s)
// sources are downloaded to a temp file whose name keeps the CSV or XLSX
// extension, so the same readers handle downloads and files on disk.
package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher turns a dataset location into a readable local path.
type Fetcher interface {
	// Fetch returns a local path for location. An empty location, or a remote
	// one that cannot be downloaded, resolves to fallback when it is set.
	// cleanup removes any temp files and is never nil.
	Fetch(ctx context.Context, location, fallback string) (path string, cleanup func(), err error)
}

// IsRemote reports whether location is an http(s) URL rather than a file path.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// LocalName is the file name a download of rawURL is saved under: the last
// URL path segment, with ".csv" appended unless it already ends in .csv or
// .xlsx.
func LocalName(rawURL string) string {
	name := "source"
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" && u.Path != "/" {
		name = path.Base(u.Path)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return name
	default:
		return name + ".csv"
	}
}

// Local resolves file paths only. Remote locations fail over to the
// fallback, or error when there is none.
type Local struct{}

// Fetch implements Fetcher.
func (Local) Fetch(ctx context.Context, location, fallback string) (string, func(), error) {
	return resolve(ctx, location, fallback, func(_ context.Context, rawURL, _ string) (int64, error) {
		return 0, eris.Errorf("fetcher: %s is remote and no HTTP fetcher is configured", rawURL)
	})
}

type downloadFunc func(ctx context.Context, rawURL, dst string) (int64, error)

func resolve(ctx context.Context, location, fallback string, download downloadFunc) (string, func(), error) {
	noop := func() {}
	switch {
	case location == "" && fallback == "":
		return "", noop, eris.New("fetcher: no source configured")
	case location == "":
		return fallback, noop, nil
	case !IsRemote(location):
		return location, noop, nil
	}

	dir, err := os.MkdirTemp("", "metro-proximity-*")
	if err != nil {
		return "", noop, eris.Wrap(err, "fetcher: create temp dir")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	dst := filepath.Join(dir, LocalName(location))
	n, err := download(ctx, location, dst)
	if err != nil {
		cleanup()
		if fallback == "" || ctx.Err() != nil {
			return "", noop, err
		}
		zap.L().Warn("remote source unavailable, using local fallback",
			zap.String("component", "fetcher"),
			zap.String("url", location),
			zap.String("fallback", fallback),
			zap.Error(err),
		)
		return fallback, noop, nil
	}

	zap.L().Debug("remote source downloaded",
		zap.String("component", "fetcher"),
		zap.String("url", location),
		zap.Int64("bytes", n),
	)
	return dst, cleanup, nil
}
