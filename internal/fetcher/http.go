package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures HTTPFetcher. Zero values take the defaults noted.
type HTTPOptions struct {
	UserAgent   string        // "metro-proximity/1.0"
	Timeout     time.Duration // 60s per attempt
	MaxAttempts int           // 3
	BackoffBase time.Duration // 1s, doubled per attempt
	MaxBackoff  time.Duration // 30s
	Limiter     *rate.Limiter // 5 req/s, burst 5
}

// HTTPFetcher downloads http(s) dataset sources. Transient failures
// (transport errors, 429, 5xx, truncated bodies) are retried with jittered
// exponential backoff; other statuses fail at once.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
	log    *zap.Logger
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "metro-proximity/1.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * opts.BackoffBase
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(5, 5)
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		log:    zap.L().With(zap.String("component", "fetcher")),
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, location, fallback string) (string, func(), error) {
	return resolve(ctx, location, fallback, f.download)
}

// download saves rawURL to dst, retrying transient failures.
func (f *HTTPFetcher) download(ctx context.Context, rawURL, dst string) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := f.wait(ctx, attempt-1); err != nil {
				return 0, eris.Wrapf(err, "fetcher: %s", rawURL)
			}
		}

		n, transient, err := f.attempt(ctx, rawURL, dst)
		if err == nil {
			return n, nil
		}
		if !transient {
			return 0, err
		}
		lastErr = err
		f.log.Warn("dataset download attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", f.opts.MaxAttempts),
			zap.Error(err),
		)
	}
	return 0, eris.Wrapf(lastErr, "fetcher: gave up on %s after %d attempts", rawURL, f.opts.MaxAttempts)
}

// attempt performs one GET. transient reports whether retrying could help.
func (f *HTTPFetcher) attempt(ctx context.Context, rawURL, dst string) (n int64, transient bool, err error) {
	if err := f.opts.Limiter.Wait(ctx); err != nil {
		return 0, false, eris.Wrap(err, "fetcher: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, false, eris.Wrap(err, "fetcher: build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, ctx.Err() == nil, eris.Wrapf(err, "fetcher: GET %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return 0, true, eris.Errorf("fetcher: GET %s: status %d", rawURL, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return 0, false, eris.Errorf("fetcher: GET %s: status %d", rawURL, resp.StatusCode)
	}

	n, err = writeFile(dst, resp.Body)
	if err != nil {
		return n, ctx.Err() == nil, err
	}
	return n, false, nil
}

// wait sleeps before retry number retry: a random duration in
// [ceiling/2, ceiling] where ceiling = BackoffBase * 2^(retry-1), capped.
func (f *HTTPFetcher) wait(ctx context.Context, retry int) error {
	ceiling := f.opts.BackoffBase << (retry - 1)
	if ceiling <= 0 || ceiling > f.opts.MaxBackoff {
		ceiling = f.opts.MaxBackoff
	}
	d := ceiling/2 + rand.N(ceiling/2+1)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func writeFile(dst string, r io.Reader) (int64, error) {
	file, err := os.Create(dst)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	n, err := io.Copy(file, r)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, eris.Wrapf(err, "fetcher: write %s", dst)
	}
	return n, nil
}
