package proximity

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"
)

// Cache memoises scan results keyed on (snapshot hash, kind, method, radius).
// It is an LRU with TTL expiration; invalidation is explicit and owned by the
// caller. Concurrent misses for the same key share one computation.
type Cache struct {
	lru        *expirable.LRU[string, *cacheEntry]
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
	group      singleflight.Group
}

type cacheEntry struct {
	counts Counts
	mask   Mask
	stats  Stats
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewCache creates a Cache. A non-positive ttl disables expiration.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		lru:        expirable.NewLRU[string, *cacheEntry](maxEntries, nil, ttl),
		maxEntries: maxEntries,
	}
}

const (
	kindCounts = "counts"
	kindMask   = "mask"
)

func cacheKey(snapshotHash, kind string, cfg scanConfig, radius float64) string {
	return fmt.Sprintf("%s/%s/%s/%g", snapshotHash, kind, cfg.method, radius)
}

// Counts returns AggregateCounts for the snapshot, computing on miss. The
// returned slice is a copy. Progress callbacks only fire on a miss.
func (c *Cache) Counts(ctx context.Context, snap Snapshot, radius float64, opts ...Option) (Counts, Stats, error) {
	cfg := newScanConfig(opts)
	key := cacheKey(snap.Hash, kindCounts, cfg, radius)

	e, err := c.load(ctx, key, func(scanCtx context.Context) (*cacheEntry, error) {
		counts, stats, err := AggregateCounts(scanCtx, snap.Incidents, snap.Stations, radius, opts...)
		if err != nil {
			return nil, err
		}
		return &cacheEntry{counts: counts, stats: stats}, nil
	})
	if err != nil {
		return nil, Stats{}, err
	}
	return append(Counts(nil), e.counts...), e.stats, nil
}

// Mask returns FilterWithinRadius for the snapshot, computing on miss. The
// returned mask is a copy.
func (c *Cache) Mask(ctx context.Context, snap Snapshot, radius float64, opts ...Option) (Mask, Stats, error) {
	cfg := newScanConfig(opts)
	key := cacheKey(snap.Hash, kindMask, cfg, radius)

	e, err := c.load(ctx, key, func(scanCtx context.Context) (*cacheEntry, error) {
		mask, stats, err := FilterWithinRadius(scanCtx, snap.Incidents, snap.Stations, radius, opts...)
		if err != nil {
			return nil, err
		}
		return &cacheEntry{mask: mask, stats: stats}, nil
	})
	if err != nil {
		return nil, Stats{}, err
	}
	return append(Mask(nil), e.mask...), e.stats, nil
}

// load returns the entry for key, computing it on a miss. Callers missing on
// the same key share one scan, which is detached from every caller's
// cancellation. Each caller stops waiting when its own ctx is done.
func (c *Cache) load(ctx context.Context, key string, compute func(context.Context) (*cacheEntry, error)) (*cacheEntry, error) {
	if e, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return e, nil
	}
	c.misses.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "proximity: cached scan")
	}

	ch := c.group.DoChan(key, func() (any, error) {
		e, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "proximity: waiting for cached scan")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cacheEntry), nil
	}
}

// Invalidate removes every entry computed from the given snapshot.
func (c *Cache) Invalidate(snapshotHash string) int {
	prefix := snapshotHash + "/"

	var removed int
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) && c.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

// Purge removes all entries.
func (c *Cache) Purge() int {
	n := len(c.lru.Keys())
	c.lru.Purge()
	return n
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() CacheStats {
	entries := len(c.lru.Keys())

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}
