package cache

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/observability"
)

// CachedFetcher wraps an ArchiveFetcher with an ArchiveCache. Cache failures
// are logged and never fail a fetch.
type CachedFetcher struct {
	inner   domain.ArchiveFetcher
	cache   domain.ArchiveCache
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner domain.ArchiveFetcher, cache domain.ArchiveCache, logger *slog.Logger, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

func (f *CachedFetcher) Fetch(ctx context.Context, key domain.ArchiveKey) ([]byte, error) {
	data, ok, err := f.cache.Get(ctx, key)
	switch {
	case err != nil:
		f.logger.Warn("archive cache read failed, fetching", "key", key.String(), "error", err)
		f.metrics.CacheLookups.WithLabelValues("error").Inc()
	case ok:
		f.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return data, nil
	default:
		f.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	data, err = f.inner.Fetch(ctx, key)
	if err != nil {
		// Failures are never cached so a later run can retry.
		return nil, err
	}
	if err := f.cache.Put(ctx, key, data); err != nil {
		f.logger.Warn("archive cache write failed", "key", key.String(), "error", err)
	}
	return data, nil
}

// Evict drops key from the cache so the next Fetch goes to the portal. The
// pipeline calls it when cached bytes fail to extract.
func (f *CachedFetcher) Evict(ctx context.Context, key domain.ArchiveKey) error {
	if err := f.cache.Delete(ctx, key); err != nil {
		return err
	}
	f.metrics.CacheEvictions.Inc()
	return nil
}
