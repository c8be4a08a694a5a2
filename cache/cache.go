// Get-or-fetch front for the store.
//
// Information Hiding:
// - Per-key fetch coordination hidden behind singleflight
// - Persistence policy (only successful fetches are stored) hidden

package cache

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/richinex/almanac/model"
)

// Fetcher performs the actual network retrieval on a cache miss.
type Fetcher func(ctx context.Context) (model.FetchResult, error)

// Cache wraps a Store with lookup-before-fetch semantics and per-key
// in-flight deduplication. A single Cache is shared across concurrent
// agent runs; pass the handle explicitly rather than using a global.
type Cache struct {
	store  Store
	group  singleflight.Group
	logger *zap.Logger
}

// New creates a cache over the given store.
func New(store Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, logger: logger}
}

// GetOrFetch returns the cached entry for the URL, or invokes fetcher
// and persists its result. The key is the normalized URL. Concurrent
// callers for the same key share one in-flight fetch. Only a fully
// successful fetch is persisted; cancellation or failure leaves no
// entry behind.
func (c *Cache) GetOrFetch(ctx context.Context, rawURL string, fetcher Fetcher) (model.FetchResult, error) {
	key := NormalizeURL(rawURL)

	if entry, ok, err := c.store.Get(ctx, key); err != nil {
		return model.FetchResult{}, err
	} else if ok {
		c.logger.Debug("cache hit", zap.String("key", key))
		entry.CacheHit = true
		return entry, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// A concurrent caller may have populated the entry while we
		// waited on the flight group.
		if entry, ok, err := c.store.Get(ctx, key); err != nil {
			return model.FetchResult{}, err
		} else if ok {
			entry.CacheHit = true
			return entry, nil
		}

		result, err := fetcher(ctx)
		if err != nil {
			return model.FetchResult{}, err
		}
		result.SourceURL = key
		result.CacheHit = false

		if result.OK() {
			if err := c.store.Put(ctx, key, result); err != nil {
				return model.FetchResult{}, err
			}
		}
		return result, nil
	})
	if err != nil {
		return model.FetchResult{}, err
	}

	result := v.(model.FetchResult)
	if shared {
		c.logger.Debug("shared in-flight fetch", zap.String("key", key))
	}
	return result, nil
}

// Key returns the cache key the cache would use for a URL.
func (c *Cache) Key(rawURL string) string {
	return NormalizeURL(rawURL)
}

// GetOrFetchKeyed is GetOrFetch for non-URL resource identities, such
// as "github:{owner}/{repo}". The key is used verbatim.
func (c *Cache) GetOrFetchKeyed(ctx context.Context, key string, fetcher Fetcher) (model.FetchResult, error) {
	if entry, ok, err := c.store.Get(ctx, key); err != nil {
		return model.FetchResult{}, err
	} else if ok {
		entry.CacheHit = true
		return entry, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if entry, ok, err := c.store.Get(ctx, key); err != nil {
			return model.FetchResult{}, err
		} else if ok {
			entry.CacheHit = true
			return entry, nil
		}

		result, err := fetcher(ctx)
		if err != nil {
			return model.FetchResult{}, err
		}
		if result.SourceURL == "" {
			result.SourceURL = key
		}
		result.CacheHit = false

		if result.OK() {
			if err := c.store.Put(ctx, key, result); err != nil {
				return model.FetchResult{}, err
			}
		}
		return result, nil
	})
	if err != nil {
		return model.FetchResult{}, err
	}
	return v.(model.FetchResult), nil
}
