package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerlift/receipt-api/internal/pipeline"
)

// ResultCache adapts a Cache into the pipeline's identity → result mapping.
type ResultCache struct {
	cache Cache
}

// NewResultCache creates a ResultCache over the given backing cache.
func NewResultCache(cache Cache) *ResultCache {
	return &ResultCache{cache: cache}
}

// GetResult returns the cached entry for the identity key, if present and
// unexpired. A corrupt entry is treated as absent rather than failing the
// lookup.
func (r *ResultCache) GetResult(
	ctx context.Context,
	identityKey string,
) (*pipeline.ResultCacheEntry, bool, error) {
	data, ok, err := r.cache.Get(ctx, ResultKey(identityKey))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read result cache: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var entry pipeline.ResultCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, nil
	}
	return &entry, true, nil
}

// SetResult stores the entry for the identity key with the given TTL.
func (r *ResultCache) SetResult(
	ctx context.Context,
	identityKey string,
	entry *pipeline.ResultCacheEntry,
	ttl time.Duration,
) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal result cache entry: %w", err)
	}
	if err := r.cache.Set(ctx, ResultKey(identityKey), data, ttl); err != nil {
		return fmt.Errorf("failed to write result cache: %w", err)
	}
	return nil
}

// Ensure ResultCache implements pipeline.ResultCache
var _ pipeline.ResultCache = (*ResultCache)(nil)
