package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ResultCacheEntry maps an identity key to a prior successful result. An
// unexpired entry short-circuits reprocessing: submitters return it without
// enqueueing, and workers ack with it without calling the analysis service.
type ResultCacheEntry struct {
	JobID      uuid.UUID `json:"job_id"`
	ResultRef  string    `json:"result_ref"`
	ComputedAt time.Time `json:"computed_at"`
}

// ResultCache is the identity → result mapping shared by submitters and
// workers. Entries expire after the configured TTL, after which the request
// is recomputed. Implementations must be safe for concurrent use.
type ResultCache interface {
	// GetResult returns the cached entry for the identity key, if present
	// and unexpired.
	GetResult(ctx context.Context, identityKey string) (*ResultCacheEntry, bool, error)

	// SetResult stores the entry for the identity key with the given TTL.
	SetResult(ctx context.Context, identityKey string, entry *ResultCacheEntry, ttl time.Duration) error
}
