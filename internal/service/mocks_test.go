package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/ledgerlift/receipt-api/internal/pipeline"
	"github.com/ledgerlift/receipt-api/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeObjectStore stores blobs in a map keyed by a counter-based ref.
type fakeObjectStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{blobs: map[string][]byte{}}
}

func (f *fakeObjectStore) Put(ctx context.Context, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	ref := "blob-" + uuid.NewString()
	f.blobs[ref] = data
	return ref, nil
}

func (f *fakeObjectStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.blobs[ref]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

// fakeReceiptStore is a map-backed store.ReceiptStore enforcing the
// one-receipt-per-job index.
type fakeReceiptStore struct {
	mu       sync.Mutex
	receipts map[uuid.UUID]*domain.Receipt
	err      error
}

func newFakeReceiptStore() *fakeReceiptStore {
	return &fakeReceiptStore{receipts: map[uuid.UUID]*domain.Receipt{}}
}

func (f *fakeReceiptStore) Create(ctx context.Context, receipt *domain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if err := receipt.Validate(); err != nil {
		return err
	}
	for _, existing := range f.receipts {
		if existing.JobID == receipt.JobID {
			return store.ErrDuplicate
		}
	}
	clone := *receipt
	f.receipts[receipt.ID] = &clone
	return nil
}

func (f *fakeReceiptStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	receipt, ok := f.receipts[id]
	if !ok {
		return nil, store.ErrReceiptNotFound
	}
	clone := *receipt
	return &clone, nil
}

func (f *fakeReceiptStore) GetByJobID(ctx context.Context, jobID uuid.UUID) (*domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, receipt := range f.receipts {
		if receipt.JobID == jobID {
			clone := *receipt
			return &clone, nil
		}
	}
	return nil, store.ErrReceiptNotFound
}

func (f *fakeReceiptStore) WithTx(tx *sql.Tx) store.ReceiptStore {
	return f
}

// memoryResultCache adapts pipeline's contract for the submitter.
type memoryResultCache struct {
	mu      sync.Mutex
	entries map[string]pipeline.ResultCacheEntry
}

func newMemoryResultCache() *memoryResultCache {
	return &memoryResultCache{entries: map[string]pipeline.ResultCacheEntry{}}
}

func (c *memoryResultCache) GetResult(ctx context.Context, identityKey string) (*pipeline.ResultCacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[identityKey]
	if !ok {
		return nil, false, nil
	}
	clone := entry
	return &clone, true, nil
}

func (c *memoryResultCache) SetResult(ctx context.Context, identityKey string, entry *pipeline.ResultCacheEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[identityKey] = *entry
	return nil
}
