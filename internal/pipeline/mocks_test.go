package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/ledgerlift/receipt-api/internal/domain"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// fakeResultCache is a map-backed ResultCache with TTL semantics.
type fakeResultCache struct {
	mu      sync.Mutex
	entries map[string]ResultCacheEntry
	expiry  map[string]time.Time
}

func newFakeResultCache() *fakeResultCache {
	return &fakeResultCache{
		entries: make(map[string]ResultCacheEntry),
		expiry:  make(map[string]time.Time),
	}
}

func (c *fakeResultCache) GetResult(ctx context.Context, identityKey string) (*ResultCacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[identityKey]
	if !ok {
		return nil, false, nil
	}
	if exp, ok := c.expiry[identityKey]; ok && time.Now().After(exp) {
		delete(c.entries, identityKey)
		delete(c.expiry, identityKey)
		return nil, false, nil
	}
	clone := entry
	return &clone, true, nil
}

func (c *fakeResultCache) SetResult(ctx context.Context, identityKey string, entry *ResultCacheEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[identityKey] = *entry
	if ttl > 0 {
		c.expiry[identityKey] = time.Now().Add(ttl)
	}
	return nil
}

// fakeAnalyzer counts calls and returns scripted outcomes per identity.
type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int

	// errs is a queue of errors to return before succeeding. nil entries
	// mean success.
	errs []error

	result *analysis.Result
}

func newFakeAnalyzer(result *analysis.Result, errs ...error) *fakeAnalyzer {
	return &fakeAnalyzer{result: result, errs: errs}
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, image []byte, params analysis.Params) (*analysis.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls++
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return a.result, nil
}

func (a *fakeAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// fakeFetcher serves image bytes by ref.
type fakeFetcher struct {
	mu     sync.Mutex
	images map[string][]byte
	err    error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{images: map[string][]byte{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	image, ok := f.images[ref]
	if !ok {
		return nil, errors.New("object not found")
	}
	return image, nil
}

// fakePersister returns a fixed result ref per job.
type fakePersister struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *fakePersister) PersistResult(
	ctx context.Context,
	job *domain.Job,
	payload *JobPayload,
	result *analysis.Result,
) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return "receipt-" + job.ID.String(), nil
}

func testPayload(imageRef string) *JobPayload {
	return &JobPayload{
		ImageRef:    imageRef,
		Params:      analysis.Params{Mode: analysis.ModeReceipt},
		SubmittedAt: time.Now().UTC(),
	}
}
