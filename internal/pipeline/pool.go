package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/ledgerlift/receipt-api/internal/store"
)

// ImageFetcher retrieves submitted image bytes from blob storage.
type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// ResultPersister durably records a successful analysis: the blob/ledger
// write collaborators behind one call. Failures are treated as transient
// infrastructure failures subject to the same retry policy as the
// analysis call, unless they wrap ErrResultRejected.
type ResultPersister interface {
	PersistResult(
		ctx context.Context,
		job *domain.Job,
		payload *JobPayload,
		result *analysis.Result,
	) (resultRef string, err error)
}

// ErrResultRejected marks a persister failure that is deterministic for the
// job's payload and result. Retrying would repeat the analysis call and hit
// the same rejection, so these dead-letter immediately.
var ErrResultRejected = errors.New("analysis result rejected by persister")

// WorkerPoolConfig holds configuration for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent workers process jobs.
	// If zero or negative, defaults to 1.
	WorkerCount int

	// PollInterval bounds how long an idle worker waits before asking the
	// queue for work again.
	PollInterval time.Duration

	// LeaseDuration is how long a dequeued job stays owned by its worker
	// before the reclaim sweep may return it to the queue.
	LeaseDuration time.Duration

	// ReclaimInterval is how often the reclaim sweep runs.
	ReclaimInterval time.Duration

	// CallTimeout bounds a single external analysis call.
	CallTimeout time.Duration

	// CacheTTL is how long successful results short-circuit reprocessing.
	CacheTTL time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:     4,
		PollInterval:    time.Second,
		LeaseDuration:   2 * time.Minute,
		ReclaimInterval: 30 * time.Second,
		CallTimeout:     60 * time.Second,
		CacheTTL:        24 * time.Hour,
	}
}

// WorkerPool runs a fixed set of workers over the queue store. Each worker
// loops dequeue → result-cache check → rate-limiter acquire → analysis →
// persist → ack; failures go to the retry controller. A background sweep
// reclaims jobs whose worker died holding a lease.
type WorkerPool struct {
	jobs      store.JobStore
	results   ResultCache
	limiter   *TokenBucket
	analyzer  analysis.Analyzer
	images    ImageFetcher
	persister ResultPersister
	retry     *RetryController
	config    WorkerPoolConfig
	logger    *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewWorkerPool creates a worker pool wired to the shared pipeline services.
// All dependencies are required.
func NewWorkerPool(
	jobs store.JobStore,
	results ResultCache,
	limiter *TokenBucket,
	analyzer analysis.Analyzer,
	images ImageFetcher,
	persister ResultPersister,
	retry *RetryController,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPool, error) {
	switch {
	case jobs == nil:
		return nil, ErrNilJobStore
	case results == nil:
		return nil, ErrNilResultCache
	case limiter == nil:
		return nil, errors.New("rate limiter cannot be nil")
	case analyzer == nil:
		return nil, errors.New("analyzer cannot be nil")
	case images == nil:
		return nil, errors.New("image fetcher cannot be nil")
	case persister == nil:
		return nil, errors.New("result persister cannot be nil")
	case retry == nil:
		return nil, errors.New("retry controller cannot be nil")
	case logger == nil:
		return nil, ErrNilLogger
	}

	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.ReclaimInterval <= 0 {
		config.ReclaimInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		jobs:       jobs,
		results:    results,
		limiter:    limiter,
		analyzer:   analyzer,
		images:     images,
		persister:  persister,
		retry:      retry,
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
	}, nil
}

// Start launches the worker goroutines and the reclaim sweeper.
func (p *WorkerPool) Start() {
	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("worker-%d-%s", i, uuid.NewString()[:8])
		p.wg.Add(1)
		go p.worker(workerID)
	}

	p.wg.Add(1)
	go p.reclaimLoop()
}

// Stop signals all workers to finish and waits for them. Workers stop
// picking up new jobs; a job abandoned mid-processing is returned to the
// queue by lease expiry.
func (p *WorkerPool) Stop() {
	p.cancelFunc()
	p.wg.Wait()
}

// worker is the per-goroutine loop: dequeue, process, repeat. When the
// queue has nothing eligible the worker sleeps for the poll interval
// instead of busy-spinning.
func (p *WorkerPool) worker(workerID string) {
	defer p.wg.Done()

	log := p.logger.With("worker_id", workerID)
	log.Debug("starting worker")

	for {
		select {
		case <-p.ctx.Done():
			log.Debug("stopping worker")
			return
		default:
		}

		job, err := p.jobs.Dequeue(p.ctx, workerID, p.config.LeaseDuration)
		if err != nil {
			if !errors.Is(err, store.ErrNoEligibleJobs) && !errors.Is(err, context.Canceled) {
				log.Error("dequeue failed", "error", err)
			}
			p.sleep(p.config.PollInterval)
			continue
		}

		p.process(job, log)
	}
}

// process handles a single claimed job through to an ack.
func (p *WorkerPool) process(job *domain.Job, log *slog.Logger) {
	ctx := p.ctx
	log = log.With(
		"job_id", job.ID,
		"identity_key", job.IdentityKey,
		"attempt", job.Attempt,
	)

	payload, err := UnmarshalJobPayload(job.Payload)
	if err != nil {
		// A payload that cannot be decoded never will be; dead-letter it.
		log.Error("job payload invalid", "error", err)
		p.deadLetter(ctx, job, p.retry.Decide(job.Attempt, fmt.Errorf("%w: %v", analysis.ErrPermanent, err)), log)
		return
	}

	// A job with this identity may have completed between enqueue and
	// dequeue; the cache check keeps us from paying for the call twice.
	if entry, ok, err := p.results.GetResult(ctx, job.IdentityKey); err != nil {
		log.Warn("result cache lookup failed, proceeding with analysis", "error", err)
	} else if ok {
		log.Info("result cache hit, skipping analysis call", "result_ref", entry.ResultRef)
		if err := p.jobs.AckSucceeded(ctx, job.ID, entry.ResultRef); err != nil {
			log.Error("failed to ack cached result", "error", err)
		}
		return
	}

	if err := p.limiter.Acquire(ctx, 1); err != nil {
		// Shutdown while waiting for quota. The job stays processing and
		// lease expiry returns it to the queue with its attempt untouched.
		log.Debug("rate limiter acquire aborted", "error", err)
		return
	}

	result, err := p.analyze(ctx, payload)
	if err != nil {
		p.resolveFailure(ctx, job, err, log)
		return
	}

	resultRef, err := p.persister.PersistResult(ctx, job, payload, result)
	if err != nil {
		if errors.Is(err, ErrResultRejected) {
			// A deterministic rejection; another attempt would bill another
			// analysis call and fail the same way.
			p.resolveFailure(ctx, job, fmt.Errorf("%w: persist result: %v", analysis.ErrPermanent, err), log)
			return
		}
		// Ledger/storage writes are infrastructure; retry like the call itself.
		p.resolveFailure(ctx, job, fmt.Errorf("%w: persist result: %v", analysis.ErrTransient, err), log)
		return
	}

	entry := &ResultCacheEntry{
		JobID:      job.ID,
		ResultRef:  resultRef,
		ComputedAt: time.Now().UTC(),
	}
	if err := p.results.SetResult(ctx, job.IdentityKey, entry, p.config.CacheTTL); err != nil {
		// Cache write failure costs a potential duplicate call later, not
		// correctness; the ledger write already happened.
		log.Warn("failed to write result cache", "error", err)
	}

	if err := p.jobs.AckSucceeded(ctx, job.ID, resultRef); err != nil {
		log.Error("failed to ack succeeded job", "error", err)
		return
	}

	log.Info("job succeeded", "result_ref", resultRef)
}

// analyze fetches the image and runs the bounded external call.
func (p *WorkerPool) analyze(ctx context.Context, payload *JobPayload) (*analysis.Result, error) {
	image, err := p.images.Fetch(ctx, payload.ImageRef)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch image: %v", analysis.ErrTransient, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.config.CallTimeout)
	defer cancel()

	return p.analyzer.Analyze(callCtx, image, payload.Params)
}

// resolveFailure routes a failure through the retry controller and commits
// its decision.
func (p *WorkerPool) resolveFailure(ctx context.Context, job *domain.Job, cause error, log *slog.Logger) {
	decision := p.retry.Decide(job.Attempt, cause)

	switch decision.Action {
	case ActionRetry:
		log.Warn("job failed, scheduling retry",
			"error", cause,
			"next_attempt", decision.Attempt+1,
			"next_eligible_at", decision.NextEligibleAt)
		err := p.jobs.AckRetry(ctx, job.ID,
			decision.Attempt, decision.NextEligibleAt, decision.Failure, decision.Message)
		if err != nil {
			log.Error("failed to reschedule job", "error", err)
		}
	case ActionDeadLetter:
		p.deadLetter(ctx, job, decision, log)
	}
}

// deadLetter commits a dead-letter decision.
func (p *WorkerPool) deadLetter(ctx context.Context, job *domain.Job, decision RetryDecision, log *slog.Logger) {
	log.Error("job dead-lettered",
		"failure", decision.Failure,
		"message", decision.Message,
		"attempt", decision.Attempt)
	err := p.jobs.AckDeadLettered(ctx, job.ID, decision.Attempt, decision.Failure, decision.Message)
	if err != nil {
		log.Error("failed to dead-letter job", "error", err)
	}
}

// reclaimLoop periodically returns lease-expired processing jobs to the
// queue. Runs on a timer, independent of the workers.
func (p *WorkerPool) reclaimLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := p.jobs.ReclaimExpired(p.ctx, time.Now().UTC())
			if err != nil {
				p.logger.Error("reclaim sweep failed", "error", err)
				continue
			}
			if reclaimed > 0 {
				p.logger.Info("reclaimed expired job leases", "count", reclaimed)
			}
		}
	}
}

// sleep waits for d or until shutdown.
func (p *WorkerPool) sleep(d time.Duration) {
	select {
	case <-p.ctx.Done():
	case <-time.After(d):
	}
}
