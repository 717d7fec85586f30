package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/ledgerlift/receipt-api/internal/store"
)

// Common submitter errors
var (
	ErrNilJobStore    = errors.New("job store cannot be nil")
	ErrNilResultCache = errors.New("result cache cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
)

// SubmitOutcome is the result of a submission.
type SubmitOutcome struct {
	// JobID identifies the job the submission resolved to: a newly created
	// job, or the live job the submission attached to, or the job that
	// produced the cached result.
	JobID uuid.UUID

	// IsNew reports whether a new job was created for this submission.
	IsNew bool

	// Completed reports that an unexpired cached result satisfied the
	// submission; no enqueue occurred and ResultRef is set.
	Completed bool

	// ResultRef is the prior result reference on a cache hit.
	ResultRef string
}

// Submitter is the idempotency layer in front of the queue. It guarantees
// that at most one job with a given identity key is queued or processing at
// any time: concurrent submissions racing on the same identity resolve to a
// single job, and identities with an unexpired cached result never enqueue
// at all.
type Submitter struct {
	jobs   store.JobStore
	cache  ResultCache
	logger *slog.Logger

	// mu serializes the check-and-create sequence. The store's duplicate
	// detection on insert is the backstop for races crossing process
	// boundaries.
	mu sync.Mutex
}

// NewSubmitter creates a Submitter over the given queue store and result cache.
func NewSubmitter(jobs store.JobStore, cache ResultCache, logger *slog.Logger) (*Submitter, error) {
	if jobs == nil {
		return nil, ErrNilJobStore
	}
	if cache == nil {
		return nil, ErrNilResultCache
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &Submitter{
		jobs:   jobs,
		cache:  cache,
		logger: logger.With("component", "submitter"),
	}, nil
}

// Submit resolves a request identity to a job:
//   - an unexpired cached result returns immediately as Completed;
//   - a live job with the same identity is returned with IsNew=false, and
//     the caller should poll it;
//   - otherwise a new job is created, enqueued and returned with IsNew=true.
func (s *Submitter) Submit(
	ctx context.Context,
	identityKey string,
	priority domain.JobPriority,
	payload *JobPayload,
) (*SubmitOutcome, error) {
	log := s.logger.With("identity_key", identityKey)

	// Cached result short-circuits everything; no lock needed since a stale
	// read here only means we fall through to the index check.
	if entry, ok, err := s.cache.GetResult(ctx, identityKey); err != nil {
		log.Warn("result cache lookup failed, continuing to index", "error", err)
	} else if ok {
		log.Debug("submission satisfied from result cache", "result_ref", entry.ResultRef)
		return &SubmitOutcome{
			JobID:     entry.JobID,
			Completed: true,
			ResultRef: entry.ResultRef,
		}, nil
	}

	data, err := payload.Marshal()
	if err != nil {
		return nil, fmt.Errorf("invalid job payload: %w", err)
	}

	// Check-and-create is one logical transaction with respect to
	// concurrent submitters racing on the same identity.
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.jobs.GetActiveJobByIdentity(ctx, identityKey); err == nil {
		log.Debug("attached submission to existing job", "job_id", existing.ID)
		return &SubmitOutcome{JobID: existing.ID, IsNew: false}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check idempotency index: %w", err)
	}

	job, err := domain.NewJob(identityKey, priority, data)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.jobs.CreateJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateIdentity) {
			// Lost an insert race across processes; attach to the winner.
			existing, lookupErr := s.jobs.GetActiveJobByIdentity(ctx, identityKey)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to resolve duplicate identity: %w", lookupErr)
			}
			log.Debug("attached submission to racing job", "job_id", existing.ID)
			return &SubmitOutcome{JobID: existing.ID, IsNew: false}, nil
		}
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Info("job enqueued",
		"job_id", job.ID,
		"priority", job.Priority)
	return &SubmitOutcome{JobID: job.ID, IsNew: true}, nil
}

// GetJob exposes job status for polling submitters.
func (s *Submitter) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	return s.jobs.GetJobByID(ctx, jobID)
}
