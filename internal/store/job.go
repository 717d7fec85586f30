package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/domain"
)

// JobStore is the durable, priority-aware queue over job records. It
// exclusively owns job state transitions: workers and submitters request
// transitions through these methods, and only the store commits them.
// Version: 1.0
type JobStore interface {
	// CreateJob inserts a new job in the queued state. Returns
	// ErrDuplicateIdentity if a queued or processing job with the same
	// identity key already exists; callers should attach to that job.
	CreateJob(ctx context.Context, job *domain.Job) error

	// GetJobByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// GetActiveJobByIdentity retrieves the queued or processing job with
	// the given identity key, if one exists.
	// Returns ErrJobNotFound if no active job matches.
	GetActiveJobByIdentity(ctx context.Context, identityKey string) (*domain.Job, error)

	// Dequeue atomically claims the highest-priority eligible job: the
	// queued job with next_eligible_at <= now, highest priority first,
	// oldest first within a tier. The claimed job is marked processing with
	// the given owner and a lease expiring after leaseFor.
	// Returns ErrNoEligibleJobs when nothing is eligible.
	Dequeue(ctx context.Context, workerID string, leaseFor time.Duration) (*domain.Job, error)

	// AckSucceeded commits the terminal succeeded state with the result
	// reference. The result reference is immutable once set.
	AckSucceeded(ctx context.Context, jobID uuid.UUID, resultRef string) error

	// AckRetry reschedules a transiently-failed job: back to queued with
	// the incremented attempt count, the backoff gate, and the failure
	// recorded for observability.
	AckRetry(
		ctx context.Context,
		jobID uuid.UUID,
		attempt int,
		nextEligibleAt time.Time,
		failure domain.FailureKind,
		message string,
	) error

	// AckDeadLettered commits the terminal dead-lettered state, recording
	// the classification and message for operator triage.
	AckDeadLettered(
		ctx context.Context,
		jobID uuid.UUID,
		attempt int,
		failure domain.FailureKind,
		message string,
	) error

	// ReclaimExpired returns processing jobs whose lease expired before now
	// back to the queued state without touching their attempt count: a
	// worker crash is lost work to redo, not an application failure.
	// Returns the number of jobs reclaimed.
	ReclaimExpired(ctx context.Context, now time.Time) (int, error)

	// ListDeadLettered retrieves dead-lettered jobs, newest first, for
	// inspection. Dead-lettered jobs are never silently dropped.
	ListDeadLettered(ctx context.Context, limit, offset int) ([]*domain.Job, error)

	// WithTx returns a new JobStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) JobStore
}
