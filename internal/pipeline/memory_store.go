package pipeline

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/ledgerlift/receipt-api/internal/store"
)

// MemoryJobStore is an in-process implementation of store.JobStore with the
// same ordering, lease and idempotency semantics as the postgres store. It
// backs the pipeline tests and single-node development setups.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job

	// seq preserves enqueue order inside a priority tier even when two jobs
	// share a creation timestamp.
	seq     map[uuid.UUID]uint64
	nextSeq uint64

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[uuid.UUID]*domain.Job),
		seq:  make(map[uuid.UUID]uint64),
		now:  time.Now,
	}
}

// CreateJob inserts a new queued job, enforcing the single-active-job
// invariant per identity key.
func (s *MemoryJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return store.NewStoreError("job", "create", "validation failed", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.jobs {
		if existing.IdentityKey == job.IdentityKey && existing.Active() {
			return store.ErrDuplicateIdentity
		}
	}

	clone := *job
	s.jobs[job.ID] = &clone
	s.nextSeq++
	s.seq[job.ID] = s.nextSeq
	return nil
}

// GetJobByID retrieves a job by ID.
func (s *MemoryJobStore) GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	clone := *job
	return &clone, nil
}

// GetActiveJobByIdentity retrieves the queued or processing job for the key.
func (s *MemoryJobStore) GetActiveJobByIdentity(ctx context.Context, identityKey string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.IdentityKey == identityKey && job.Active() {
			clone := *job
			return &clone, nil
		}
	}
	return nil, store.ErrJobNotFound
}

// Dequeue claims the highest-priority eligible job: priority rank first,
// enqueue order within a tier.
func (s *MemoryJobStore) Dequeue(
	ctx context.Context,
	workerID string,
	leaseFor time.Duration,
) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()

	var eligible []*domain.Job
	for _, job := range s.jobs {
		if job.State == domain.JobStateQueued && !job.NextEligibleAt.After(now) {
			eligible = append(eligible, job)
		}
	}
	if len(eligible) == 0 {
		return nil, store.ErrNoEligibleJobs
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority.Rank() != eligible[j].Priority.Rank() {
			return eligible[i].Priority.Rank() > eligible[j].Priority.Rank()
		}
		return s.seq[eligible[i].ID] < s.seq[eligible[j].ID]
	})

	job := eligible[0]
	leaseExpiry := now.Add(leaseFor)
	job.State = domain.JobStateProcessing
	job.WorkerID = workerID
	job.LeaseExpiresAt = &leaseExpiry
	job.UpdatedAt = now

	clone := *job
	return &clone, nil
}

// AckSucceeded commits the terminal succeeded state.
func (s *MemoryJobStore) AckSucceeded(ctx context.Context, jobID uuid.UUID, resultRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.ResultRef != "" && job.ResultRef != resultRef {
		return store.NewStoreError("job", "ack", "result reference already set", domain.ErrResultRefImmutable)
	}

	now := s.now().UTC()
	job.State = domain.JobStateSucceeded
	job.ResultRef = resultRef
	job.Attempt++
	job.WorkerID = ""
	job.LeaseExpiresAt = nil
	job.UpdatedAt = now
	return nil
}

// AckRetry reschedules a transiently-failed job behind its backoff gate.
func (s *MemoryJobStore) AckRetry(
	ctx context.Context,
	jobID uuid.UUID,
	attempt int,
	nextEligibleAt time.Time,
	failure domain.FailureKind,
	message string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}

	job.State = domain.JobStateQueued
	job.Attempt = attempt
	job.NextEligibleAt = nextEligibleAt
	job.LastFailure = failure
	job.LastError = message
	job.WorkerID = ""
	job.LeaseExpiresAt = nil
	job.UpdatedAt = s.now().UTC()
	return nil
}

// AckDeadLettered commits the terminal dead-lettered state.
func (s *MemoryJobStore) AckDeadLettered(
	ctx context.Context,
	jobID uuid.UUID,
	attempt int,
	failure domain.FailureKind,
	message string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}

	job.State = domain.JobStateDeadLettered
	job.Attempt = attempt
	job.LastFailure = failure
	job.LastError = message
	job.WorkerID = ""
	job.LeaseExpiresAt = nil
	job.UpdatedAt = s.now().UTC()
	return nil
}

// ReclaimExpired returns lease-expired processing jobs to the queue without
// touching their attempt count.
func (s *MemoryJobStore) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reclaimed := 0
	for _, job := range s.jobs {
		if job.State == domain.JobStateProcessing &&
			job.LeaseExpiresAt != nil && job.LeaseExpiresAt.Before(now) {
			job.State = domain.JobStateQueued
			job.WorkerID = ""
			job.LeaseExpiresAt = nil
			job.UpdatedAt = now
			reclaimed++
		}
	}
	return reclaimed, nil
}

// ListDeadLettered returns dead-lettered jobs, newest first.
func (s *MemoryJobStore) ListDeadLettered(ctx context.Context, limit, offset int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dead []*domain.Job
	for _, job := range s.jobs {
		if job.State == domain.JobStateDeadLettered {
			clone := *job
			dead = append(dead, &clone)
		}
	}
	sort.Slice(dead, func(i, j int) bool {
		return dead[i].UpdatedAt.After(dead[j].UpdatedAt)
	})

	if offset >= len(dead) {
		return nil, nil
	}
	dead = dead[offset:]
	if limit > 0 && limit < len(dead) {
		dead = dead[:limit]
	}
	return dead, nil
}

// WithTx returns the store itself; the in-memory store has no transactions.
func (s *MemoryJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return s
}

// Ensure MemoryJobStore implements store.JobStore
var _ store.JobStore = (*MemoryJobStore)(nil)
