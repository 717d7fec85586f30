package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/ledgerlift/receipt-api/internal/store"
)

// jobColumns is the column list shared by every job query, in scanJob order.
const jobColumns = `id, identity_key, priority, state, payload, attempt,
	next_eligible_at, lease_expires_at, worker_id, result_ref,
	last_error, last_failure, created_at, updated_at`

// priorityRankSQL orders jobs the same way domain.JobPriority.Rank does.
const priorityRankSQL = `CASE priority WHEN 'high' THEN 2 WHEN 'normal' THEN 1 ELSE 0 END`

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// CreateJob implements store.JobStore.CreateJob. The partial unique index
// on identity_key converts a lost insert race into ErrDuplicateIdentity.
func (s *PostgresJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return store.NewStoreError("job", "create", "validation failed", err)
	}

	query := `
		INSERT INTO jobs (id, identity_key, priority, state, payload, attempt,
			next_eligible_at, worker_id, result_ref, last_error, last_failure,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '', '', '', '', $8, $8)
	`

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.IdentityKey,
		string(job.Priority),
		string(job.State),
		[]byte(job.Payload),
		job.Attempt,
		job.NextEligibleAt.UTC(),
		now,
	)
	if err != nil {
		mapped := MapError(err)
		s.logger.ErrorContext(ctx, "failed to create job",
			"job_id", job.ID,
			"identity_key", job.IdentityKey,
			"error", mapped)
		return mapped
	}

	return nil
}

// GetJobByID implements store.JobStore.GetJobByID.
func (s *PostgresJobStore) GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1`, jobColumns)

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}
	return job, nil
}

// GetActiveJobByIdentity implements store.JobStore.GetActiveJobByIdentity.
func (s *PostgresJobStore) GetActiveJobByIdentity(
	ctx context.Context,
	identityKey string,
) (*domain.Job, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE identity_key = $1 AND state IN ('queued', 'processing')
		LIMIT 1
	`, jobColumns)

	job, err := scanJob(s.db.QueryRowContext(ctx, query, identityKey))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}
	return job, nil
}

// Dequeue implements store.JobStore.Dequeue. The claim is a single
// statement: SKIP LOCKED keeps concurrent workers from blocking on or
// double-claiming the same row, and the CTE's ordering picks the highest
// priority first, oldest first within a tier.
func (s *PostgresJobStore) Dequeue(
	ctx context.Context,
	workerID string,
	leaseFor time.Duration,
) (*domain.Job, error) {
	query := fmt.Sprintf(`
		WITH claimed AS (
			SELECT id FROM jobs
			WHERE state = 'queued' AND next_eligible_at <= $1
			ORDER BY %s DESC, created_at ASC, id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE jobs SET
			state = 'processing',
			worker_id = $2,
			lease_expires_at = $3,
			updated_at = $1
		FROM claimed
		WHERE jobs.id = claimed.id
		RETURNING %s
	`, priorityRankSQL, qualifiedJobColumns())

	now := time.Now().UTC()
	job, err := scanJob(s.db.QueryRowContext(ctx, query, now, workerID, now.Add(leaseFor)))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrNoEligibleJobs
		}
		return nil, MapError(err)
	}
	return job, nil
}

// AckSucceeded implements store.JobStore.AckSucceeded. The attempt counter
// includes the successful attempt, and a previously set result reference
// only accepts an identical re-ack.
func (s *PostgresJobStore) AckSucceeded(ctx context.Context, jobID uuid.UUID, resultRef string) error {
	query := `
		UPDATE jobs SET
			state = 'succeeded',
			result_ref = $2,
			attempt = attempt + 1,
			worker_id = '',
			lease_expires_at = NULL,
			updated_at = $3
		WHERE id = $1 AND (result_ref = '' OR result_ref = $2)
	`

	result, err := s.db.ExecContext(ctx, query, jobID, resultRef, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "job"); err != nil {
		// Distinguish a missing job from a conflicting result reference.
		if _, lookupErr := s.GetJobByID(ctx, jobID); lookupErr != nil {
			return store.ErrJobNotFound
		}
		return store.NewStoreError("job", "ack", "result reference already set", domain.ErrResultRefImmutable)
	}

	return nil
}

// AckRetry implements store.JobStore.AckRetry.
func (s *PostgresJobStore) AckRetry(
	ctx context.Context,
	jobID uuid.UUID,
	attempt int,
	nextEligibleAt time.Time,
	failure domain.FailureKind,
	message string,
) error {
	query := `
		UPDATE jobs SET
			state = 'queued',
			attempt = $2,
			next_eligible_at = $3,
			last_failure = $4,
			last_error = $5,
			worker_id = '',
			lease_expires_at = NULL,
			updated_at = $6
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		jobID, attempt, nextEligibleAt.UTC(), string(failure), message, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "job"); err != nil {
		return store.ErrJobNotFound
	}
	return nil
}

// AckDeadLettered implements store.JobStore.AckDeadLettered.
func (s *PostgresJobStore) AckDeadLettered(
	ctx context.Context,
	jobID uuid.UUID,
	attempt int,
	failure domain.FailureKind,
	message string,
) error {
	query := `
		UPDATE jobs SET
			state = 'dead_lettered',
			attempt = $2,
			last_failure = $3,
			last_error = $4,
			worker_id = '',
			lease_expires_at = NULL,
			updated_at = $5
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		jobID, attempt, string(failure), message, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "job"); err != nil {
		return store.ErrJobNotFound
	}
	return nil
}

// ReclaimExpired implements store.JobStore.ReclaimExpired. Reclaimed jobs
// keep their attempt count: a worker crash is lost work, not a failure.
func (s *PostgresJobStore) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE jobs SET
			state = 'queued',
			worker_id = '',
			lease_expires_at = NULL,
			updated_at = $1
		WHERE state = 'processing'
			AND lease_expires_at IS NOT NULL
			AND lease_expires_at < $1
	`

	result, err := s.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, MapError(err)
	}

	reclaimed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(reclaimed), nil
}

// ListDeadLettered implements store.JobStore.ListDeadLettered.
func (s *PostgresJobStore) ListDeadLettered(ctx context.Context, limit, offset int) ([]*domain.Job, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE state = 'dead_lettered'
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`, jobColumns)

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, MapError(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return jobs, nil
}

// WithTx implements store.JobStore.WithTx.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanJob reads one job row in jobColumns order.
func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job            domain.Job
		priority       string
		state          string
		leaseExpiresAt sql.NullTime
		lastFailure    string
	)

	err := row.Scan(
		&job.ID,
		&job.IdentityKey,
		&priority,
		&state,
		&job.Payload,
		&job.Attempt,
		&job.NextEligibleAt,
		&leaseExpiresAt,
		&job.WorkerID,
		&job.ResultRef,
		&job.LastError,
		&lastFailure,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Priority = domain.JobPriority(priority)
	job.State = domain.JobState(state)
	job.LastFailure = domain.FailureKind(lastFailure)
	if leaseExpiresAt.Valid {
		lease := leaseExpiresAt.Time
		job.LeaseExpiresAt = &lease
	}
	return &job, nil
}

// qualifiedJobColumns prefixes jobColumns with the jobs table name for
// queries where the column list would otherwise be ambiguous.
func qualifiedJobColumns() string {
	return `jobs.id, jobs.identity_key, jobs.priority, jobs.state, jobs.payload,
	jobs.attempt, jobs.next_eligible_at, jobs.lease_expires_at, jobs.worker_id,
	jobs.result_ref, jobs.last_error, jobs.last_failure, jobs.created_at, jobs.updated_at`
}
