package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobState represents the processing state of a job
type JobState string

// Possible job state values
const (
	JobStateQueued       JobState = "queued"
	JobStateProcessing   JobState = "processing"
	JobStateSucceeded    JobState = "succeeded"
	JobStateFailed       JobState = "failed"
	JobStateDeadLettered JobState = "dead_lettered"
)

// JobPriority orders jobs in the queue. Higher-priority jobs are always
// served before lower-priority ones; within a tier jobs are FIFO.
type JobPriority string

// Possible job priority values
const (
	JobPriorityLow    JobPriority = "low"
	JobPriorityNormal JobPriority = "normal"
	JobPriorityHigh   JobPriority = "high"
)

// FailureKind classifies the last failure recorded on a job.
type FailureKind string

// Possible failure classifications
const (
	// FailureTransient marks retryable failures: timeouts, upstream rate
	// limiting, temporary infrastructure errors.
	FailureTransient FailureKind = "transient"

	// FailurePermanent marks non-retryable failures: invalid input or a
	// policy rejection from the analysis service.
	FailurePermanent FailureKind = "permanent"

	// FailureExhausted marks a transient failure that used up all attempts.
	// Distinct from FailurePermanent only for operator triage.
	FailureExhausted FailureKind = "exhausted"
)

// Common validation errors for Job
var (
	ErrEmptyJobID         = errors.New("job ID cannot be empty")
	ErrEmptyIdentityKey   = errors.New("job identity key cannot be empty")
	ErrInvalidJobState    = errors.New("invalid job state")
	ErrInvalidJobPriority = errors.New("invalid job priority")
	ErrEmptyJobPayload    = errors.New("job payload cannot be empty")
	ErrResultRefImmutable = errors.New("job result reference is already set")
)

// Job is the unit of work in the analysis pipeline. It tracks the identity
// of the underlying request, the queue state machine, retry accounting and
// the lease held by a processing worker.
type Job struct {
	ID             uuid.UUID       `json:"id"`
	IdentityKey    string          `json:"identity_key"`
	Priority       JobPriority     `json:"priority"`
	State          JobState        `json:"state"`
	Payload        json.RawMessage `json:"payload"`
	Attempt        int             `json:"attempt"`
	NextEligibleAt time.Time       `json:"next_eligible_at"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty"`
	WorkerID       string          `json:"worker_id,omitempty"`
	ResultRef      string          `json:"result_ref,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	LastFailure    FailureKind     `json:"last_failure,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewJob creates a new Job in the queued state, eligible immediately.
// Returns an error if validation fails.
func NewJob(identityKey string, priority JobPriority, payload json.RawMessage) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:             uuid.New(),
		IdentityKey:    identityKey,
		Priority:       priority,
		State:          JobStateQueued,
		Payload:        payload,
		Attempt:        0,
		NextEligibleAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
// Returns an error if any field fails validation.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.IdentityKey == "" {
		return ErrEmptyIdentityKey
	}

	if !isValidJobPriority(j.Priority) {
		return ErrInvalidJobPriority
	}

	if !isValidJobState(j.State) {
		return ErrInvalidJobState
	}

	if len(j.Payload) == 0 {
		return ErrEmptyJobPayload
	}

	return nil
}

// SetResultRef records the reference to the persisted output. The reference
// is set at most once per job; later calls fail.
func (j *Job) SetResultRef(ref string) error {
	if j.ResultRef != "" {
		return ErrResultRefImmutable
	}
	j.ResultRef = ref
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Active reports whether the job is still in flight: queued or processing.
// Submissions with the same identity key attach to an active job instead of
// creating a new one.
func (j *Job) Active() bool {
	return j.State == JobStateQueued || j.State == JobStateProcessing
}

// Terminal reports whether the job reached a terminal state.
func (j *Job) Terminal() bool {
	return j.State == JobStateSucceeded || j.State == JobStateDeadLettered
}

// Rank maps a priority to its queue ordering rank; a larger rank is
// served first.
func (p JobPriority) Rank() int {
	switch p {
	case JobPriorityHigh:
		return 2
	case JobPriorityNormal:
		return 1
	case JobPriorityLow:
		return 0
	default:
		return 0
	}
}

// isValidJobState checks if the given state is a valid JobState.
func isValidJobState(state JobState) bool {
	switch state {
	case JobStateQueued, JobStateProcessing, JobStateSucceeded,
		JobStateFailed, JobStateDeadLettered:
		return true
	default:
		return false
	}
}

// isValidJobPriority checks if the given priority is a valid JobPriority.
func isValidJobPriority(priority JobPriority) bool {
	switch priority {
	case JobPriorityLow, JobPriorityNormal, JobPriorityHigh:
		return true
	default:
		return false
	}
}
