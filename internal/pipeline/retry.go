package pipeline

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/ledgerlift/receipt-api/internal/domain"
)

// RetryAction is what the controller decided to do with a failed job.
type RetryAction int

const (
	// ActionRetry reschedules the job with a backoff gate.
	ActionRetry RetryAction = iota

	// ActionDeadLetter moves the job to the dead-letter store.
	ActionDeadLetter
)

// RetryDecision carries the controller's verdict on a single failure.
type RetryDecision struct {
	Action RetryAction

	// Attempt is the attempt count after this failure.
	Attempt int

	// NextEligibleAt is the backoff gate; only meaningful for ActionRetry.
	NextEligibleAt time.Time

	// Failure is the classification recorded on the job.
	Failure domain.FailureKind

	// Message is the failure description for triage.
	Message string
}

// RetryPolicy is the configuration of the retry controller.
type RetryPolicy struct {
	// MaxAttempts bounds processing attempts before dead-lettering.
	MaxAttempts int

	// Base is the first retry delay; doubled per attempt.
	Base time.Duration

	// Cap bounds the computed delay.
	Cap time.Duration
}

// RetryController classifies failures and decides retry vs. dead-letter.
// Transient failures are retried with exponential backoff and jitter until
// MaxAttempts is exhausted; permanent failures are dead-lettered immediately.
// The controller never retries a permanent failure and never dead-letters a
// transient one before MaxAttempts.
type RetryController struct {
	policy RetryPolicy

	mu  sync.Mutex
	rng *rand.Rand

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewRetryController creates a retry controller with the given policy.
func NewRetryController(policy RetryPolicy) *RetryController {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.Base <= 0 {
		policy.Base = 2 * time.Second
	}
	if policy.Cap <= 0 {
		policy.Cap = 5 * time.Minute
	}

	return &RetryController{
		policy: policy,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// Decide resolves a processing failure for a job that has used priorAttempts
// attempts before the one that just failed.
func (c *RetryController) Decide(priorAttempts int, err error) RetryDecision {
	attempt := priorAttempts + 1

	if analysis.IsPermanent(err) {
		return RetryDecision{
			Action:  ActionDeadLetter,
			Attempt: attempt,
			Failure: domain.FailurePermanent,
			Message: err.Error(),
		}
	}

	// Everything not explicitly permanent is treated as transient: analyzer
	// timeouts, upstream rate limiting, storage and ledger write failures.
	if attempt >= c.policy.MaxAttempts {
		return RetryDecision{
			Action:  ActionDeadLetter,
			Attempt: attempt,
			Failure: domain.FailureExhausted,
			Message: err.Error(),
		}
	}

	return RetryDecision{
		Action:         ActionRetry,
		Attempt:        attempt,
		NextEligibleAt: c.now().Add(c.Backoff(attempt)),
		Failure:        domain.FailureTransient,
		Message:        err.Error(),
	}
}

// Backoff computes the delay before the given attempt may be retried:
// base * 2^(attempt-1) with a jitter factor in [0.5, 1.0], capped at Cap.
func (c *RetryController) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(c.policy.Base) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.policy.Cap) {
		delay = float64(c.policy.Cap)
	}

	c.mu.Lock()
	jitter := 0.5 + c.rng.Float64()*0.5
	c.mu.Unlock()

	return time.Duration(delay * jitter)
}
