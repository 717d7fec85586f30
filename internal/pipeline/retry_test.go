package pipeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func newTestController() *RetryController {
	return NewRetryController(RetryPolicy{
		MaxAttempts: 3,
		Base:        time.Second,
		Cap:         time.Minute,
	})
}

func TestDecideTransientUnderMaxRetries(t *testing.T) {
	controller := newTestController()
	cause := fmt.Errorf("%w: upstream timeout", analysis.ErrTransient)

	decision := controller.Decide(0, cause)

	assert.Equal(t, ActionRetry, decision.Action)
	assert.Equal(t, 1, decision.Attempt)
	assert.Equal(t, domain.FailureTransient, decision.Failure)
	assert.False(t, decision.NextEligibleAt.IsZero())
}

func TestDecideTransientExhaustsToDeadLetter(t *testing.T) {
	controller := newTestController()
	cause := fmt.Errorf("%w: upstream timeout", analysis.ErrTransient)

	// Third failure with MaxAttempts=3 exhausts the budget
	decision := controller.Decide(2, cause)

	assert.Equal(t, ActionDeadLetter, decision.Action)
	assert.Equal(t, 3, decision.Attempt)
	assert.Equal(t, domain.FailureExhausted, decision.Failure)
}

func TestDecidePermanentDeadLettersImmediately(t *testing.T) {
	controller := newTestController()

	for _, cause := range []error{
		analysis.ErrPermanent,
		fmt.Errorf("%w: bad image", analysis.ErrPermanent),
		analysis.ErrContentBlocked,
		analysis.ErrInvalidResponse,
	} {
		decision := controller.Decide(0, cause)
		assert.Equal(t, ActionDeadLetter, decision.Action, "cause: %v", cause)
		assert.Equal(t, domain.FailurePermanent, decision.Failure, "cause: %v", cause)
	}
}

func TestDecideNeverDeadLettersTransientEarly(t *testing.T) {
	controller := newTestController()
	cause := errors.New("connection reset")

	for prior := 0; prior < 2; prior++ {
		decision := controller.Decide(prior, cause)
		assert.Equal(t, ActionRetry, decision.Action, "prior attempts: %d", prior)
	}
}

func TestBackoffWithinJitterBounds(t *testing.T) {
	controller := newTestController()

	for attempt := 1; attempt <= 5; attempt++ {
		raw := time.Duration(float64(time.Second) * float64(int(1)<<(attempt-1)))
		if raw > time.Minute {
			raw = time.Minute
		}

		for i := 0; i < 20; i++ {
			delay := controller.Backoff(attempt)
			assert.GreaterOrEqual(t, delay, raw/2, "attempt %d", attempt)
			assert.LessOrEqual(t, delay, raw, "attempt %d", attempt)
		}
	}
}

func TestBackoffMonotonicAcrossAttempts(t *testing.T) {
	controller := newTestController()

	// The jitter window of attempt n+1 starts at the upper bound of
	// attempt n, so consecutive delays never decrease.
	for i := 0; i < 20; i++ {
		prev := controller.Backoff(1)
		for attempt := 2; attempt <= 5; attempt++ {
			next := controller.Backoff(attempt)
			assert.GreaterOrEqual(t, next, prev)
			prev = next
		}
	}
}

func TestBackoffCapped(t *testing.T) {
	controller := NewRetryController(RetryPolicy{
		MaxAttempts: 10,
		Base:        time.Second,
		Cap:         4 * time.Second,
	})

	for i := 0; i < 20; i++ {
		assert.LessOrEqual(t, controller.Backoff(9), 4*time.Second)
	}
}
