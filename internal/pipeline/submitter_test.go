package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubmitter(t *testing.T) (*Submitter, *MemoryJobStore, *fakeResultCache) {
	t.Helper()

	jobs := NewMemoryJobStore()
	cache := newFakeResultCache()
	submitter, err := NewSubmitter(jobs, cache, setupTestLogger())
	require.NoError(t, err)
	return submitter, jobs, cache
}

func TestSubmitCreatesNewJob(t *testing.T) {
	submitter, jobs, _ := newTestSubmitter(t)
	ctx := context.Background()

	outcome, err := submitter.Submit(ctx, "identity-1", domain.JobPriorityNormal, testPayload("blob/1"))
	require.NoError(t, err)

	assert.True(t, outcome.IsNew)
	assert.False(t, outcome.Completed)

	job, err := jobs.GetJobByID(ctx, outcome.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateQueued, job.State)
	assert.Equal(t, "identity-1", job.IdentityKey)
	assert.Equal(t, 0, job.Attempt)
}

func TestSubmitAttachesToActiveJob(t *testing.T) {
	submitter, _, _ := newTestSubmitter(t)
	ctx := context.Background()

	first, err := submitter.Submit(ctx, "identity-1", domain.JobPriorityNormal, testPayload("blob/1"))
	require.NoError(t, err)

	second, err := submitter.Submit(ctx, "identity-1", domain.JobPriorityNormal, testPayload("blob/1"))
	require.NoError(t, err)

	assert.False(t, second.IsNew)
	assert.Equal(t, first.JobID, second.JobID)
}

func TestSubmitShortCircuitsOnCachedResult(t *testing.T) {
	submitter, jobs, cache := newTestSubmitter(t)
	ctx := context.Background()

	priorJob := uuid.New()
	err := cache.SetResult(ctx, "identity-1", &ResultCacheEntry{
		JobID:      priorJob,
		ResultRef:  "receipt-42",
		ComputedAt: time.Now().UTC(),
	}, time.Hour)
	require.NoError(t, err)

	outcome, err := submitter.Submit(ctx, "identity-1", domain.JobPriorityNormal, testPayload("blob/1"))
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	assert.Equal(t, "receipt-42", outcome.ResultRef)
	assert.Equal(t, priorJob, outcome.JobID)

	// No enqueue happened
	_, err = jobs.GetActiveJobByIdentity(ctx, "identity-1")
	assert.Error(t, err)
}

func TestSubmitExpiredCacheEntryRecomputes(t *testing.T) {
	submitter, _, cache := newTestSubmitter(t)
	ctx := context.Background()

	err := cache.SetResult(ctx, "identity-1", &ResultCacheEntry{
		JobID:      uuid.New(),
		ResultRef:  "receipt-42",
		ComputedAt: time.Now().Add(-2 * time.Hour),
	}, time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	outcome, err := submitter.Submit(ctx, "identity-1", domain.JobPriorityNormal, testPayload("blob/1"))
	require.NoError(t, err)
	assert.True(t, outcome.IsNew)
}

func TestSubmitConcurrentSameIdentityCreatesOneJob(t *testing.T) {
	submitter, _, _ := newTestSubmitter(t)
	ctx := context.Background()

	const submitters = 20
	var wg sync.WaitGroup
	outcomes := make([]*SubmitOutcome, submitters)

	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := submitter.Submit(ctx, "identity-race", domain.JobPriorityNormal, testPayload("blob/1"))
			assert.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	newCount := 0
	jobID := outcomes[0].JobID
	for _, outcome := range outcomes {
		require.NotNil(t, outcome)
		assert.Equal(t, jobID, outcome.JobID)
		if outcome.IsNew {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount)
}

func TestSubmitDifferentIdentitiesCreateDistinctJobs(t *testing.T) {
	submitter, _, _ := newTestSubmitter(t)
	ctx := context.Background()

	a, err := submitter.Submit(ctx, "identity-a", domain.JobPriorityNormal, testPayload("blob/a"))
	require.NoError(t, err)

	b, err := submitter.Submit(ctx, "identity-b", domain.JobPriorityHigh, testPayload("blob/b"))
	require.NoError(t, err)

	assert.NotEqual(t, a.JobID, b.JobID)
	assert.True(t, a.IsNew)
	assert.True(t, b.IsNew)
}

func TestSubmitInvalidPayloadRejected(t *testing.T) {
	submitter, _, _ := newTestSubmitter(t)

	payload := testPayload("")
	_, err := submitter.Submit(context.Background(), "identity-1", domain.JobPriorityNormal, payload)
	assert.ErrorIs(t, err, ErrEmptyImageRef)
}
