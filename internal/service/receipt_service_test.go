package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/ledgerlift/receipt-api/internal/pipeline"
	"github.com/ledgerlift/receipt-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	service  ReceiptService
	objects  *fakeObjectStore
	jobs     *pipeline.MemoryJobStore
	receipts *fakeReceiptStore
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	objects := newFakeObjectStore()
	jobs := pipeline.NewMemoryJobStore()
	receipts := newFakeReceiptStore()

	submitter, err := pipeline.NewSubmitter(jobs, newMemoryResultCache(), discardLogger())
	require.NoError(t, err)

	svc, err := NewReceiptService(objects, submitter, jobs, receipts, nil, discardLogger())
	require.NoError(t, err)

	return &serviceFixture{service: svc, objects: objects, jobs: jobs, receipts: receipts}
}

func TestSubmitReceiptEnqueuesJob(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	outcome, err := f.service.SubmitReceipt(ctx,
		[]byte("image-bytes"), analysis.Params{Mode: analysis.ModeReceipt},
		domain.JobPriorityHigh, "lunch with the team")
	require.NoError(t, err)
	assert.True(t, outcome.IsNew)

	job, err := f.jobs.GetJobByID(ctx, outcome.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateQueued, job.State)
	assert.Equal(t, domain.JobPriorityHigh, job.Priority)

	payload, err := pipeline.UnmarshalJobPayload(job.Payload)
	require.NoError(t, err)
	assert.Equal(t, "lunch with the team", payload.VoiceNote)

	// The payload reference must resolve to the submitted bytes.
	data, err := f.objects.Fetch(ctx, payload.ImageRef)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
}

func TestSubmitReceiptDefaultsModeAndPriority(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	outcome, err := f.service.SubmitReceipt(ctx, []byte("image-bytes"), analysis.Params{}, "", "")
	require.NoError(t, err)

	job, err := f.jobs.GetJobByID(ctx, outcome.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPriorityNormal, job.Priority)

	payload, err := pipeline.UnmarshalJobPayload(job.Payload)
	require.NoError(t, err)
	assert.Equal(t, analysis.ModeReceipt, payload.Params.Mode)
}

func TestSubmitReceiptSameImageAttaches(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	image := []byte("same-image")
	params := analysis.Params{Mode: analysis.ModeReceipt}

	first, err := f.service.SubmitReceipt(ctx, image, params, domain.JobPriorityNormal, "")
	require.NoError(t, err)
	second, err := f.service.SubmitReceipt(ctx, image, params, domain.JobPriorityNormal, "")
	require.NoError(t, err)

	assert.True(t, first.IsNew)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.JobID, second.JobID)
}

func TestSubmitReceiptDifferentParamsDifferentJobs(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	image := []byte("same-image")

	receipt, err := f.service.SubmitReceipt(ctx, image,
		analysis.Params{Mode: analysis.ModeReceipt}, domain.JobPriorityNormal, "")
	require.NoError(t, err)
	caption, err := f.service.SubmitReceipt(ctx, image,
		analysis.Params{Mode: analysis.ModeCaption}, domain.JobPriorityNormal, "")
	require.NoError(t, err)

	assert.NotEqual(t, receipt.JobID, caption.JobID)
}

func TestSubmitReceiptEmptyImage(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.SubmitReceipt(context.Background(), nil,
		analysis.Params{Mode: analysis.ModeReceipt}, domain.JobPriorityNormal, "")
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func makeProcessingJob(t *testing.T, jobs *pipeline.MemoryJobStore) *domain.Job {
	t.Helper()
	ctx := context.Background()

	payload := &pipeline.JobPayload{
		ImageRef:    "blob-ref",
		Params:      analysis.Params{Mode: analysis.ModeReceipt},
		VoiceNote:   "team offsite",
		SubmittedAt: time.Now().UTC(),
	}
	data, err := payload.Marshal()
	require.NoError(t, err)
	job, err := domain.NewJob("identity-1", domain.JobPriorityNormal, data)
	require.NoError(t, err)
	require.NoError(t, jobs.CreateJob(ctx, job))
	claimed, err := jobs.Dequeue(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)
	return claimed
}

func TestPersistResultAppendsLedgerRow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	job := makeProcessingJob(t, f.jobs)

	payload, err := pipeline.UnmarshalJobPayload(job.Payload)
	require.NoError(t, err)

	result := &analysis.Result{
		Receipt: &domain.Receipt{VendorName: "Starbucks Store #1234", Total: 11.40},
	}
	ref, err := f.service.PersistResult(ctx, job, payload, result)
	require.NoError(t, err)

	id, err := uuid.Parse(ref)
	require.NoError(t, err)

	saved, err := f.receipts.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, job.ID, saved.JobID)
	assert.Equal(t, job.IdentityKey, saved.IdentityKey)
	assert.Equal(t, "Starbucks Store #1234", saved.VendorName)
	assert.Equal(t, "Restaurants", saved.Category)
	assert.Equal(t, "team offsite", saved.VoiceNote)
	assert.Equal(t, "blob-ref", saved.ImageRef)
}

func TestPersistResultReusesExistingRow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	job := makeProcessingJob(t, f.jobs)

	payload, err := pipeline.UnmarshalJobPayload(job.Payload)
	require.NoError(t, err)
	result := &analysis.Result{
		Receipt: &domain.Receipt{VendorName: "Shell", Total: 60.00},
	}

	first, err := f.service.PersistResult(ctx, job, payload, result)
	require.NoError(t, err)

	// A crash between persist and ack replays the persist; the ledger must
	// not grow a second row for the job.
	second, err := f.service.PersistResult(ctx, job, payload, result)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPersistResultWithoutReceipt(t *testing.T) {
	f := newServiceFixture(t)
	job := makeProcessingJob(t, f.jobs)

	payload, err := pipeline.UnmarshalJobPayload(job.Payload)
	require.NoError(t, err)

	_, err = f.service.PersistResult(context.Background(), job, payload, &analysis.Result{})
	assert.ErrorIs(t, err, ErrMissingReceipt)
	assert.ErrorIs(t, err, pipeline.ErrResultRejected,
		"a receipt-less result is deterministic and must not be retried")
}

func makeCaptionJob(t *testing.T, jobs *pipeline.MemoryJobStore) *domain.Job {
	t.Helper()
	ctx := context.Background()

	payload := &pipeline.JobPayload{
		ImageRef:    "blob-ref",
		Params:      analysis.Params{Mode: analysis.ModeCaption},
		SubmittedAt: time.Now().UTC(),
	}
	data, err := payload.Marshal()
	require.NoError(t, err)
	job, err := domain.NewJob("identity-2", domain.JobPriorityNormal, data)
	require.NoError(t, err)
	require.NoError(t, jobs.CreateJob(ctx, job))
	claimed, err := jobs.Dequeue(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)
	return claimed
}

func TestPersistResultStoresCaption(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	job := makeCaptionJob(t, f.jobs)

	payload, err := pipeline.UnmarshalJobPayload(job.Payload)
	require.NoError(t, err)

	ref, err := f.service.PersistResult(ctx, job, payload, &analysis.Result{Caption: "  a diner receipt  "})
	require.NoError(t, err)

	data, err := f.objects.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "a diner receipt", string(data))
}

func TestPersistResultWithoutCaption(t *testing.T) {
	f := newServiceFixture(t)
	job := makeCaptionJob(t, f.jobs)

	payload, err := pipeline.UnmarshalJobPayload(job.Payload)
	require.NoError(t, err)

	_, err = f.service.PersistResult(context.Background(), job, payload, &analysis.Result{Caption: "   "})
	assert.ErrorIs(t, err, ErrMissingCaption)
	assert.ErrorIs(t, err, pipeline.ErrResultRejected)
}

func TestGetJobNotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestGetReceiptNotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.GetReceipt(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrReceiptNotFound)
}
