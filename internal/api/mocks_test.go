package api

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/ledgerlift/receipt-api/internal/pipeline"
)

// discardLogger returns a logger that writes nowhere.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockReceiptService is a mock implementation of service.ReceiptService for testing
type MockReceiptService struct {
	SubmitReceiptFn     func(ctx context.Context, image []byte, params analysis.Params, priority domain.JobPriority, voiceNote string) (*pipeline.SubmitOutcome, error)
	GetJobFn            func(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	GetReceiptFn        func(ctx context.Context, id uuid.UUID) (*domain.Receipt, error)
	GetReceiptByJobIDFn func(ctx context.Context, jobID uuid.UUID) (*domain.Receipt, error)
	ListDeadLettersFn   func(ctx context.Context, limit, offset int) ([]*domain.Job, error)
	PersistResultFn     func(ctx context.Context, job *domain.Job, payload *pipeline.JobPayload, result *analysis.Result) (string, error)
}

// SubmitReceipt implements service.ReceiptService
func (m *MockReceiptService) SubmitReceipt(
	ctx context.Context,
	image []byte,
	params analysis.Params,
	priority domain.JobPriority,
	voiceNote string,
) (*pipeline.SubmitOutcome, error) {
	if m.SubmitReceiptFn != nil {
		return m.SubmitReceiptFn(ctx, image, params, priority, voiceNote)
	}
	return nil, nil
}

// GetJob implements service.ReceiptService
func (m *MockReceiptService) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	if m.GetJobFn != nil {
		return m.GetJobFn(ctx, jobID)
	}
	return nil, nil
}

// GetReceipt implements service.ReceiptService
func (m *MockReceiptService) GetReceipt(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	if m.GetReceiptFn != nil {
		return m.GetReceiptFn(ctx, id)
	}
	return nil, nil
}

// GetReceiptByJobID implements service.ReceiptService
func (m *MockReceiptService) GetReceiptByJobID(ctx context.Context, jobID uuid.UUID) (*domain.Receipt, error) {
	if m.GetReceiptByJobIDFn != nil {
		return m.GetReceiptByJobIDFn(ctx, jobID)
	}
	return nil, nil
}

// ListDeadLetters implements service.ReceiptService
func (m *MockReceiptService) ListDeadLetters(ctx context.Context, limit, offset int) ([]*domain.Job, error) {
	if m.ListDeadLettersFn != nil {
		return m.ListDeadLettersFn(ctx, limit, offset)
	}
	return nil, nil
}

// PersistResult implements pipeline.ResultPersister
func (m *MockReceiptService) PersistResult(
	ctx context.Context,
	job *domain.Job,
	payload *pipeline.JobPayload,
	result *analysis.Result,
) (string, error) {
	if m.PersistResultFn != nil {
		return m.PersistResultFn(ctx, job, payload, result)
	}
	return "", nil
}
