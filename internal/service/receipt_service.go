package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/analysis"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/ledgerlift/receipt-api/internal/pipeline"
	"github.com/ledgerlift/receipt-api/internal/platform/logger"
	"github.com/ledgerlift/receipt-api/internal/storage"
	"github.com/ledgerlift/receipt-api/internal/store"
)

// ReceiptService provides receipt submission and lookup operations. It
// embeds pipeline.ResultPersister: the same service that accepts
// submissions appends succeeded analyses to the ledger, so the worker
// pool takes the service directly as its persister.
type ReceiptService interface {
	pipeline.ResultPersister

	// SubmitReceipt stores the image, derives the request identity and
	// hands the request to the idempotent submitter. The returned outcome
	// says whether a new job was created, an existing one was attached to,
	// or a cached result satisfied the request outright.
	SubmitReceipt(
		ctx context.Context,
		image []byte,
		params analysis.Params,
		priority domain.JobPriority,
		voiceNote string,
	) (*pipeline.SubmitOutcome, error)

	// GetJob retrieves a job by ID for status polling.
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)

	// GetReceipt retrieves a receipt from the ledger by its ID, which is
	// also the result reference recorded on succeeded jobs.
	GetReceipt(ctx context.Context, id uuid.UUID) (*domain.Receipt, error)

	// GetReceiptByJobID retrieves the receipt persisted for a job.
	GetReceiptByJobID(ctx context.Context, jobID uuid.UUID) (*domain.Receipt, error)

	// ListDeadLetters retrieves dead-lettered jobs for operator triage.
	ListDeadLetters(ctx context.Context, limit, offset int) ([]*domain.Job, error)
}

// receiptServiceImpl implements the ReceiptService interface. It also
// implements pipeline.ResultPersister: the worker pool calls PersistResult
// to append succeeded analyses to the ledger.
type receiptServiceImpl struct {
	objects   storage.ObjectStore
	submitter *pipeline.Submitter
	jobs      store.JobStore
	receipts  store.ReceiptStore
	db        *sql.DB
	logger    *slog.Logger
}

// NewReceiptService creates a new ReceiptService.
// It returns an error if any of the required dependencies are nil. The db
// handle is optional: when present, ledger writes run inside a transaction.
func NewReceiptService(
	objects storage.ObjectStore,
	submitter *pipeline.Submitter,
	jobs store.JobStore,
	receipts store.ReceiptStore,
	db *sql.DB,
	log *slog.Logger,
) (ReceiptService, error) {
	if objects == nil {
		return nil, errors.New("object store cannot be nil")
	}
	if submitter == nil {
		return nil, errors.New("submitter cannot be nil")
	}
	if jobs == nil {
		return nil, errors.New("job store cannot be nil")
	}
	if receipts == nil {
		return nil, errors.New("receipt store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &receiptServiceImpl{
		objects:   objects,
		submitter: submitter,
		jobs:      jobs,
		receipts:  receipts,
		db:        db,
		logger:    log.With(slog.String("component", "receipt_service")),
	}, nil
}

// SubmitReceipt implements ReceiptService.SubmitReceipt.
func (s *receiptServiceImpl) SubmitReceipt(
	ctx context.Context,
	image []byte,
	params analysis.Params,
	priority domain.JobPriority,
	voiceNote string,
) (*pipeline.SubmitOutcome, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if params.Mode == "" {
		params.Mode = analysis.ModeReceipt
	}
	if priority == "" {
		priority = domain.JobPriorityNormal
	}

	// The blob goes in first so the job payload can carry a reference
	// instead of the bytes. Content addressing keeps resubmissions from
	// growing the store.
	imageRef, err := s.objects.Put(ctx, image)
	if err != nil {
		log.Error("failed to store submitted image", slog.String("error", err.Error()))
		return nil, NewReceiptServiceError("submit", "failed to store image", err)
	}

	identityKey := pipeline.IdentityForParams(image, params)
	payload := &pipeline.JobPayload{
		ImageRef:    imageRef,
		Params:      params,
		VoiceNote:   voiceNote,
		SubmittedAt: time.Now().UTC(),
	}

	outcome, err := s.submitter.Submit(ctx, identityKey, priority, payload)
	if err != nil {
		log.Error("failed to submit job",
			slog.String("identity_key", identityKey),
			slog.String("error", err.Error()))
		return nil, NewReceiptServiceError("submit", "failed to enqueue analysis", err)
	}

	log.Info("receipt submitted",
		slog.String("job_id", outcome.JobID.String()),
		slog.Bool("is_new", outcome.IsNew),
		slog.Bool("completed", outcome.Completed))
	return outcome, nil
}

// GetJob implements ReceiptService.GetJob.
func (s *receiptServiceImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrJobNotFound
		}
		return nil, NewReceiptServiceError("get_job", "failed to load job", err)
	}
	return job, nil
}

// GetReceipt implements ReceiptService.GetReceipt.
func (s *receiptServiceImpl) GetReceipt(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	receipt, err := s.receipts.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrReceiptNotFound
		}
		return nil, NewReceiptServiceError("get_receipt", "failed to load receipt", err)
	}
	return receipt, nil
}

// GetReceiptByJobID implements ReceiptService.GetReceiptByJobID.
func (s *receiptServiceImpl) GetReceiptByJobID(ctx context.Context, jobID uuid.UUID) (*domain.Receipt, error) {
	receipt, err := s.receipts.GetByJobID(ctx, jobID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrReceiptNotFound
		}
		return nil, NewReceiptServiceError("get_receipt", "failed to load receipt", err)
	}
	return receipt, nil
}

// ListDeadLetters implements ReceiptService.ListDeadLetters.
func (s *receiptServiceImpl) ListDeadLetters(ctx context.Context, limit, offset int) ([]*domain.Job, error) {
	jobs, err := s.jobs.ListDeadLettered(ctx, limit, offset)
	if err != nil {
		return nil, NewReceiptServiceError("list_dead_letters", "failed to list dead-lettered jobs", err)
	}
	return jobs, nil
}

// PersistResult implements pipeline.ResultPersister. For receipt-mode jobs
// it appends the extracted receipt to the ledger and returns the row id as
// the job's result reference; caption-mode jobs store the caption text in
// the object store and return its content address. An existing ledger row
// for the job is returned as-is, so re-acking after a crash between persist
// and ack stays idempotent.
func (s *receiptServiceImpl) PersistResult(
	ctx context.Context,
	job *domain.Job,
	payload *pipeline.JobPayload,
	result *analysis.Result,
) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if payload.Params.Mode == analysis.ModeCaption {
		return s.persistCaption(ctx, job, result, log)
	}

	if result == nil || result.Receipt == nil {
		return "", fmt.Errorf("%w: job %s", ErrMissingReceipt, job.ID)
	}

	receipt := *result.Receipt
	receipt.ID = uuid.New()
	receipt.JobID = job.ID
	receipt.IdentityKey = job.IdentityKey
	receipt.Category = domain.CategorizeVendor(receipt.VendorName)
	receipt.VoiceNote = payload.VoiceNote
	receipt.ImageRef = payload.ImageRef
	receipt.CreatedAt = time.Now().UTC()

	if err := s.createReceipt(ctx, &receipt); err != nil {
		// A duplicate means a previous attempt already wrote the row and
		// died before acking. Reuse it.
		if errors.Is(err, store.ErrDuplicate) {
			existing, lookupErr := s.receipts.GetByJobID(ctx, job.ID)
			if lookupErr != nil {
				return "", fmt.Errorf("failed to resolve existing receipt: %w", lookupErr)
			}
			log.Debug("reusing receipt from earlier attempt",
				slog.String("receipt_id", existing.ID.String()),
				slog.String("job_id", job.ID.String()))
			return existing.ID.String(), nil
		}
		return "", fmt.Errorf("failed to append receipt to ledger: %w", err)
	}

	log.Info("receipt appended to ledger",
		slog.String("receipt_id", receipt.ID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("vendor", receipt.VendorName),
		slog.String("category", receipt.Category))
	return receipt.ID.String(), nil
}

// persistCaption stores the caption text as a content-addressed blob and
// returns its reference. Put is idempotent for identical content, so a
// replayed attempt lands on the same reference.
func (s *receiptServiceImpl) persistCaption(
	ctx context.Context,
	job *domain.Job,
	result *analysis.Result,
	log *slog.Logger,
) (string, error) {
	var caption string
	if result != nil {
		caption = strings.TrimSpace(result.Caption)
	}
	if caption == "" {
		return "", fmt.Errorf("%w: job %s", ErrMissingCaption, job.ID)
	}

	ref, err := s.objects.Put(ctx, []byte(caption))
	if err != nil {
		return "", fmt.Errorf("failed to store caption: %w", err)
	}

	log.Info("caption stored",
		slog.String("caption_ref", ref),
		slog.String("job_id", job.ID.String()))
	return ref, nil
}

// createReceipt writes the receipt row, inside a transaction when a
// database handle is available.
func (s *receiptServiceImpl) createReceipt(ctx context.Context, receipt *domain.Receipt) error {
	if s.db == nil {
		return s.receipts.Create(ctx, receipt)
	}
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.receipts.WithTx(tx).Create(ctx, receipt)
	})
}

// Ensure receiptServiceImpl implements both service and persister contracts
var (
	_ ReceiptService           = (*receiptServiceImpl)(nil)
	_ pipeline.ResultPersister = (*receiptServiceImpl)(nil)
)
