package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/domain"
	"github.com/ledgerlift/receipt-api/internal/store"
)

// receiptColumns is the column list shared by every receipt query, in
// scanReceipt order.
const receiptColumns = `id, job_id, identity_key, vendor_name, vendor_address,
	receipt_number, receipt_date, total, subtotal, tax, payment_method,
	items, category, voice_note, image_ref, created_at`

// PostgresReceiptStore implements the store.ReceiptStore interface
// using a PostgreSQL database as the storage backend.
type PostgresReceiptStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReceiptStore creates a new PostgreSQL implementation of the ReceiptStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresReceiptStore(db store.DBTX, logger *slog.Logger) *PostgresReceiptStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresReceiptStore{
		db:     db,
		logger: logger.With(slog.String("component", "receipt_store")),
	}
}

// Ensure PostgresReceiptStore implements store.ReceiptStore interface
var _ store.ReceiptStore = (*PostgresReceiptStore)(nil)

// Create implements store.ReceiptStore.Create.
func (s *PostgresReceiptStore) Create(ctx context.Context, receipt *domain.Receipt) error {
	if err := receipt.Validate(); err != nil {
		return store.NewStoreError("receipt", "create", "validation failed", err)
	}

	items, err := json.Marshal(receipt.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt items: %w", err)
	}

	query := `
		INSERT INTO receipts (id, job_id, identity_key, vendor_name,
			vendor_address, receipt_number, receipt_date, total, subtotal,
			tax, payment_method, items, category, voice_note, image_ref,
			created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = s.db.ExecContext(ctx, query,
		receipt.ID,
		receipt.JobID,
		receipt.IdentityKey,
		receipt.VendorName,
		receipt.VendorAddress,
		receipt.ReceiptNumber,
		nullableTime(receipt.Date),
		receipt.Total,
		receipt.Subtotal,
		receipt.Tax,
		receipt.PaymentMethod,
		items,
		receipt.Category,
		receipt.VoiceNote,
		receipt.ImageRef,
		receipt.CreatedAt.UTC(),
	)
	if err != nil {
		mapped := MapError(err)
		s.logger.ErrorContext(ctx, "failed to create receipt",
			"receipt_id", receipt.ID,
			"job_id", receipt.JobID,
			"error", mapped)
		return mapped
	}

	return nil
}

// GetByID implements store.ReceiptStore.GetByID.
func (s *PostgresReceiptStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	query := fmt.Sprintf(`SELECT %s FROM receipts WHERE id = $1`, receiptColumns)
	return s.getOne(ctx, query, id)
}

// GetByJobID implements store.ReceiptStore.GetByJobID.
func (s *PostgresReceiptStore) GetByJobID(ctx context.Context, jobID uuid.UUID) (*domain.Receipt, error) {
	query := fmt.Sprintf(`SELECT %s FROM receipts WHERE job_id = $1`, receiptColumns)
	return s.getOne(ctx, query, jobID)
}

func (s *PostgresReceiptStore) getOne(ctx context.Context, query string, arg interface{}) (*domain.Receipt, error) {
	receipt, err := scanReceipt(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, store.ErrReceiptNotFound
		}
		return nil, MapError(err)
	}
	return receipt, nil
}

// WithTx implements store.ReceiptStore.WithTx.
func (s *PostgresReceiptStore) WithTx(tx *sql.Tx) store.ReceiptStore {
	return &PostgresReceiptStore{
		db:     tx,
		logger: s.logger,
	}
}

// scanReceipt reads one receipt row in receiptColumns order.
func scanReceipt(row rowScanner) (*domain.Receipt, error) {
	var (
		receipt     domain.Receipt
		receiptDate sql.NullTime
		items       []byte
	)

	err := row.Scan(
		&receipt.ID,
		&receipt.JobID,
		&receipt.IdentityKey,
		&receipt.VendorName,
		&receipt.VendorAddress,
		&receipt.ReceiptNumber,
		&receiptDate,
		&receipt.Total,
		&receipt.Subtotal,
		&receipt.Tax,
		&receipt.PaymentMethod,
		&items,
		&receipt.Category,
		&receipt.VoiceNote,
		&receipt.ImageRef,
		&receipt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &receipt.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal receipt items: %w", err)
		}
	}
	if receiptDate.Valid {
		date := receiptDate.Time
		receipt.Date = &date
	}
	return &receipt, nil
}

// nullableTime converts an optional time into its SQL representation.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
