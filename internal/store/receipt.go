package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/ledgerlift/receipt-api/internal/domain"
)

// ReceiptStore is the tabular ledger of extracted receipts. A row is
// appended once per succeeded job; the row id doubles as the job's result
// reference.
// Version: 1.0
type ReceiptStore interface {
	// Create appends a receipt to the ledger.
	// It handles domain validation internally.
	// Returns validation errors from the domain Receipt if data is invalid.
	Create(ctx context.Context, receipt *domain.Receipt) error

	// GetByID retrieves a receipt by its unique ID.
	// Returns ErrReceiptNotFound if the receipt does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Receipt, error)

	// GetByJobID retrieves the receipt persisted for the given job.
	// Returns ErrReceiptNotFound if no receipt exists for the job.
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*domain.Receipt, error)

	// WithTx returns a new ReceiptStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) ReceiptStore
}
