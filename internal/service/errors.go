// Package service provides the application-level receipt service: it owns
// the submission sequence (blob put, identity derivation, idempotent
// enqueue) and the persistence of analysis results into the ledger.
package service

import (
	"errors"
	"fmt"

	"github.com/ledgerlift/receipt-api/internal/pipeline"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check these with errors.Is(); the API layer maps them to HTTP
// status codes.
var (
	// ErrEmptyImage indicates a submission without image bytes.
	// API layer should map this to HTTP 400 Bad Request.
	ErrEmptyImage = errors.New("image cannot be empty")

	// ErrMissingReceipt indicates a receipt-mode analysis result without
	// the structured receipt the ledger write requires. Wraps
	// pipeline.ErrResultRejected: the rejection is deterministic, so the
	// pool dead-letters instead of retrying.
	ErrMissingReceipt = fmt.Errorf("%w: analysis result contains no receipt", pipeline.ErrResultRejected)

	// ErrMissingCaption indicates a caption-mode analysis result with an
	// empty caption. Deterministic, like ErrMissingReceipt.
	ErrMissingCaption = fmt.Errorf("%w: analysis result contains no caption", pipeline.ErrResultRejected)
)

// ReceiptServiceError is a custom error type for receipt service errors.
type ReceiptServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ReceiptServiceError.
func (e *ReceiptServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("receipt service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("receipt service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ReceiptServiceError) Unwrap() error {
	return e.Err
}

// NewReceiptServiceError creates a new ReceiptServiceError.
func NewReceiptServiceError(operation, message string, err error) *ReceiptServiceError {
	return &ReceiptServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
