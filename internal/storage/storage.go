// Package storage provides the blob store for submitted images. Jobs carry
// a storage reference instead of image bytes, so queue rows stay small and
// a crashed worker can re-fetch the image on retry.
package storage

import (
	"context"
	"errors"
)

// Common storage errors
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidRef     = errors.New("invalid object reference")
	ErrEmptyObject    = errors.New("object cannot be empty")
)

// ObjectStore stores immutable blobs by content-derived reference. Putting
// the same bytes twice yields the same reference, so duplicate submissions
// do not grow the store.
type ObjectStore interface {
	// Put stores the blob and returns its reference.
	Put(ctx context.Context, data []byte) (string, error)

	// Fetch retrieves the blob for the reference.
	// Returns ErrObjectNotFound if no blob exists under it.
	Fetch(ctx context.Context, ref string) ([]byte, error)
}
