package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// refPattern matches the content-hash references this store hands out.
var refPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// FilesystemStore is an ObjectStore over a local directory. Blobs are
// named by their SHA-256 content hash and fanned out over two-character
// subdirectories to keep directory sizes bounded.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a FilesystemStore rooted at the given
// directory, creating it if necessary.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: storage root cannot be empty", ErrInvalidRef)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &FilesystemStore{root: root}, nil
}

// Put implements ObjectStore.Put. Writing is atomic: the blob lands under
// a temporary name and is renamed into place, so
// readers never observe a partial object.
func (s *FilesystemStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	ref := hex.EncodeToString(sum[:])
	path := s.path(ref)

	// Content-addressed: an existing file already holds these exact bytes.
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary blob file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to close blob file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}

	return ref, nil
}

// Fetch implements ObjectStore.Fetch.
func (s *FilesystemStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if !refPattern.MatchString(ref) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", ref, err)
	}
	return data, nil
}

func (s *FilesystemStore) path(ref string) string {
	return filepath.Join(s.root, ref[:2], ref)
}

// Ensure FilesystemStore implements ObjectStore
var _ ObjectStore = (*FilesystemStore)(nil)
