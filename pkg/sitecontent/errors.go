package sitecontent

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidInput is matched by every ValidationError
	ErrInvalidInput = errors.New("invalid input")

	// ErrRepository is matched by every RepositoryError
	ErrRepository = errors.New("repository failure")

	// ErrAssetNotFound indicates an asset reference has no stored object
	ErrAssetNotFound = errors.New("asset not found")

	// ErrAssetStoreRequired indicates an upload was attempted without an asset store
	ErrAssetStoreRequired = errors.New("asset store is not configured")
)

// ValidationError reports a malformed write or read request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// RepositoryError wraps a storage-layer failure on a slot operation
type RepositoryError struct {
	Op   string
	Page string
	Key  string
	Err  error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("slot operation %s failed for %s/%s: %v", e.Op, e.Page, e.Key, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func (e *RepositoryError) Is(target error) bool {
	return target == ErrRepository
}

// StorageError represents an error related to asset storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
