package sitecontent

import (
	"context"
	"io"
	"time"
)

// Finder reads a single slot. A missing slot is reported as (nil, nil).
type Finder interface {
	Find(ctx context.Context, page, key string) (*Slot, error)
}

// Repository defines slot persistence over the unique (page, key) keyspace
type Repository interface {
	Finder

	// Upsert atomically creates or updates the slot for (page, key).
	// Patched fields overwrite, omitted fields are left untouched and are
	// stored absent when the slot is created. CreatedAt is only written by
	// the creating call; UpdatedAt becomes max(now, previous UpdatedAt).
	Upsert(ctx context.Context, page, key string, patch Patch, now time.Time) (*Slot, error)

	// ListPage returns every slot of a page ordered by key
	ListPage(ctx context.Context, page string) ([]*Slot, error)
}

// AssetStore defines the interface for uploaded image storage backends
type AssetStore interface {
	// UploadWithParams stores content under params.ObjectKey
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download opens a stored object. Missing objects yield ErrAssetNotFound.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes a stored object
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}
