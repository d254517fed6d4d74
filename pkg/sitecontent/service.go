package sitecontent

import (
	"context"
	"io"
)

// Service defines the main interface for the site content store
type Service interface {
	// Find returns the slot for (page, key), or nil when it was never written
	Find(ctx context.Context, page, key string) (*Slot, error)

	// PutSlot stores any uploaded assets and upserts the slot
	PutSlot(ctx context.Context, req PutSlotRequest) (*Slot, error)

	// ListSlots returns every slot of a page
	ListSlots(ctx context.Context, page string) ([]*Slot, error)

	// Bundle reads several sections of one page concurrently. Absent
	// sections are present in the result with a nil value.
	Bundle(ctx context.Context, page string, keys []string) (map[string]*Slot, error)

	// OpenAsset streams a stored asset by its reference
	OpenAsset(ctx context.Context, ref string) (io.ReadCloser, *ObjectMeta, error)
}
