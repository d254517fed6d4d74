package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
)

// Repository implements sitecontent.Repository using in-memory storage
type Repository struct {
	mu     sync.RWMutex
	slots  map[sitecontent.SlotKey]*sitecontent.Slot
	nextID int64
}

// New creates a new in-memory repository
func New() sitecontent.Repository {
	return &Repository{
		slots: make(map[sitecontent.SlotKey]*sitecontent.Slot),
	}
}

func (r *Repository) Find(ctx context.Context, page, key string) (*sitecontent.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, exists := r.slots[sitecontent.SlotKey{Page: page, Key: key}]
	if !exists {
		return nil, nil
	}
	// Return a copy to prevent external modifications
	return slot.Clone(), nil
}

func (r *Repository) Upsert(ctx context.Context, page, key string, patch sitecontent.Patch, now time.Time) (*sitecontent.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := sitecontent.SlotKey{Page: page, Key: key}
	slot, exists := r.slots[k]
	if !exists {
		r.nextID++
		slot = &sitecontent.Slot{
			ID:        r.nextID,
			Page:      page,
			Key:       key,
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else {
		// copy-on-write
		slot = slot.Clone()
		if now.After(slot.UpdatedAt) {
			slot.UpdatedAt = now
		}
	}

	patch.ApplyTo(slot)
	r.slots[k] = slot

	return slot.Clone(), nil
}

func (r *Repository) ListPage(ctx context.Context, page string) ([]*sitecontent.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*sitecontent.Slot
	for k, slot := range r.slots {
		if k.Page == page {
			result = append(result, slot.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result, nil
}
