// Package cache is a TTL read-through cache in front of slot reads.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 60 * time.Second

// Store caches present slots returned by a Finder. Entries expire a fixed
// TTL after insertion and are never refreshed in place; absent slots are
// not cached.
type Store struct {
	finder sitecontent.Finder
	items  *ttlcache.Cache[sitecontent.SlotKey, *sitecontent.Slot]
}

// New wraps finder with a cache of the given TTL (DefaultTTL when <= 0).
func New(finder sitecontent.Finder, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		finder: finder,
		items: ttlcache.New[sitecontent.SlotKey, *sitecontent.Slot](
			ttlcache.WithTTL[sitecontent.SlotKey, *sitecontent.Slot](ttl),
			ttlcache.WithDisableTouchOnHit[sitecontent.SlotKey, *sitecontent.Slot](),
		),
	}
}

// Start runs the expired-entry janitor until Stop is called. Expired
// entries are never served even without it.
func (s *Store) Start() {
	go s.items.Start()
}

// Stop halts the janitor.
func (s *Store) Stop() {
	s.items.Stop()
}

// Lookup returns the slot for (page, key) and whether it came from the cache.
func (s *Store) Lookup(ctx context.Context, page, key string) (*sitecontent.Slot, bool, error) {
	k := sitecontent.SlotKey{Page: page, Key: key}
	if item := s.items.Get(k); item != nil {
		return item.Value().Clone(), true, nil
	}

	slot, err := s.finder.Find(ctx, page, key)
	if err != nil || slot == nil {
		return slot, false, err
	}

	s.items.Set(k, slot.Clone(), ttlcache.DefaultTTL)
	return slot, false, nil
}

// Find implements sitecontent.Finder.
func (s *Store) Find(ctx context.Context, page, key string) (*sitecontent.Slot, error) {
	slot, _, err := s.Lookup(ctx, page, key)
	return slot, err
}

// Invalidate drops the entry for (page, key).
func (s *Store) Invalidate(page, key string) {
	s.items.Delete(sitecontent.SlotKey{Page: page, Key: key})
}

// InvalidateHook returns an after-put hook that drops the written slot.
func (s *Store) InvalidateHook() sitecontent.AfterPutHook {
	return func(ctx context.Context, slot *sitecontent.Slot) {
		s.Invalidate(slot.Page, slot.Key)
	}
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	return s.items.Len()
}
