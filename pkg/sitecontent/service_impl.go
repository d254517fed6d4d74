package sitecontent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/simple-sitecontent/pkg/sitecontent/assetref"
	"golang.org/x/sync/errgroup"
)

// service implements the Service interface
type service struct {
	repository Repository
	assets     AssetStore
	assetsName string
	namer      *assetref.Namer
	hooks      Hooks
	now        func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithAssetStore sets the backend uploaded images are written to
func WithAssetStore(name string, store AssetStore) Option {
	return func(s *service) {
		s.assetsName = name
		s.assets = store
	}
}

// WithAssetPrefix sets the root-relative directory of stored references
func WithAssetPrefix(prefix string) Option {
	return func(s *service) {
		s.namer = assetref.NewNamer(prefix)
	}
}

// WithNamer replaces the asset namer
func WithNamer(namer *assetref.Namer) Option {
	return func(s *service) {
		s.namer = namer
	}
}

// WithAfterPut registers a hook fired after every successful write
func WithAfterPut(hook AfterPutHook) Option {
	return func(s *service) {
		s.hooks.AfterPut = append(s.hooks.AfterPut, hook)
	}
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		namer: assetref.NewNamer(assetref.DefaultPrefix),
		now:   time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}

	return s, nil
}

func (s *service) Find(ctx context.Context, page, key string) (*Slot, error) {
	k, err := NormalizeSlotKey(page, key)
	if err != nil {
		return nil, err
	}

	slot, err := s.repository.Find(ctx, k.Page, k.Key)
	if err != nil {
		return nil, &RepositoryError{Op: "find", Page: k.Page, Key: k.Key, Err: err}
	}
	return slot, nil
}

func (s *service) PutSlot(ctx context.Context, req PutSlotRequest) (*Slot, error) {
	k, err := NormalizeSlotKey(req.Page, req.Key)
	if err != nil {
		return nil, err
	}

	patch := req.Patch.Clone()
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.storeAssets(ctx, req.Assets, patch)
	if err != nil {
		s.discardAssets(ctx, stored)
		return nil, err
	}

	slot, err := s.repository.Upsert(ctx, k.Page, k.Key, patch, s.now().UTC())
	if err != nil {
		s.discardAssets(ctx, stored)
		return nil, &RepositoryError{Op: "upsert", Page: k.Page, Key: k.Key, Err: err}
	}

	s.hooks.runAfterPut(ctx, slot)
	return slot, nil
}

// storeAssets uploads each asset and records its reference in patch. The
// names of objects written so far are returned even on failure.
func (s *service) storeAssets(ctx context.Context, assets []AssetUpload, patch Patch) ([]string, error) {
	var stored []string
	for _, asset := range assets {
		if !asset.Field.IsImage() {
			return stored, &ValidationError{Field: string(asset.Field), Reason: "uploads are only accepted for image fields"}
		}
		if s.assets == nil {
			return stored, ErrAssetStoreRequired
		}

		info, body, err := assetref.Inspect(asset.Reader)
		if err != nil {
			return stored, &ValidationError{Field: string(asset.Field), Reason: err.Error()}
		}

		name := s.namer.NewName(asset.FileName)
		if err := s.assets.UploadWithParams(ctx, body, UploadParams{ObjectKey: name, MimeType: info.ContentType}); err != nil {
			return stored, &StorageError{Backend: s.assetsName, Key: name, Op: "upload", Err: err}
		}
		stored = append(stored, name)
		patch[asset.Field] = s.namer.Ref(name)

		slog.Info("Asset stored", "field", asset.Field, "object_key", name, "format", info.Format,
			"width", info.Width, "height", info.Height)
	}
	return stored, nil
}

// discardAssets removes objects uploaded for a write that did not complete.
func (s *service) discardAssets(ctx context.Context, names []string) {
	for _, name := range names {
		if err := s.assets.Delete(context.WithoutCancel(ctx), name); err != nil {
			slog.Warn("Failed to remove orphaned asset", "object_key", name, "error", err)
		}
	}
}

func (s *service) ListSlots(ctx context.Context, page string) ([]*Slot, error) {
	p, err := NormalizeName("page", page)
	if err != nil {
		return nil, err
	}

	slots, err := s.repository.ListPage(ctx, p)
	if err != nil {
		return nil, &RepositoryError{Op: "list", Page: p, Err: err}
	}
	return slots, nil
}

func (s *service) Bundle(ctx context.Context, page string, keys []string) (map[string]*Slot, error) {
	p, err := NormalizeName("page", page)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, &ValidationError{Field: "keys", Reason: "at least one key is required"}
	}

	result := make(map[string]*Slot, len(keys))
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		k, err := NormalizeName("key", key)
		if err != nil {
			return nil, err
		}
		if _, seen := result[k]; !seen {
			result[k] = nil
			names = append(names, k)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, k := range names {
		k := k
		g.Go(func() error {
			slot, err := s.repository.Find(gctx, p, k)
			if err != nil {
				return &RepositoryError{Op: "find", Page: p, Key: k, Err: err}
			}
			mu.Lock()
			result[k] = slot
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) OpenAsset(ctx context.Context, ref string) (io.ReadCloser, *ObjectMeta, error) {
	if s.assets == nil {
		return nil, nil, ErrAssetNotFound
	}
	name, ok := s.namer.NameFromRef(ref)
	if !ok {
		return nil, nil, ErrAssetNotFound
	}

	meta, err := s.assets.GetObjectMeta(ctx, name)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			return nil, nil, err
		}
		return nil, nil, &StorageError{Backend: s.assetsName, Key: name, Op: "stat", Err: err}
	}

	rc, err := s.assets.Download(ctx, name)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			return nil, nil, err
		}
		return nil, nil, &StorageError{Backend: s.assetsName, Key: name, Op: "download", Err: err}
	}
	return rc, meta, nil
}
