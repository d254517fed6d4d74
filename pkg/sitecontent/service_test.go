package sitecontent_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/assetref"
	memoryrepo "github.com/tendant/simple-sitecontent/pkg/sitecontent/repo/memory"
	memorystorage "github.com/tendant/simple-sitecontent/pkg/sitecontent/storage/memory"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fixedNamer() *assetref.Namer {
	n := assetref.NewNamer(assetref.DefaultPrefix)
	n.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	n.Rand = func() int64 { return 42 }
	return n
}

type failingRepository struct {
	sitecontent.Repository
	err error
}

func (r *failingRepository) Upsert(ctx context.Context, page, key string, patch sitecontent.Patch, now time.Time) (*sitecontent.Slot, error) {
	return nil, r.err
}

func setupServiceTest(t *testing.T, opts ...sitecontent.Option) (sitecontent.Service, *memorystorage.Backend) {
	t.Helper()
	assets := memorystorage.New()
	base := []sitecontent.Option{
		sitecontent.WithRepository(memoryrepo.New()),
		sitecontent.WithAssetStore("memory", assets),
		sitecontent.WithNamer(fixedNamer()),
	}
	svc, err := sitecontent.New(append(base, opts...)...)
	require.NoError(t, err)
	return svc, assets
}

func TestNew_RequiresRepository(t *testing.T) {
	_, err := sitecontent.New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository is required")
}

func TestService_PutSlot_PartialUpdate(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	created, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{
		Page: "home",
		Key:  "hero",
		Patch: sitecontent.Patch{
			sitecontent.FieldTitle1:     "La memoria...",
			sitecontent.FieldTitle2:     "Octavio Paz",
			sitecontent.FieldLinkTitle1: "OPERE",
			sitecontent.FieldLink1:      "/opere",
		},
	})
	require.NoError(t, err)
	assert.Nil(t, created.Image1)
	assert.Nil(t, created.Description)

	updated, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{
		Page:  " home ",
		Key:   "hero",
		Patch: sitecontent.Patch{sitecontent.FieldTitle1: "X"},
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "X", *updated.Title1)
	assert.Equal(t, "Octavio Paz", *updated.Title2)
	assert.Equal(t, "/opere", *updated.Link1)

	found, err := svc.Find(ctx, "home", "hero")
	require.NoError(t, err)
	assert.Equal(t, updated, found)
}

func TestService_PutSlot_StoresImage(t *testing.T) {
	svc, assets := setupServiceTest(t)
	ctx := context.Background()

	slot, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{
		Page:  "home",
		Key:   "hero",
		Patch: sitecontent.Patch{sitecontent.FieldTitle1: "Hero", sitecontent.FieldImage1: "ignored"},
		Assets: []sitecontent.AssetUpload{
			{Field: sitecontent.FieldImage1, FileName: "my hero.png", Reader: bytes.NewReader(pngBytes(t, 4, 3))},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, slot.Image1)
	assert.Equal(t, "/dynamic-parts/1700000000000-42-my_hero.png", *slot.Image1)
	assert.Equal(t, 1, assets.Len())

	meta, err := assets.GetObjectMeta(ctx, "1700000000000-42-my_hero.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", meta.ContentType)

	rc, meta, err := svc.OpenAsset(ctx, *slot.Image1)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t, 4, 3), data)
	assert.Equal(t, int64(len(data)), meta.Size)

	// a later write without a file keeps the image
	slot, err = svc.PutSlot(ctx, sitecontent.PutSlotRequest{Page: "home", Key: "hero", Patch: sitecontent.Patch{sitecontent.FieldTitle1: "Renamed"}})
	require.NoError(t, err)
	assert.Equal(t, "/dynamic-parts/1700000000000-42-my_hero.png", *slot.Image1)
}

func TestService_PutSlot_RejectsBadUploads(t *testing.T) {
	ctx := context.Background()

	t.Run("NotAnImage", func(t *testing.T) {
		svc, assets := setupServiceTest(t)
		_, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{
			Page: "home", Key: "hero",
			Assets: []sitecontent.AssetUpload{{Field: sitecontent.FieldImage1, FileName: "notes.txt", Reader: strings.NewReader("hello")}},
		})
		assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)
		assert.Equal(t, 0, assets.Len())

		slot, err := svc.Find(ctx, "home", "hero")
		require.NoError(t, err)
		assert.Nil(t, slot)
	})

	t.Run("NonImageField", func(t *testing.T) {
		svc, _ := setupServiceTest(t)
		_, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{
			Page: "home", Key: "hero",
			Assets: []sitecontent.AssetUpload{{Field: sitecontent.FieldTitle1, FileName: "a.png", Reader: bytes.NewReader(pngBytes(t, 1, 1))}},
		})
		assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)
	})

	t.Run("SecondUploadFails", func(t *testing.T) {
		svc, assets := setupServiceTest(t)
		_, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{
			Page: "home", Key: "hero",
			Assets: []sitecontent.AssetUpload{
				{Field: sitecontent.FieldImage1, FileName: "a.png", Reader: bytes.NewReader(pngBytes(t, 1, 1))},
				{Field: sitecontent.FieldImage2, FileName: "b.txt", Reader: strings.NewReader("text")},
			},
		})
		assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)
		assert.Equal(t, 0, assets.Len())
	})

	t.Run("NoAssetStore", func(t *testing.T) {
		svc, err := sitecontent.New(sitecontent.WithRepository(memoryrepo.New()))
		require.NoError(t, err)
		_, err = svc.PutSlot(ctx, sitecontent.PutSlotRequest{
			Page: "home", Key: "hero",
			Assets: []sitecontent.AssetUpload{{Field: sitecontent.FieldImage1, FileName: "a.png", Reader: bytes.NewReader(pngBytes(t, 1, 1))}},
		})
		assert.ErrorIs(t, err, sitecontent.ErrAssetStoreRequired)
	})

	t.Run("UnknownField", func(t *testing.T) {
		svc, _ := setupServiceTest(t)
		_, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{Page: "home", Key: "hero", Patch: sitecontent.Patch{"subtitle": "x"}})
		assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		svc, _ := setupServiceTest(t)
		_, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{Page: "home", Key: " "})
		assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)
	})
}

func TestService_PutSlot_RepositoryFailure(t *testing.T) {
	cause := errors.New("connection reset")
	var hooked int
	svc, assets := setupServiceTest(t,
		sitecontent.WithRepository(&failingRepository{Repository: memoryrepo.New(), err: cause}),
		sitecontent.WithAfterPut(func(ctx context.Context, slot *sitecontent.Slot) { hooked++ }),
	)

	_, err := svc.PutSlot(context.Background(), sitecontent.PutSlotRequest{
		Page:   "home",
		Key:    "hero",
		Patch:  sitecontent.Patch{sitecontent.FieldTitle1: "X"},
		Assets: []sitecontent.AssetUpload{{Field: sitecontent.FieldImage1, FileName: "a.png", Reader: bytes.NewReader(pngBytes(t, 1, 1))}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sitecontent.ErrRepository)
	assert.ErrorIs(t, err, cause)

	var repoErr *sitecontent.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.Equal(t, "upsert", repoErr.Op)
	assert.Equal(t, "home", repoErr.Page)

	assert.Equal(t, 0, assets.Len(), "orphaned upload must be removed")
	assert.Zero(t, hooked)
}

func TestService_AfterPutHook(t *testing.T) {
	var seen []string
	svc, _ := setupServiceTest(t, sitecontent.WithAfterPut(func(ctx context.Context, slot *sitecontent.Slot) {
		seen = append(seen, slot.Page+"/"+slot.Key)
	}))

	_, err := svc.PutSlot(context.Background(), sitecontent.PutSlotRequest{Page: "about", Key: "hero"})
	require.NoError(t, err)
	assert.Equal(t, []string{"about/hero"}, seen)
}

func TestService_Clock(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	svc, _ := setupServiceTest(t, sitecontent.WithClock(func() time.Time { return now }))

	slot, err := svc.PutSlot(context.Background(), sitecontent.PutSlotRequest{Page: "home", Key: "hero"})
	require.NoError(t, err)
	assert.True(t, slot.CreatedAt.Equal(now))
	assert.Equal(t, time.UTC, slot.UpdatedAt.Location())
}

func TestService_Bundle(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	_, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{Page: "about", Key: "hero", Patch: sitecontent.Patch{sitecontent.FieldTitle1: "About"}})
	require.NoError(t, err)

	bundle, err := svc.Bundle(ctx, "about", []string{"hero", "overview", "hero"})
	require.NoError(t, err)
	require.Len(t, bundle, 2)
	require.NotNil(t, bundle["hero"])
	assert.Equal(t, "About", *bundle["hero"].Title1)
	assert.Contains(t, bundle, "overview")
	assert.Nil(t, bundle["overview"])

	_, err = svc.Bundle(ctx, "about", nil)
	assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)

	_, err = svc.Bundle(ctx, "about", []string{"hero", ""})
	assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)
}

func TestService_ListSlots(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	for _, key := range []string{"overview", "exhibitions", "hero"} {
		_, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{Page: "about", Key: key})
		require.NoError(t, err)
	}
	_, err := svc.PutSlot(ctx, sitecontent.PutSlotRequest{Page: "home", Key: "hero"})
	require.NoError(t, err)

	slots, err := svc.ListSlots(ctx, "about")
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "exhibitions", slots[0].Key)
	assert.Equal(t, "hero", slots[1].Key)
	assert.Equal(t, "overview", slots[2].Key)

	_, err = svc.ListSlots(ctx, "")
	assert.ErrorIs(t, err, sitecontent.ErrInvalidInput)
}

func TestService_OpenAsset_NotFound(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	for _, ref := range []string{"/dynamic-parts/missing.png", "/uploads/a.png", "/dynamic-parts/../etc/passwd", "https://cdn.example.org/a.png"} {
		_, _, err := svc.OpenAsset(ctx, ref)
		assert.ErrorIs(t, err, sitecontent.ErrAssetNotFound, ref)
	}
}
