// Package repotest holds the behavioural test suite every
// sitecontent.Repository implementation has to pass.
package repotest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
)

// Factory returns a ready repository for one subtest.
type Factory func(t *testing.T) sitecontent.Repository

// uniquePage keeps subtests apart when the backend is shared.
func uniquePage(name string) string {
	return fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])
}

// Run executes the suite against the repositories produced by newRepo.
func Run(t *testing.T, newRepo Factory) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Find_NotWritten", func(t *testing.T) {
		repo := newRepo(t)
		slot, err := repo.Find(ctx, uniquePage("home"), "hero")
		assert.NoError(t, err)
		assert.Nil(t, slot)
	})

	t.Run("Upsert_CreatesWithAbsentFields", func(t *testing.T) {
		repo := newRepo(t)
		page := uniquePage("home")

		patch := sitecontent.Patch{}.
			Set(sitecontent.FieldTitle1, "La memoria...").
			Set(sitecontent.FieldTitle2, "Octavio Paz").
			Set(sitecontent.FieldLinkTitle1, "OPERE").
			Set(sitecontent.FieldLink1, "/opere")

		created, err := repo.Upsert(ctx, page, "hero", patch, base)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, page, created.Page)
		assert.Equal(t, "hero", created.Key)

		found, err := repo.Find(ctx, page, "hero")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "La memoria...", *found.Title1)
		assert.Equal(t, "Octavio Paz", *found.Title2)
		assert.Equal(t, "OPERE", *found.LinkTitle1)
		assert.Equal(t, "/opere", *found.Link1)
		assert.Nil(t, found.Image1)
		assert.Nil(t, found.Image2)
		assert.Nil(t, found.Description)
		assert.Nil(t, found.LinkTitle2)
		assert.Nil(t, found.Link2)
		assert.True(t, found.CreatedAt.Equal(base))
		assert.True(t, found.UpdatedAt.Equal(base))
	})

	t.Run("Upsert_PartialUpdatePreservesFields", func(t *testing.T) {
		repo := newRepo(t)
		page := uniquePage("home")

		_, err := repo.Upsert(ctx, page, "hero", sitecontent.Patch{
			sitecontent.FieldTitle1:     "La memoria...",
			sitecontent.FieldTitle2:     "Octavio Paz",
			sitecontent.FieldLinkTitle1: "OPERE",
			sitecontent.FieldLink1:      "/opere",
		}, base)
		require.NoError(t, err)

		_, err = repo.Upsert(ctx, page, "hero", sitecontent.Patch{
			sitecontent.FieldImage1: "/uploads/123-pic.jpg",
		}, base.Add(time.Minute))
		require.NoError(t, err)

		found, err := repo.Find(ctx, page, "hero")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "La memoria...", *found.Title1)
		assert.Equal(t, "Octavio Paz", *found.Title2)
		assert.Equal(t, "OPERE", *found.LinkTitle1)
		assert.Equal(t, "/opere", *found.Link1)
		assert.Equal(t, "/uploads/123-pic.jpg", *found.Image1)

		_, err = repo.Upsert(ctx, page, "hero", sitecontent.Patch{sitecontent.FieldTitle1: "X"}, base.Add(2*time.Minute))
		require.NoError(t, err)

		found, err = repo.Find(ctx, page, "hero")
		require.NoError(t, err)
		assert.Equal(t, "X", *found.Title1)
		assert.Equal(t, "/uploads/123-pic.jpg", *found.Image1)
	})

	t.Run("Upsert_ExplicitClearIsNotAbsent", func(t *testing.T) {
		repo := newRepo(t)
		page := uniquePage("about")

		_, err := repo.Upsert(ctx, page, "hero", sitecontent.Patch{sitecontent.FieldTitle2: "subtitle"}, base)
		require.NoError(t, err)
		_, err = repo.Upsert(ctx, page, "hero", sitecontent.Patch{sitecontent.FieldTitle2: ""}, base)
		require.NoError(t, err)

		found, err := repo.Find(ctx, page, "hero")
		require.NoError(t, err)
		require.NotNil(t, found.Title2)
		assert.Equal(t, "", *found.Title2)
		assert.Nil(t, found.Title1)
	})

	t.Run("Upsert_Timestamps", func(t *testing.T) {
		repo := newRepo(t)
		page := uniquePage("portfolio")

		first, err := repo.Upsert(ctx, page, "hero", sitecontent.Patch{}, base)
		require.NoError(t, err)

		second, err := repo.Upsert(ctx, page, "hero", sitecontent.Patch{sitecontent.FieldImage1: "/a.jpg"}, base.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
		assert.True(t, second.UpdatedAt.Equal(base.Add(time.Hour)))

		// a write carrying an older clock must not move updated_at back
		third, err := repo.Upsert(ctx, page, "hero", sitecontent.Patch{sitecontent.FieldImage1: "/b.jpg"}, base)
		require.NoError(t, err)
		assert.True(t, third.CreatedAt.Equal(first.CreatedAt))
		assert.False(t, third.UpdatedAt.Before(second.UpdatedAt))
		assert.Equal(t, "/b.jpg", *third.Image1)
	})

	t.Run("Upsert_JSONDescriptionRoundTrip", func(t *testing.T) {
		repo := newRepo(t)
		page := uniquePage("about")

		items := []map[string]interface{}{
			{"year": float64(2020), "description": "X"},
			{"year": float64(2021), "description": "Y", "href": "https://example.com"},
		}
		raw, err := json.Marshal(items)
		require.NoError(t, err)

		_, err = repo.Upsert(ctx, page, "exhibitions", sitecontent.Patch{sitecontent.FieldDesc: string(raw)}, base)
		require.NoError(t, err)

		found, err := repo.Find(ctx, page, "exhibitions")
		require.NoError(t, err)
		require.NotNil(t, found.Description)

		var decoded []map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(*found.Description), &decoded))
		assert.Equal(t, items, decoded)
	})

	t.Run("Upsert_PagesAreSeparateNamespaces", func(t *testing.T) {
		repo := newRepo(t)
		home, about := uniquePage("home"), uniquePage("about")

		_, err := repo.Upsert(ctx, home, "hero", sitecontent.Patch{sitecontent.FieldTitle1: "home"}, base)
		require.NoError(t, err)
		_, err = repo.Upsert(ctx, about, "hero", sitecontent.Patch{sitecontent.FieldTitle1: "about"}, base)
		require.NoError(t, err)

		h, err := repo.Find(ctx, home, "hero")
		require.NoError(t, err)
		a, err := repo.Find(ctx, about, "hero")
		require.NoError(t, err)
		assert.NotEqual(t, h.ID, a.ID)
		assert.Equal(t, "home", *h.Title1)
		assert.Equal(t, "about", *a.Title1)
	})

	t.Run("Upsert_ConcurrentSamePair", func(t *testing.T) {
		repo := newRepo(t)
		page := uniquePage("home")

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for _, title := range []string{"Alpha", "Beta"} {
			title := title
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Upsert(ctx, page, "hero", sitecontent.Patch{sitecontent.FieldTitle1: title}, time.Now().UTC())
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		slots, err := repo.ListPage(ctx, page)
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Contains(t, []string{"Alpha", "Beta"}, *slots[0].Title1)
	})

	t.Run("Upsert_ConcurrentManyWriters", func(t *testing.T) {
		repo := newRepo(t)
		page := uniquePage("about")
		const writers = 16

		var wg sync.WaitGroup
		errs := make(chan error, writers*2)
		for i := 0; i < writers; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Upsert(ctx, page, "overview", sitecontent.Patch{
					sitecontent.FieldTitle1: fmt.Sprintf("title-%d", i),
					sitecontent.FieldLink1:  fmt.Sprintf("/link-%d", i),
				}, time.Now().UTC())
				errs <- err
				_, err = repo.Upsert(ctx, page, fmt.Sprintf("key-%d", i), sitecontent.Patch{}, time.Now().UTC())
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		slots, err := repo.ListPage(ctx, page)
		require.NoError(t, err)
		assert.Len(t, slots, writers+1)

		overview, err := repo.Find(ctx, page, "overview")
		require.NoError(t, err)
		require.NotNil(t, overview)
		// both fields come from the same write
		var n int
		_, err = fmt.Sscanf(*overview.Title1, "title-%d", &n)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("/link-%d", n), *overview.Link1)
	})

	t.Run("ListPage_OrderedByKey", func(t *testing.T) {
		repo := newRepo(t)
		page := uniquePage("about")

		for _, key := range []string{"overview", "exhibitions", "hero"} {
			_, err := repo.Upsert(ctx, page, key, sitecontent.Patch{}, base)
			require.NoError(t, err)
		}
		_, err := repo.Upsert(ctx, uniquePage("home"), "hero", sitecontent.Patch{}, base)
		require.NoError(t, err)

		slots, err := repo.ListPage(ctx, page)
		require.NoError(t, err)
		require.Len(t, slots, 3)
		assert.Equal(t, "exhibitions", slots[0].Key)
		assert.Equal(t, "hero", slots[1].Key)
		assert.Equal(t, "overview", slots[2].Key)

		empty, err := repo.ListPage(ctx, uniquePage("blog"))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
