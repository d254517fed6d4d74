package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/repo/repotest"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/repo/sqlite"
)

func openTestRepository(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "content", "site.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) sitecontent.Repository {
		return openTestRepository(t)
	})
}

func TestRepository_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.db")
	ctx := context.Background()

	repo, err := sqlite.Open(path)
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "about", "hero", sitecontent.Patch{sitecontent.FieldTitle1: "Studio"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	slot, err := reopened.Find(ctx, "about", "hero")
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, "Studio", *slot.Title1)
	assert.Nil(t, slot.Title2)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	assert.Error(t, err)
}
