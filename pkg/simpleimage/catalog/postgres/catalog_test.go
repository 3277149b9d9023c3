package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-image/pkg/simpleimage"
	"github.com/tendant/simple-image/pkg/simpleimage/catalog/postgres"
)

func TestPostgresCatalog(t *testing.T) {
	RunTest(t, func(t *testing.T, catalog *postgres.Catalog, db *TestDB) {
		ctx := context.Background()

		img := &simpleimage.Image{
			Name:           "cat.jpg",
			OriginalFormat: "jpg",
			FormatsMapping: map[string]string{"jpg": "c53c"},
		}
		id, err := catalog.Create(ctx, img)
		require.NoError(t, err)
		assert.Equal(t, int64(1), img.Version)

		got, err := catalog.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "cat.jpg", got.Name)
		assert.Equal(t, "jpg", got.OriginalFormat)
		assert.Equal(t, map[string]string{"jpg": "c53c"}, got.FormatsMapping)
		assert.Equal(t, int64(1), got.Version)

		stale, err := catalog.Read(ctx, id)
		require.NoError(t, err)

		got.FormatsMapping["png"] = "d53c"
		require.NoError(t, catalog.Update(ctx, got))
		assert.Equal(t, int64(2), got.Version)

		stale.FormatsMapping["gif"] = "e53c"
		assert.ErrorIs(t, catalog.Update(ctx, stale), simpleimage.ErrVersionConflict)

		again, err := catalog.Read(ctx, id)
		require.NoError(t, err)
		assert.True(t, again.Supports("png"))
		assert.False(t, again.Supports("gif"))

		require.NoError(t, catalog.Delete(ctx, again))
		_, err = catalog.Read(ctx, id)
		assert.ErrorIs(t, err, simpleimage.ErrImageNotFound)
		assert.ErrorIs(t, catalog.Update(ctx, again), simpleimage.ErrImageNotFound)
		assert.ErrorIs(t, catalog.Delete(ctx, again), simpleimage.ErrImageNotFound)
	})
}

func TestPostgresCatalogReadMissing(t *testing.T) {
	RunTest(t, func(t *testing.T, catalog *postgres.Catalog, db *TestDB) {
		_, err := catalog.Read(context.Background(), "a53c")
		assert.ErrorIs(t, err, simpleimage.ErrImageNotFound)
	})
}

func TestPostgresCatalogDuplicateCreate(t *testing.T) {
	RunTest(t, func(t *testing.T, catalog *postgres.Catalog, db *TestDB) {
		ctx := context.Background()
		img := &simpleimage.Image{ID: "b53c", OriginalFormat: "jpg", FormatsMapping: map[string]string{"jpg": "c53c"}}
		_, err := catalog.Create(ctx, img)
		require.NoError(t, err)

		_, err = catalog.Create(ctx, img.Clone())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})
}
