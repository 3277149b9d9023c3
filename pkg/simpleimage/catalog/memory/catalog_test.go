package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-image/pkg/simpleimage"
	"github.com/tendant/simple-image/pkg/simpleimage/catalog/memory"
)

func newImage() *simpleimage.Image {
	return &simpleimage.Image{
		Name:           "cat.jpg",
		OriginalFormat: "jpg",
		FormatsMapping: map[string]string{"jpg": "c53c"},
	}
}

func TestCatalogCreateRead(t *testing.T) {
	ctx := context.Background()
	catalog := memory.New()

	img := newImage()
	id, err := catalog.Create(ctx, img)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, img.ID)
	assert.Equal(t, int64(1), img.Version)
	assert.False(t, img.CreatedAt.IsZero())

	got, err := catalog.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cat.jpg", got.Name)
	assert.Equal(t, map[string]string{"jpg": "c53c"}, got.FormatsMapping)

	// returned records are private copies
	got.FormatsMapping["png"] = "d53c"
	again, err := catalog.Read(ctx, id)
	require.NoError(t, err)
	assert.False(t, again.Supports("png"))
}

func TestCatalogCreateKeepsGivenID(t *testing.T) {
	catalog := memory.New()
	img := newImage()
	img.ID = "b53c"

	id, err := catalog.Create(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "b53c", id)
}

func TestCatalogReadMissing(t *testing.T) {
	_, err := memory.New().Read(context.Background(), "a53c")
	assert.ErrorIs(t, err, simpleimage.ErrImageNotFound)
}

func TestCatalogUpdateVersioning(t *testing.T) {
	ctx := context.Background()
	catalog := memory.New()

	img := newImage()
	id, err := catalog.Create(ctx, img)
	require.NoError(t, err)

	first, err := catalog.Read(ctx, id)
	require.NoError(t, err)
	second, err := catalog.Read(ctx, id)
	require.NoError(t, err)

	first.FormatsMapping["png"] = "d53c"
	require.NoError(t, catalog.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.FormatsMapping["gif"] = "e53c"
	assert.ErrorIs(t, catalog.Update(ctx, second), simpleimage.ErrVersionConflict)
	assert.Equal(t, int64(1), second.Version, "failed update must not bump the caller's version")

	// read-your-writes
	got, err := catalog.Read(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Supports("png"))
	assert.False(t, got.Supports("gif"))
	assert.Equal(t, int64(2), got.Version)
}

func TestCatalogUpdateMissing(t *testing.T) {
	err := memory.New().Update(context.Background(), &simpleimage.Image{ID: "a53c"})
	assert.ErrorIs(t, err, simpleimage.ErrImageNotFound)
}

func TestCatalogDelete(t *testing.T) {
	ctx := context.Background()
	catalog := memory.New()

	img := newImage()
	_, err := catalog.Create(ctx, img)
	require.NoError(t, err)

	require.NoError(t, catalog.Delete(ctx, img))
	_, err = catalog.Read(ctx, img.ID)
	assert.ErrorIs(t, err, simpleimage.ErrImageNotFound)
	assert.ErrorIs(t, catalog.Delete(ctx, img), simpleimage.ErrImageNotFound)
}

func TestCatalogConcurrentUpdatesOneWins(t *testing.T) {
	ctx := context.Background()
	catalog := memory.New()

	img := newImage()
	id, err := catalog.Create(ctx, img)
	require.NoError(t, err)

	const writers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < writers; i++ {
		rec, err := catalog.Read(ctx, id)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.FormatsMapping["png"] = "key"
			if catalog.Update(ctx, rec) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}
