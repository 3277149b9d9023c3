package simpleimage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-image/pkg/simpleimage"
	storagememory "github.com/tendant/simple-image/pkg/simpleimage/storage/memory"
)

func TestValidateUpload(t *testing.T) {
	valid := samplePNG(t)

	tests := []struct {
		name    string
		req     simpleimage.UploadRequest
		format  string
		kind    simpleimage.ErrorKind
		message string
	}{
		{
			name:   "valid png",
			req:    simpleimage.UploadRequest{FileName: "tile.png", Data: valid},
			format: "png",
		},
		{
			name:   "extension is case insensitive",
			req:    simpleimage.UploadRequest{FileName: "TILE.PNG", Data: valid},
			format: "png",
		},
		{
			name:    "missing file name",
			req:     simpleimage.UploadRequest{Data: valid},
			kind:    simpleimage.KindBadRequest,
			message: "file name is required",
		},
		{
			name:    "unsupported extension",
			req:     simpleimage.UploadRequest{FileName: "tile.webp", Data: valid},
			kind:    simpleimage.KindUnsupportedFormat,
			message: "[webp]",
		},
		{
			name:    "empty file",
			req:     simpleimage.UploadRequest{FileName: "tile.png"},
			kind:    simpleimage.KindBadRequest,
			message: "tile.png: file is empty",
		},
		{
			name:    "not an image",
			req:     simpleimage.UploadRequest{FileName: "tile.png", Data: []byte("definitely not a png")},
			kind:    simpleimage.KindBadRequest,
			message: "tile.png: not a valid image",
		},
		{
			name:    "valid header with truncated pixel data",
			req:     simpleimage.UploadRequest{FileName: "tile.png", Data: valid[:len(valid)-20]},
			kind:    simpleimage.KindBadRequest,
			message: "tile.png: not a valid image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := simpleimage.ValidateUpload(tt.req)
			if tt.kind == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.format, format)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, simpleimage.KindOf(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestUpload(t *testing.T) {
	env := setupMemoryService(t)
	ctx := context.Background()

	id, err := env.svc.Upload(ctx, simpleimage.UploadRequest{FileName: "tile.png", Data: samplePNG(t)})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	img, err := env.catalog.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tile.png", img.Name)
	assert.Equal(t, "png", img.OriginalFormat)
	assert.Equal(t, int64(1), img.Version)
	require.Len(t, img.FormatsMapping, 1)

	key, ok := img.ResolveStorageKey("")
	require.True(t, ok)
	info, err := env.store.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)

	url, err := env.svc.GetOriginal(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, url, key)
}

func TestBulkUploadValidation(t *testing.T) {
	env := setupMemoryService(t)
	ctx := context.Background()

	_, err := env.svc.BulkUpload(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, simpleimage.KindBadRequest, simpleimage.KindOf(err))

	_, err = env.svc.BulkUpload(ctx, []simpleimage.UploadRequest{
		{FileName: "ok.png", Data: samplePNG(t)},
		{FileName: "empty.png"},
		{FileName: "broken.gif", Data: []byte("nope")},
	})
	require.Error(t, err)

	var verr *simpleimage.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"empty.png: file is empty", "broken.gif: not a valid image"}, verr.Problems)
	assert.Equal(t, 0, env.store.Len())
	assert.Equal(t, 0, env.catalog.Len())
}

func TestBulkUploadKeepsRequestOrder(t *testing.T) {
	env := setupMemoryService(t)
	ctx := context.Background()

	names := []string{"one.png", "two.png", "three.png", "four.png"}
	reqs := make([]simpleimage.UploadRequest, len(names))
	for i, name := range names {
		reqs[i] = simpleimage.UploadRequest{FileName: name, Data: samplePNG(t)}
	}

	ids, err := env.svc.BulkUpload(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, ids, len(names))

	for i, id := range ids {
		img, err := env.catalog.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, names[i], img.Name)
	}
}

func TestUploadDiscardsBlobWhenCatalogFails(t *testing.T) {
	catalog := new(MockCatalog)
	store := storagememory.New()
	svc, err := simpleimage.New(
		simpleimage.WithCatalog(catalog),
		simpleimage.WithBlobStore("memory", store),
		simpleimage.WithConverter(new(MockConverter)),
	)
	require.NoError(t, err)

	catalog.On("Create", mock.Anything, mock.Anything).Return("", errors.New("db down")).Once()

	_, err = svc.Upload(context.Background(), simpleimage.UploadRequest{FileName: "tile.png", Data: samplePNG(t)})
	require.Error(t, err)
	assert.Equal(t, simpleimage.KindStorageFailure, simpleimage.KindOf(err))
	assert.Equal(t, 0, store.Len())
	catalog.AssertExpectations(t)
}
