package fs_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-image/pkg/simpleimage"
	"github.com/tendant/simple-image/pkg/simpleimage/presigned"
	"github.com/tendant/simple-image/pkg/simpleimage/storage/fs"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n0000000000")

func newBackend(t *testing.T) (*fs.Backend, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := fs.New(fs.Config{BaseDir: dir})
	require.NoError(t, err)
	return backend, dir
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)
}

func TestStoreRetrieveDelete(t *testing.T) {
	ctx := context.Background()
	backend, dir := newBackend(t)

	key := "derived/png/ab/cdef.png"
	got, err := backend.Store(ctx, key, "png", bytes.NewReader(pngMagic), int64(len(pngMagic)))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = os.Stat(filepath.Join(dir, "derived", "png", "ab", "cdef.png"))
	require.NoError(t, err)

	rc, err := backend.Retrieve(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, pngMagic, data)

	info, err := backend.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, `inline; filename="cdef.png"`, info.ContentDisposition)

	require.NoError(t, backend.Delete(ctx, key))
	_, err = backend.Retrieve(ctx, key)
	assert.ErrorIs(t, err, simpleimage.ErrBlobNotFound)

	// empty shard directories are removed
	_, err = os.Stat(filepath.Join(dir, "derived"))
	assert.True(t, os.IsNotExist(err))
}

func TestStatUsesStoredFormat(t *testing.T) {
	ctx := context.Background()
	backend, dir := newBackend(t)

	// little-endian TIFF header, which content sniffing does not recognize
	tiff := []byte("II*\x00\x08\x00\x00\x00payload")

	tests := []struct {
		name        string
		key         string
		format      string
		data        []byte
		contentType string
		disposition string
	}{
		{
			name:        "tiff without extension",
			key:         "k1",
			format:      "tiff",
			data:        tiff,
			contentType: "image/tiff",
			disposition: `inline; filename="k1.tiff"`,
		},
		{
			name:        "format tag wins over content",
			key:         "derived/jpg/9f/9f01",
			format:      "JPG",
			data:        pngMagic,
			contentType: "image/jpeg",
			disposition: `inline; filename="9f01.jpg"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := backend.Store(ctx, tt.key, tt.format, bytes.NewReader(tt.data), int64(len(tt.data)))
			require.NoError(t, err)

			info, err := backend.Stat(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.contentType, info.ContentType)
			assert.Equal(t, tt.disposition, info.ContentDisposition)
			assert.Equal(t, int64(len(tt.data)), info.Size)
		})
	}

	require.NoError(t, backend.Delete(ctx, "k1"))
	_, err := os.Stat(filepath.Join(dir, "k1.meta.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestStatWithoutMetadataSniffs(t *testing.T) {
	ctx := context.Background()
	backend, dir := newBackend(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy"), pngMagic, 0644))

	info, err := backend.Stat(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, `inline; filename="legacy.png"`, info.ContentDisposition)
}

func TestRejectsMetadataKeys(t *testing.T) {
	backend, _ := newBackend(t)

	_, err := backend.Retrieve(context.Background(), "k1.meta.json")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, simpleimage.ErrBlobNotFound)
}

func TestStoreLengthMismatchLeavesNothing(t *testing.T) {
	ctx := context.Background()
	backend, _ := newBackend(t)

	_, err := backend.Store(ctx, "k", "jpg", strings.NewReader("abc"), 10)
	require.Error(t, err)

	_, err = backend.Retrieve(ctx, "k")
	assert.ErrorIs(t, err, simpleimage.ErrBlobNotFound)
}

func TestRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	backend, _ := newBackend(t)

	_, err := backend.Store(ctx, "../outside", "png", bytes.NewReader(pngMagic), int64(len(pngMagic)))
	assert.Error(t, err)
	_, err = backend.Retrieve(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, simpleimage.ErrBlobNotFound)
}

func TestResolveURL(t *testing.T) {
	signer := presigned.New(presigned.WithSecretKey("secret"))
	backend, err := fs.New(fs.Config{
		BaseDir:  t.TempDir(),
		Resolver: presigned.NewResolver(signer, "https://img.example.com"),
	})
	require.NoError(t, err)

	u, err := backend.ResolveURL(context.Background(), "c53c")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://img.example.com/blobs/c53c?signature="))
}
