package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-image/pkg/simpleimage"
	"github.com/tendant/simple-image/pkg/simpleimage/codec"
	"github.com/tendant/simple-image/pkg/simpleimage/convert/local"
)

// stubOriginals serves originals from a map
type stubOriginals map[string][]byte

func (s stubOriginals) FetchOriginal(ctx context.Context, id string) ([]byte, error) {
	data, ok := s[id]
	if !ok {
		return nil, &simpleimage.NotFoundError{IDs: []string{id}}
	}
	return data, nil
}

func setupConversionTest(t *testing.T) (http.Handler, []byte) {
	t.Helper()
	original := samplePNG(t)
	handler := NewConversionHandler(local.New(), WithOriginalFetcher(stubOriginals{"b53c": original}))

	router := chi.NewRouter()
	router.Mount("/conversion", handler.Routes())
	return router, original
}

func assertImage(t *testing.T, w *httptest.ResponseRecorder, format string) {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, simpleimage.MimeType(format), w.Header().Get("Content-Type"))
	detected, err := codec.Validate(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, format, detected)
}

func TestConversionHandler_ConvertPayload(t *testing.T) {
	router, original := setupConversionTest(t)

	t.Run("plain payload", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversion?format=gif", bytes.NewReader(original)))
		assertImage(t, w, "gif")
	})

	t.Run("gzip payload", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write(original)
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		req := httptest.NewRequest(http.MethodPost, "/conversion?format=bmp", &buf)
		req.Header.Set("Content-Encoding", "gzip")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assertImage(t, w, "bmp")
	})

	t.Run("broken gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/conversion?format=bmp", bytes.NewReader(original))
		req.Header.Set("Content-Encoding", "gzip")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unsupported format", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversion?format=webp", bytes.NewReader(original)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeProblem(t, w)
		assert.Equal(t, "requested image format [webp] is not supported", resp.Details)
	})

	t.Run("missing format", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversion", bytes.NewReader(original)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("undecodable payload", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/conversion?format=png", bytes.NewReader([]byte("garbage"))))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeProblem(t, w)
		assert.Equal(t, []interface{}{"payload is not a decodable image"}, resp.Details)
	})
}

func TestConversionHandler_ConvertFromSource(t *testing.T) {
	router, original := setupConversionTest(t)

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tile.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(original)
	}))
	defer source.Close()

	get := func(query url.Values) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversion?"+query.Encode(), nil))
		return w
	}

	t.Run("by url", func(t *testing.T) {
		assertImage(t, get(url.Values{"format": {"jpg"}, "url": {source.URL + "/tile.png"}}), "jpeg")
	})

	t.Run("by id", func(t *testing.T) {
		assertImage(t, get(url.Values{"format": {"tiff"}, "id": {"b53c"}}), "tiff")
	})

	t.Run("both url and id", func(t *testing.T) {
		w := get(url.Values{"format": {"png"}, "id": {"b53c"}, "url": {source.URL + "/tile.png"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeProblem(t, w)
		assert.Equal(t, []interface{}{"either 'id' or 'url' should be provided"}, resp.Details)
	})

	t.Run("neither url nor id", func(t *testing.T) {
		w := get(url.Values{"format": {"png"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := get(url.Values{"format": {"png"}, "id": {"a53c"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing url target", func(t *testing.T) {
		w := get(url.Values{"format": {"png"}, "url": {source.URL + "/gone.png"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non http url", func(t *testing.T) {
		w := get(url.Values{"format": {"png"}, "url": {"file:///etc/passwd"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
