package presigned

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

// BlobReader is the part of a blob store the handler needs
type BlobReader interface {
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)
}

// Handler serves presigned GET URLs from a blob store
type Handler struct {
	store  BlobReader
	signer *Signer
}

// NewHandler creates a handler serving blobs of store
func NewHandler(store BlobReader, signer *Signer) *Handler {
	return &Handler{store: store, signer: signer}
}

// Routes returns a router serving GET /* below its mount point. Mount it at
// the prefix of the signer's URL pattern, e.g. r.Mount("/blobs", h.Routes()).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(ValidateMiddleware(h.signer))
	r.Get("/*", h.HandleGet)
	return r
}

// HandleGet streams the blob whose key was validated by ValidateMiddleware
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := ObjectKeyFromContext(r.Context())
	if key == "" {
		key = chi.URLParam(r, "*")
	}
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}

	rc, err := h.store.Retrieve(r.Context(), key)
	if err != nil {
		if errors.Is(err, simpleimage.ErrBlobNotFound) {
			http.Error(w, "blob not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to retrieve blob", "key", key, "error", err)
		http.Error(w, "failed to retrieve blob", http.StatusServiceUnavailable)
		return
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 512)
	contentType, disposition := "", fmt.Sprintf("inline; filename=%q", path.Base(key))
	if statter, ok := h.store.(simpleimage.BlobStatter); ok {
		if info, err := statter.Stat(r.Context(), key); err == nil {
			contentType = info.ContentType
			if info.ContentDisposition != "" {
				disposition = info.ContentDisposition
			}
		}
	}
	if contentType == "" {
		head, _ := br.Peek(512)
		contentType = http.DetectContentType(head)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, br); err != nil {
		slog.Warn("Failed to stream blob", "key", key, "error", err)
	}
}
