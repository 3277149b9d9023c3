package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

const (
	DefaultMaxBulkIDs     = 100
	DefaultMaxUploadBytes = 32 << 20
)

// RepositoryHandler serves image access and upload endpoints
type RepositoryHandler struct {
	service        simpleimage.Service
	maxBulkIDs     int
	maxUploadBytes int64
	uploadAuth     Middleware
}

// RepositoryOption configures a RepositoryHandler
type RepositoryOption func(*RepositoryHandler)

// WithMaxBulkIDs caps the number of ids accepted by POST /urls
func WithMaxBulkIDs(n int) RepositoryOption {
	return func(h *RepositoryHandler) {
		h.maxBulkIDs = n
	}
}

// WithMaxUploadBytes caps the multipart body size of upload requests
func WithMaxUploadBytes(n int64) RepositoryOption {
	return func(h *RepositoryHandler) {
		h.maxUploadBytes = n
	}
}

// WithUploadAuth guards the upload routes
func WithUploadAuth(m Middleware) RepositoryOption {
	return func(h *RepositoryHandler) {
		h.uploadAuth = m
	}
}

func NewRepositoryHandler(service simpleimage.Service, opts ...RepositoryOption) *RepositoryHandler {
	h := &RepositoryHandler{
		service:        service,
		maxBulkIDs:     DefaultMaxBulkIDs,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for repository endpoints
func (h *RepositoryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/urls", h.ResolveURLs)
	r.Group(func(r chi.Router) {
		if h.uploadAuth != nil {
			r.Use(h.uploadAuth)
		}
		r.Use(RequestSizeLimitMiddleware(h.maxUploadBytes))
		r.Post("/upload", h.Upload)
		r.Post("/upload/bulk", h.BulkUpload)
	})
	r.Get("/{ref}", h.GetImage)
	return r
}

// GetImage redirects to the original (GET /{id}) or to the representation in
// the requested format (GET /{id}.{format}), converting it on first access.
func (h *RepositoryHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, format, err := splitRef(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var url string
	if format == "" {
		url, err = h.service.GetOriginal(r.Context(), id)
	} else {
		url, err = h.service.GetInFormat(r.Context(), id, format)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// ResolveURLs returns {id: url} for a JSON array of ids, in the optional format
func (h *RepositoryHandler) ResolveURLs(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if err := render.DecodeJSON(r.Body, &ids); err != nil {
		slog.Debug("Failed to decode request", "error", err)
		writeError(w, r, &simpleimage.ValidationError{Problems: []string{"request body must be a JSON array of ids"}})
		return
	}
	if err := validateIDs(ids, h.maxBulkIDs); err != nil {
		writeError(w, r, err)
		return
	}

	urls, err := h.service.BulkResolve(r.Context(), ids, r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, urls)
}

// Upload stores the single multipart "file" and returns its id
func (h *RepositoryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.readFiles(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(reqs) != 1 {
		writeError(w, r, &simpleimage.ValidationError{Problems: []string{"exactly one file is required"}})
		return
	}

	id, err := h.service.Upload(r.Context(), reqs[0])
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, id)
}

// BulkUpload stores every multipart "file" and returns the ids in request order
func (h *RepositoryHandler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.readFiles(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids, err := h.service.BulkUpload(r.Context(), reqs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ids)
}

func (h *RepositoryHandler) readFiles(r *http.Request) ([]simpleimage.UploadRequest, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return nil, &simpleimage.ValidationError{Problems: []string{fmt.Sprintf("invalid multipart request: %v", err)}}
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		return nil, &simpleimage.ValidationError{Problems: []string{"multipart field 'file' is required"}}
	}

	reqs := make([]simpleimage.UploadRequest, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, &simpleimage.ValidationError{Problems: []string{fmt.Sprintf("%s: %v", fh.Filename, err)}}
		}
		slog.Info("Uploading file", "name", fh.Filename, "size", fh.Size)
		reqs = append(reqs, simpleimage.UploadRequest{FileName: fh.Filename, Data: data})
	}
	return reqs, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
