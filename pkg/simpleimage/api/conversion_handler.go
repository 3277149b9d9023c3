package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-image/pkg/simpleimage"
	"github.com/tendant/simple-image/pkg/simpleimage/codec"
)

// DefaultMaxPayloadBytes caps payloads accepted and fetched by the conversion service
const DefaultMaxPayloadBytes = 32 << 20

// OriginalFetcher loads the original bytes of a repository image
type OriginalFetcher interface {
	FetchOriginal(ctx context.Context, id string) ([]byte, error)
}

// ConversionHandler serves the conversion service endpoints
type ConversionHandler struct {
	converter  simpleimage.Converter
	originals  OriginalFetcher
	httpClient *http.Client
	maxBytes   int64
}

// ConversionOption configures a ConversionHandler
type ConversionOption func(*ConversionHandler)

// WithOriginalFetcher enables the id mode of GET /
func WithOriginalFetcher(f OriginalFetcher) ConversionOption {
	return func(h *ConversionHandler) {
		h.originals = f
	}
}

// WithFetchClient sets the client used for the url mode of GET /
func WithFetchClient(c *http.Client) ConversionOption {
	return func(h *ConversionHandler) {
		h.httpClient = c
	}
}

// WithMaxPayloadBytes caps request and fetched payload sizes
func WithMaxPayloadBytes(n int64) ConversionOption {
	return func(h *ConversionHandler) {
		h.maxBytes = n
	}
}

func NewConversionHandler(converter simpleimage.Converter, opts ...ConversionOption) *ConversionHandler {
	h := &ConversionHandler{
		converter:  converter,
		httpClient: http.DefaultClient,
		maxBytes:   DefaultMaxPayloadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for conversion endpoints
func (h *ConversionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(RequestSizeLimitMiddleware(h.maxBytes), DecompressMiddleware).Post("/", h.ConvertPayload)
	r.Get("/", h.ConvertFromSource)
	return r
}

// ConvertPayload converts the request body to ?format=
func (h *ConversionHandler) ConvertPayload(w http.ResponseWriter, r *http.Request) {
	format, err := validateFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, &simpleimage.ValidationError{Problems: []string{fmt.Sprintf("unable to read payload: %v", err)}})
		return
	}

	h.convert(w, r, payload, format)
}

// ConvertFromSource fetches the image named by exactly one of ?url= or ?id=
// and converts it to ?format=
func (h *ConversionHandler) ConvertFromSource(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source, id := q.Get("url"), q.Get("id")
	if err := validateSource(source, id); err != nil {
		writeError(w, r, err)
		return
	}

	format, err := validateFormat(q.Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var payload []byte
	if source != "" {
		payload, err = h.fetchURL(r.Context(), source)
	} else {
		payload, err = h.fetchOriginal(r.Context(), id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.convert(w, r, payload, format)
}

func (h *ConversionHandler) convert(w http.ResponseWriter, r *http.Request, payload []byte, format string) {
	out, err := h.converter.Convert(r.Context(), payload, format)
	if err != nil {
		if errors.Is(err, codec.ErrUndecodable) {
			err = &simpleimage.ValidationError{Problems: []string{"payload is not a decodable image"}}
		}
		writeError(w, r, err)
		return
	}

	slog.Info("Image converted", "format", format, "in_bytes", len(payload), "out_bytes", len(out))
	w.Header().Set("Content-Type", simpleimage.MimeType(format))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		slog.Warn("Failed to write converted image", "error", err)
	}
}

func (h *ConversionHandler) fetchOriginal(ctx context.Context, id string) ([]byte, error) {
	if h.originals == nil {
		return nil, &simpleimage.ValidationError{Problems: []string{"conversion by id is not configured"}}
	}
	return h.originals.FetchOriginal(ctx, id)
}

func (h *ConversionHandler) fetchURL(ctx context.Context, raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &simpleimage.ValidationError{Problems: []string{fmt.Sprintf("invalid url: %q", raw)}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &simpleimage.ValidationError{Problems: []string{fmt.Sprintf("invalid url: %q", raw)}}
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, &simpleimage.StorageError{Backend: "url", Key: raw, Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &simpleimage.StorageError{Backend: "url", Key: raw, Op: "fetch", Err: simpleimage.ErrBlobNotFound}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &simpleimage.StorageError{Backend: "url", Key: raw, Op: "fetch", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, &simpleimage.StorageError{Backend: "url", Key: raw, Op: "fetch", Err: err}
	}
	if int64(len(data)) > h.maxBytes {
		return nil, &simpleimage.ValidationError{Problems: []string{fmt.Sprintf("image at url exceeds %d bytes", h.maxBytes)}}
	}
	return data, nil
}
