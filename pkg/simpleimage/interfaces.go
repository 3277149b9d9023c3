package simpleimage

import (
	"context"
	"io"
	"time"
)

// Catalog persists Image records.
type Catalog interface {
	// Create assigns ID (when empty), timestamps and Version 1, then persists the record
	Create(ctx context.Context, img *Image) (string, error)

	// Read returns a private copy of the record or ErrImageNotFound
	Read(ctx context.Context, id string) (*Image, error)

	// Update overwrites the record when img.Version matches the stored version,
	// bumping Version and UpdatedAt on img. Otherwise it returns ErrVersionConflict.
	Update(ctx context.Context, img *Image) error

	// Delete removes the record
	Delete(ctx context.Context, img *Image) error
}

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Store writes length bytes under key with content type image/<format>
	Store(ctx context.Context, key, format string, data io.Reader, length int64) (string, error)

	// Retrieve opens the blob under key or returns ErrBlobNotFound
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)

	// ResolveURL derives a time-limited URL for key without checking existence
	ResolveURL(ctx context.Context, key string) (string, error)

	// Delete removes the blob under key
	Delete(ctx context.Context, key string) error
}

// Converter turns image bytes into another format.
type Converter interface {
	Convert(ctx context.Context, payload []byte, targetFormat string) ([]byte, error)
}

// EventSink defines the interface for event handling
type EventSink interface {
	// ImageUploaded is fired after an upload is committed to the catalog
	ImageUploaded(ctx context.Context, img *Image) error

	// FormatResolved is fired for every resolved representation; cached is
	// false when the pipeline had to run
	FormatResolved(ctx context.Context, imageID, format string, cached bool) error

	// ImageConverted is fired after a new representation is published
	ImageConverted(ctx context.Context, imageID, format, key string, took time.Duration) error

	// ConversionFailed is fired when the convert-and-cache pipeline fails
	ConversionFailed(ctx context.Context, imageID, format string, err error) error
}

// BlobInfo describes a stored blob
type BlobInfo struct {
	Key                string
	Size               int64
	ContentType        string
	ContentDisposition string
	UpdatedAt          time.Time
}

// BlobStatter is implemented by blob stores that can describe a blob without reading it
type BlobStatter interface {
	Stat(ctx context.Context, key string) (*BlobInfo, error)
}

// URLResolver derives time-limited URLs from storage keys
type URLResolver interface {
	ResolveURL(ctx context.Context, key string) (string, error)
}
