package simpleimage

import (
	"context"
)

// Service defines the main interface of the image repository
type Service interface {
	// Upload validates and stores one image, returning its new id
	Upload(ctx context.Context, req UploadRequest) (string, error)

	// BulkUpload validates every file before storing any and returns ids in request order
	BulkUpload(ctx context.Context, reqs []UploadRequest) ([]string, error)

	// GetOriginal resolves the URL of the original representation. It never converts.
	GetOriginal(ctx context.Context, id string) (string, error)

	// GetInFormat resolves the URL of the representation in format, converting
	// and caching it on first request
	GetInFormat(ctx context.Context, id, format string) (string, error)

	// BulkResolve resolves one URL per distinct id. It either succeeds for every
	// id or fails as a whole. An empty format resolves originals.
	BulkResolve(ctx context.Context, ids []string, format string) (map[string]string, error)
}
