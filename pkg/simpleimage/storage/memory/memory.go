package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-image/pkg/simpleimage"
	"github.com/tendant/simple-image/pkg/simpleimage/presigned"
)

type object struct {
	data []byte
	info simpleimage.BlobInfo
}

// Backend is an in-memory implementation of the simpleimage.BlobStore interface
type Backend struct {
	mu       sync.RWMutex
	objects  map[string]*object
	resolver simpleimage.URLResolver
}

// Option configures the in-memory backend
type Option func(*Backend)

// WithURLResolver sets how keys become URLs. The default produces unsigned /blobs/{key} paths.
func WithURLResolver(resolver simpleimage.URLResolver) Option {
	return func(b *Backend) {
		b.resolver = resolver
	}
}

// New creates a new in-memory storage backend
func New(opts ...Option) *Backend {
	b := &Backend{
		objects: make(map[string]*object),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.resolver == nil {
		b.resolver = presigned.NewResolver(presigned.New(), "")
	}
	return b
}

// Store copies length bytes from data under key
func (b *Backend) Store(ctx context.Context, key, format string, data io.Reader, length int64) (string, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	if length >= 0 && int64(len(buf)) != length {
		return "", fmt.Errorf("expected %d bytes, got %d", length, len(buf))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = &object{
		data: buf,
		info: simpleimage.BlobInfo{
			Key:                key,
			Size:               int64(len(buf)),
			ContentType:        simpleimage.MimeType(format),
			ContentDisposition: simpleimage.ContentDisposition(key, format),
			UpdatedAt:          time.Now().UTC(),
		},
	}
	return key, nil
}

// Retrieve returns a reader over a copy of the blob
func (b *Backend) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, simpleimage.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), nil
}

// ResolveURL derives the URL of key through the configured resolver
func (b *Backend) ResolveURL(ctx context.Context, key string) (string, error) {
	return b.resolver.ResolveURL(ctx, key)
}

// Stat returns the metadata recorded at store time
func (b *Backend) Stat(ctx context.Context, key string) (*simpleimage.BlobInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, simpleimage.ErrBlobNotFound
	}
	info := obj.info
	return &info, nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return simpleimage.ErrBlobNotFound
	}
	delete(b.objects, key)
	return nil
}

// Len returns the number of stored blobs
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
