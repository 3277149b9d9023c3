package simpleimage_test

import (
	"bytes"
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

// MockCatalog is a mock implementation of simpleimage.Catalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Create(ctx context.Context, img *simpleimage.Image) (string, error) {
	args := m.Called(ctx, img)
	return args.String(0), args.Error(1)
}

// Read returns a copy of the configured record so the service cannot mutate the fixture
func (m *MockCatalog) Read(ctx context.Context, id string) (*simpleimage.Image, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*simpleimage.Image).Clone(), args.Error(1)
}

func (m *MockCatalog) Update(ctx context.Context, img *simpleimage.Image) error {
	args := m.Called(ctx, img)
	return args.Error(0)
}

func (m *MockCatalog) Delete(ctx context.Context, img *simpleimage.Image) error {
	args := m.Called(ctx, img)
	return args.Error(0)
}

// MockBlobStore is a mock implementation of simpleimage.BlobStore
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Store(ctx context.Context, key, format string, data io.Reader, length int64) (string, error) {
	args := m.Called(ctx, key, format, data, length)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return io.NopCloser(bytes.NewReader(args.Get(0).([]byte))), args.Error(1)
}

func (m *MockBlobStore) ResolveURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockConverter is a mock implementation of simpleimage.Converter
type MockConverter struct {
	mock.Mock
}

func (m *MockConverter) Convert(ctx context.Context, payload []byte, targetFormat string) ([]byte, error) {
	args := m.Called(ctx, payload, targetFormat)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func urlFor(key string) string {
	return "https://blobs.example.com/" + key + "?signature=sig"
}
