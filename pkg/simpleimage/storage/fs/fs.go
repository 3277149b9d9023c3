package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/simple-image/pkg/simpleimage"
	"github.com/tendant/simple-image/pkg/simpleimage/presigned"
)

// Backend is a filesystem implementation of the simpleimage.BlobStore interface
type Backend struct {
	baseDir  string
	resolver simpleimage.URLResolver
}

// metaSuffix names the sidecar holding a blob's format tag
const metaSuffix = ".meta.json"

// blobMeta is stored next to each blob so Stat does not depend on sniffing
type blobMeta struct {
	Key         string    `json:"key"`
	Format      string    `json:"format"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Config options for the filesystem backend
type Config struct {
	BaseDir  string                  // Base directory for storing files
	Resolver simpleimage.URLResolver // Optional; defaults to unsigned /blobs/{key} paths
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	resolver := config.Resolver
	if resolver == nil {
		resolver = presigned.NewResolver(presigned.New(), "")
	}

	return &Backend{
		baseDir:  filepath.Clean(config.BaseDir),
		resolver: resolver,
	}, nil
}

// Store writes the blob to a temporary file and renames it into place
func (b *Backend) Store(ctx context.Context, key, format string, data io.Reader, length int64) (string, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if length >= 0 && n != length {
		return "", fmt.Errorf("expected %d bytes, got %d", length, n)
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	format = simpleimage.NormalizeFormat(format)
	m := blobMeta{
		Key:         key,
		Format:      format,
		ContentType: simpleimage.MimeType(format),
		Size:        n,
		CreatedAt:   time.Now().UTC(),
	}
	if err := writeMeta(filePath+metaSuffix, m); err != nil {
		os.Remove(filePath)
		return "", err
	}
	return key, nil
}

func writeMeta(path string, m blobMeta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".meta-*")
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move metadata into place: %w", err)
	}
	return nil
}

func readMeta(path string) (*blobMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m blobMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &m, nil
}

// Retrieve opens the file stored under key
func (b *Backend) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, simpleimage.ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// ResolveURL derives the URL of key through the configured resolver
func (b *Backend) ResolveURL(ctx context.Context, key string) (string, error) {
	return b.resolver.ResolveURL(ctx, key)
}

// Stat describes the file stored under key from its metadata sidecar.
// Blobs without a sidecar fall back to a sniffed content type.
func (b *Backend) Stat(ctx context.Context, key string) (*simpleimage.BlobInfo, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, simpleimage.ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	var format, contentType string
	if m, err := readMeta(filePath + metaSuffix); err == nil && m.Format != "" {
		format, contentType = m.Format, m.ContentType
	} else {
		contentType = sniffContentType(filePath)
		if strings.HasPrefix(contentType, "image/") {
			format = strings.TrimPrefix(contentType, "image/")
		}
	}

	return &simpleimage.BlobInfo{
		Key:                key,
		Size:               info.Size(),
		ContentType:        contentType,
		ContentDisposition: simpleimage.ContentDisposition(key, format),
		UpdatedAt:          info.ModTime(),
	}, nil
}

func sniffContentType(filePath string) string {
	file, err := os.Open(filePath)
	if err != nil {
		return "application/octet-stream"
	}
	defer file.Close()
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil {
		return "application/octet-stream"
	}
	return http.DetectContentType(buffer[:n])
}

// Delete deletes content from the filesystem
func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath, err := b.pathFor(key)
	if err != nil {
		return err
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return simpleimage.ErrBlobNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(filePath + metaSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// pathFor maps key into the base directory, rejecting keys that escape it
func (b *Backend) pathFor(key string) (string, error) {
	if key == "" {
		return "", errors.New("key is required")
	}
	if strings.HasSuffix(key, metaSuffix) {
		return "", fmt.Errorf("key %q uses the reserved %s suffix", key, metaSuffix)
	}
	p := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if p != b.baseDir && !strings.HasPrefix(p, b.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes base directory", key)
	}
	return p, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
