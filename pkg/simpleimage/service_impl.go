package simpleimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tendant/simple-image/pkg/simpleimage/objectkey"
)

const (
	DefaultBulkConcurrency  = 8
	DefaultOperationTimeout = 2 * time.Minute

	// maxPublishAttempts bounds catalog update retries after version conflicts
	maxPublishAttempts = 3
)

// service implements the Service interface
type service struct {
	catalog          Catalog
	blobStore        BlobStore
	blobStoreName    string
	converter        Converter
	keys             objectkey.Generator
	eventSink        EventSink
	logger           *slog.Logger
	bulkConcurrency  int
	operationTimeout time.Duration
	flights          singleflight.Group
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithCatalog sets the catalog for the service
func WithCatalog(catalog Catalog) Option {
	return func(s *service) {
		s.catalog = catalog
	}
}

// WithBlobStore sets the blob storage backend; name is used in errors and logs
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.blobStoreName = name
		s.blobStore = store
	}
}

// WithConverter sets the converter for the service
func WithConverter(converter Converter) Option {
	return func(s *service) {
		s.converter = converter
	}
}

// WithKeyGenerator sets the storage key allocation strategy
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keys = gen
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithBulkConcurrency caps the concurrent per-id work of bulk operations
func WithBulkConcurrency(n int) Option {
	return func(s *service) {
		s.bulkConcurrency = n
	}
}

// WithOperationTimeout bounds one convert-and-cache pipeline run
func WithOperationTimeout(d time.Duration) Option {
	return func(s *service) {
		s.operationTimeout = d
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		bulkConcurrency:  DefaultBulkConcurrency,
		operationTimeout: DefaultOperationTimeout,
	}

	for _, option := range options {
		option(s)
	}

	if s.catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.converter == nil {
		return nil, fmt.Errorf("converter is required")
	}
	if s.keys == nil {
		s.keys = objectkey.NewFlatGenerator()
	}
	if s.eventSink == nil {
		s.eventSink = NoopEventSink{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.blobStoreName == "" {
		s.blobStoreName = "default"
	}
	if s.bulkConcurrency <= 0 {
		s.bulkConcurrency = DefaultBulkConcurrency
	}
	if s.operationTimeout <= 0 {
		s.operationTimeout = DefaultOperationTimeout
	}

	return s, nil
}

func (s *service) GetOriginal(ctx context.Context, id string) (string, error) {
	img, err := s.readImage(ctx, id)
	if err != nil {
		return "", err
	}

	key, _ := img.ResolveStorageKey("")
	return s.resolveURL(ctx, key)
}

func (s *service) GetInFormat(ctx context.Context, id, format string) (string, error) {
	format = NormalizeFormat(format)
	if !IsSupportedFormat(format) {
		return "", &UnsupportedFormatError{Format: format}
	}

	img, err := s.readImage(ctx, id)
	if err != nil {
		return "", err
	}

	img, err = s.ensureFormat(ctx, img, format)
	if err != nil {
		return "", err
	}

	key, _ := img.ResolveStorageKey(format)
	return s.resolveURL(ctx, key)
}

func (s *service) BulkResolve(ctx context.Context, ids []string, format string) (map[string]string, error) {
	format = NormalizeFormat(format)
	if format != "" && !IsSupportedFormat(format) {
		return nil, &UnsupportedFormatError{Format: format}
	}

	unique := dedupe(ids)
	images, err := s.readAll(ctx, unique)
	if err != nil {
		return nil, err
	}

	urls := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkConcurrency)
	for i, img := range images {
		g.Go(func() error {
			resolved, err := s.ensureFormat(gctx, img, format)
			if err != nil {
				return err
			}
			key, _ := resolved.ResolveStorageKey(format)
			url, err := s.resolveURL(gctx, key)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[string]string, len(images))
	for i, img := range images {
		result[img.ID] = urls[i]
	}
	return result, nil
}

// readImage reads one record, mapping a missing record to NotFoundError.
func (s *service) readImage(ctx context.Context, id string) (*Image, error) {
	img, err := s.catalog.Read(ctx, id)
	if err != nil {
		if errors.Is(err, ErrImageNotFound) {
			return nil, &NotFoundError{IDs: []string{id}}
		}
		return nil, &StorageError{Backend: "catalog", Key: id, Op: "read", Err: err}
	}
	return img, nil
}

// readAll reads every id concurrently and reports all missing ids at once.
func (s *service) readAll(ctx context.Context, ids []string) ([]*Image, error) {
	images := make([]*Image, len(ids))
	missing := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			img, err := s.catalog.Read(gctx, id)
			if errors.Is(err, ErrImageNotFound) {
				missing[i] = true
				return nil
			}
			if err != nil {
				return &StorageError{Backend: "catalog", Key: id, Op: "read", Err: err}
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var notFound []string
	for i, m := range missing {
		if m {
			notFound = append(notFound, ids[i])
		}
	}
	if len(notFound) > 0 {
		sort.Strings(notFound)
		return nil, &NotFoundError{IDs: notFound}
	}
	return images, nil
}

// ensureFormat returns a record that contains format, running the
// convert-and-cache pipeline on a miss. Concurrent misses for the same
// (id, format) share one run. The run is detached from ctx so it completes
// for the other waiters even when this caller goes away.
func (s *service) ensureFormat(ctx context.Context, img *Image, format string) (*Image, error) {
	if img.Supports(format) {
		_ = s.eventSink.FormatResolved(ctx, img.ID, format, true)
		return img, nil
	}

	ch := s.flights.DoChan(img.ID+"\x00"+format, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.operationTimeout)
		defer cancel()

		start := time.Now()
		converted, stored, err := s.convertAndCache(fctx, img.Clone(), format)
		if err != nil {
			s.logger.Error("Failed to convert image", "image_id", img.ID, "format", format, "error", err)
			_ = s.eventSink.ConversionFailed(fctx, img.ID, format, err)
			return nil, err
		}
		if stored {
			key, _ := converted.ResolveStorageKey(format)
			_ = s.eventSink.ImageConverted(fctx, img.ID, format, key, time.Since(start))
		}
		return converted, nil
	})

	select {
	case <-ctx.Done():
		return nil, &ConversionError{Format: format, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		_ = s.eventSink.FormatResolved(ctx, img.ID, format, false)
		return res.Val.(*Image).Clone(), nil
	}
}

// convertAndCache runs retrieve, convert, store and catalog update in order.
// The first failure short-circuits and keeps its kind. stored reports whether
// the published key is the blob written by this run.
func (s *service) convertAndCache(ctx context.Context, img *Image, format string) (_ *Image, stored bool, err error) {
	// A run that finished just before this flight started already published the format.
	fresh, err := s.readImage(ctx, img.ID)
	if err != nil {
		return nil, false, err
	}
	if fresh.Supports(format) {
		return fresh, false, nil
	}
	img = fresh

	original, err := s.retrieveOriginal(ctx, img)
	if err != nil {
		return nil, false, err
	}

	converted, err := s.converter.Convert(ctx, original, format)
	if err != nil {
		if errors.Is(err, ErrConversionFailed) {
			return nil, false, err
		}
		return nil, false, &ConversionError{Format: format, Err: err}
	}

	key := s.keys.GenerateKey(objectkey.KeyMetadata{ImageID: img.ID, Format: format, FileName: img.Name})
	if _, err := s.blobStore.Store(ctx, key, format, bytes.NewReader(converted), int64(len(converted))); err != nil {
		return nil, false, &StorageError{Backend: s.blobStoreName, Key: key, Op: "store", Err: err}
	}

	return s.publish(ctx, img, format, key)
}

func (s *service) retrieveOriginal(ctx context.Context, img *Image) ([]byte, error) {
	key, ok := img.ResolveStorageKey("")
	if !ok {
		return nil, &ImageError{ImageID: img.ID, Op: "retrieve", Err: fmt.Errorf("%w: no original mapping", ErrStorageFailure)}
	}

	rc, err := s.blobStore.Retrieve(ctx, key)
	if err != nil {
		return nil, &StorageError{Backend: s.blobStoreName, Key: key, Op: "retrieve", Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &StorageError{Backend: s.blobStoreName, Key: key, Op: "retrieve", Err: err}
	}
	return data, nil
}

// publish commits format -> key to the catalog. On a version conflict the
// record is re-read: a representation published by someone else wins and our
// blob is discarded, otherwise our key is merged into the fresh record.
// stored is false when another writer's key was adopted.
func (s *service) publish(ctx context.Context, img *Image, format, key string) (_ *Image, stored bool, err error) {
	for attempt := 1; ; attempt++ {
		img.FormatsMapping[format] = key
		err := s.catalog.Update(ctx, img)
		if err == nil {
			return img, true, nil
		}

		if !errors.Is(err, ErrVersionConflict) || attempt >= maxPublishAttempts {
			s.discardBlob(ctx, key)
			return nil, false, &StorageError{Backend: "catalog", Key: img.ID, Op: "update", Err: err}
		}

		s.logger.Warn("Catalog version conflict, retrying", "image_id", img.ID, "format", format, "attempt", attempt)

		fresh, err := s.readImage(ctx, img.ID)
		if err != nil {
			s.discardBlob(ctx, key)
			return nil, false, err
		}
		if published, ok := fresh.FormatsMapping[format]; ok {
			s.logger.Info("Adopting concurrently published key", "image_id", img.ID, "format", format, "key", published)
			s.discardBlob(ctx, key)
			return fresh, false, nil
		}
		img = fresh
	}
}

// discardBlob deletes a blob that will never be published. Failures only leave an orphan.
func (s *service) discardBlob(ctx context.Context, key string) {
	if err := s.blobStore.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to delete orphaned blob", "key", key, "error", err)
	}
}

func (s *service) resolveURL(ctx context.Context, key string) (string, error) {
	url, err := s.blobStore.ResolveURL(ctx, key)
	if err != nil {
		return "", &StorageError{Backend: s.blobStoreName, Key: key, Op: "resolve_url", Err: err}
	}
	return url, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
