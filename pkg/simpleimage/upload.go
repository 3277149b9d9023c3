package simpleimage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-image/pkg/simpleimage/codec"
	"github.com/tendant/simple-image/pkg/simpleimage/objectkey"
)

// ValidateUpload checks one upload and returns its format. Problems are
// reported as a *ValidationError, an unsupported extension as
// *UnsupportedFormatError.
func ValidateUpload(req UploadRequest) (string, error) {
	format := FormatFromFileName(req.FileName)
	if req.FileName == "" {
		return "", &ValidationError{Problems: []string{"file name is required"}}
	}
	if !IsSupportedFormat(format) {
		return "", &UnsupportedFormatError{Format: format}
	}
	if len(req.Data) == 0 {
		return "", &ValidationError{Problems: []string{fmt.Sprintf("%s: file is empty", req.FileName)}}
	}
	if _, err := codec.Validate(req.Data); err != nil {
		return "", &ValidationError{Problems: []string{fmt.Sprintf("%s: not a valid image", req.FileName)}}
	}
	return format, nil
}

func (s *service) Upload(ctx context.Context, req UploadRequest) (string, error) {
	format, err := ValidateUpload(req)
	if err != nil {
		return "", err
	}
	return s.storeOriginal(ctx, req, format)
}

func (s *service) BulkUpload(ctx context.Context, reqs []UploadRequest) ([]string, error) {
	if len(reqs) == 0 {
		return nil, &ValidationError{Problems: []string{"at least one file is required"}}
	}

	formats := make([]string, len(reqs))
	var problems []string
	for i, req := range reqs {
		format, err := ValidateUpload(req)
		if err != nil {
			problems = append(problems, describeProblem(req, err)...)
			continue
		}
		formats[i] = format
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	ids := make([]string, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			id, err := s.storeOriginal(gctx, req, formats[i])
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// storeOriginal reserves a key, stores the bytes and only then creates the
// catalog record, so a record never points at a blob that was not stored.
func (s *service) storeOriginal(ctx context.Context, req UploadRequest, format string) (string, error) {
	now := time.Now().UTC()
	img := &Image{
		ID:             uuid.NewString(),
		Name:           req.FileName,
		OriginalFormat: format,
		FormatsMapping: make(map[string]string, 1),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	key := s.keys.GenerateKey(objectkey.KeyMetadata{ImageID: img.ID, Format: format, FileName: req.FileName, Original: true})
	if _, err := s.blobStore.Store(ctx, key, format, bytes.NewReader(req.Data), int64(len(req.Data))); err != nil {
		return "", &StorageError{Backend: s.blobStoreName, Key: key, Op: "store", Err: err}
	}
	img.FormatsMapping[format] = key

	id, err := s.catalog.Create(ctx, img)
	if err != nil {
		s.discardBlob(ctx, key)
		return "", &StorageError{Backend: "catalog", Key: img.ID, Op: "create", Err: err}
	}

	s.logger.Info("Image uploaded", "image_id", id, "name", req.FileName, "format", format, "key", key)
	_ = s.eventSink.ImageUploaded(ctx, img)
	return id, nil
}

func describeProblem(req UploadRequest, err error) []string {
	switch e := err.(type) {
	case *ValidationError:
		return e.Problems
	case *UnsupportedFormatError:
		return []string{fmt.Sprintf("%s: %s", req.FileName, e.Error())}
	default:
		return []string{fmt.Sprintf("%s: %v", req.FileName, err)}
	}
}
