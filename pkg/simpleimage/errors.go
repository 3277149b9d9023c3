package simpleimage

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrImageNotFound indicates no catalog record exists for an id
	ErrImageNotFound = errors.New("image not found")

	// ErrBlobNotFound indicates no blob exists under a storage key
	ErrBlobNotFound = errors.New("blob not found")

	// ErrUnsupportedFormat indicates a format outside the supported set
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrBadRequest indicates malformed or invalid input
	ErrBadRequest = errors.New("bad request")

	// ErrConversionFailed indicates the converter could not produce the target format
	ErrConversionFailed = errors.New("conversion failed")

	// ErrStorageFailure indicates a catalog or blob store backend failure
	ErrStorageFailure = errors.New("storage failure")

	// ErrVersionConflict indicates a catalog update lost an optimistic concurrency race
	ErrVersionConflict = errors.New("image version conflict")
)

// ErrorKind classifies an error for the HTTP boundary.
type ErrorKind string

const (
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindNotFound          ErrorKind = "not_found"
	KindBadRequest        ErrorKind = "bad_request"
	KindConversionFailure ErrorKind = "conversion_failure"
	KindStorageFailure    ErrorKind = "storage_failure"
	KindUnexpected        ErrorKind = "unexpected"
)

// KindOf returns the kind of err. A nil error has no kind.
// Not-found takes precedence over storage failure so a StorageError wrapping
// ErrBlobNotFound still reports not_found.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, ErrImageNotFound), errors.Is(err, ErrBlobNotFound):
		return KindNotFound
	case errors.Is(err, ErrConversionFailed):
		return KindConversionFailure
	case errors.Is(err, ErrStorageFailure):
		return KindStorageFailure
	default:
		return KindUnexpected
	}
}

// NotFoundError lists every requested id without a catalog record.
type NotFoundError struct {
	IDs []string
}

func (e *NotFoundError) Error() string {
	if len(e.IDs) == 1 {
		return fmt.Sprintf("image with id %s is not found", e.IDs[0])
	}
	return fmt.Sprintf("following ids are not found: [%s]", strings.Join(e.IDs, ", "))
}

func (e *NotFoundError) Unwrap() error {
	return ErrImageNotFound
}

// UnsupportedFormatError names the rejected format.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("requested image format [%s] is not supported", e.Format)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// ValidationError collects every problem found in a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

// ImageError represents an error related to image operations
type ImageError struct {
	ImageID string
	Op      string
	Err     error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image operation %s failed for image %s: %v", e.Op, e.ImageID, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to catalog or blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorageFailure.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// ConversionError represents a failure to produce a target format
type ConversionError struct {
	Format string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion to %s failed: %v", e.Format, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Is makes every ConversionError match ErrConversionFailed.
func (e *ConversionError) Is(target error) bool {
	return target == ErrConversionFailed
}

// ErrorResponse is the uniform error body of every HTTP surface.
// ErrorCode always equals the HTTP status of the response.
type ErrorResponse struct {
	ErrorCode    int         `json:"errorCode"`
	ErrorMessage string      `json:"errorMessage"`
	Details      interface{} `json:"details,omitempty"`
}

func (e *ErrorResponse) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%d %s: %v", e.ErrorCode, e.ErrorMessage, e.Details)
	}
	return fmt.Sprintf("%d %s", e.ErrorCode, e.ErrorMessage)
}
