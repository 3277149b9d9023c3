package simpleimage

import (
	"time"
)

// Image is the catalog record of one uploaded image.
//
// FormatsMapping is the cache of produced representations: format name to
// storage key. The entry for OriginalFormat exists from creation on, and an
// entry is never replaced once published.
type Image struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	OriginalFormat string            `json:"original_format"`
	FormatsMapping map[string]string `json:"formats_mapping"`
	Version        int64             `json:"version"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ResolveStorageKey returns the storage key of the representation in format.
// An empty format resolves to the original. The boolean is false when the
// representation has not been produced yet.
func (i *Image) ResolveStorageKey(format string) (string, bool) {
	format = NormalizeFormat(format)
	if format == "" {
		format = i.OriginalFormat
	}
	key, ok := i.FormatsMapping[format]
	return key, ok
}

// Supports reports whether the representation in format already exists.
// The original always exists, so an empty format is supported.
func (i *Image) Supports(format string) bool {
	_, ok := i.ResolveStorageKey(format)
	return ok
}

// Formats returns the formats currently present in the mapping.
func (i *Image) Formats() []string {
	formats := make([]string, 0, len(i.FormatsMapping))
	for f := range i.FormatsMapping {
		formats = append(formats, f)
	}
	return formats
}

// Clone returns a deep copy so callers can mutate the mapping safely.
func (i *Image) Clone() *Image {
	if i == nil {
		return nil
	}
	c := *i
	c.FormatsMapping = make(map[string]string, len(i.FormatsMapping))
	for k, v := range i.FormatsMapping {
		c.FormatsMapping[k] = v
	}
	return &c
}

// UploadRequest carries one uploaded file.
type UploadRequest struct {
	FileName string
	Data     []byte
}
