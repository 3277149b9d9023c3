package simpleimage

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Supported formats and their MIME types. The set matches what the codec can
// both decode and encode.
var supportedFormats = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// NormalizeFormat lower-cases a format name and strips a leading dot.
func NormalizeFormat(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}

// IsSupportedFormat reports whether format can be uploaded and requested.
func IsSupportedFormat(format string) bool {
	_, ok := supportedFormats[NormalizeFormat(format)]
	return ok
}

// SupportedFormats returns the supported format names in sorted order.
func SupportedFormats() []string {
	formats := make([]string, 0, len(supportedFormats))
	for f := range supportedFormats {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// FormatFromFileName derives the format from a file name's extension.
func FormatFromFileName(name string) string {
	return NormalizeFormat(path.Ext(name))
}

// MimeType returns the content type used when storing a representation.
func MimeType(format string) string {
	format = NormalizeFormat(format)
	if mt, ok := supportedFormats[format]; ok {
		return mt
	}
	return "image/" + format
}

// ContentDisposition returns the inline disposition stored with a representation.
func ContentDisposition(key, format string) string {
	name := path.Base(key)
	format = NormalizeFormat(format)
	if format != "" && NormalizeFormat(path.Ext(name)) != format {
		name += "." + format
	}
	return fmt.Sprintf("inline; filename=%q", name)
}
