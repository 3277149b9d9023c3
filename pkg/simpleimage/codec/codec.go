// Package codec decodes and encodes the raster formats served by the image
// repository. Decoders for jpeg, png, gif, bmp and tiff are registered with
// the standard image package.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var (
	// ErrUnsupportedFormat indicates the codec cannot encode the requested format
	ErrUnsupportedFormat = errors.New("codec: unsupported format")

	// ErrUndecodable indicates the payload is not a decodable image
	ErrUndecodable = errors.New("codec: payload is not a decodable image")
)

// DefaultJPEGQuality is used when encoding jpg/jpeg.
const DefaultJPEGQuality = 90

// CanEncode reports whether format is an encodable target.
func CanEncode(format string) bool {
	switch normalize(format) {
	case "jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff":
		return true
	}
	return false
}

// Validate fully decodes data and returns the detected format name as
// reported by the image package. A valid header followed by corrupt pixel
// data is rejected.
func Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrUndecodable)
	}
	img, name, err := Decode(data)
	if err != nil {
		return "", err
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return "", fmt.Errorf("%w: empty dimensions", ErrUndecodable)
	}
	return name, nil
}

// Decode decodes data in any registered format.
func Decode(data []byte) (image.Image, string, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return img, name, nil
}

// Encode writes img to w in format.
func Encode(w io.Writer, img image.Image, format string) error {
	switch normalize(format) {
	case "jpg", "jpeg":
		return jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: DefaultJPEGQuality})
	case "png":
		return png.Encode(w, img)
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Convert decodes data and re-encodes it in format.
func Convert(data []byte, format string) ([]byte, error) {
	if !CanEncode(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// flatten draws img over a white background since jpeg has no alpha channel.
func flatten(img image.Image) image.Image {
	if _, ok := img.(*image.YCbCr); ok {
		return img
	}
	if _, ok := img.(*image.Gray); ok {
		return img
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(out, b, img, b.Min, draw.Over)
	return out
}

func normalize(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}
