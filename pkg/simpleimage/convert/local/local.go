// Package local converts images in-process with the codec package.
package local

import (
	"context"
	"fmt"

	"github.com/tendant/simple-image/pkg/simpleimage"
	"github.com/tendant/simple-image/pkg/simpleimage/codec"
)

// Converter implements simpleimage.Converter without a remote service
type Converter struct{}

// New creates an in-process converter
func New() *Converter {
	return &Converter{}
}

// Convert decodes payload and encodes it in targetFormat. Every codec
// failure, including an unknown target, is a *simpleimage.ConversionError.
func (c *Converter) Convert(ctx context.Context, payload []byte, targetFormat string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format := simpleimage.NormalizeFormat(targetFormat)
	out, err := codec.Convert(payload, format)
	if err != nil {
		return nil, &simpleimage.ConversionError{Format: format, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conversion to %s abandoned: %w", format, err)
	}
	return out, nil
}
