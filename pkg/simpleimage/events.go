package simpleimage

import (
	"context"
	"log/slog"
	"time"
)

// NoopEventSink discards every event.
type NoopEventSink struct{}

func (NoopEventSink) ImageUploaded(ctx context.Context, img *Image) error { return nil }
func (NoopEventSink) FormatResolved(ctx context.Context, imageID, format string, cached bool) error {
	return nil
}
func (NoopEventSink) ImageConverted(ctx context.Context, imageID, format, key string, took time.Duration) error {
	return nil
}
func (NoopEventSink) ConversionFailed(ctx context.Context, imageID, format string, err error) error {
	return nil
}

// LogEventSink writes events to a slog logger.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink returns a sink logging through logger, or slog.Default when nil.
func NewLogEventSink(logger *slog.Logger) *LogEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger}
}

func (s *LogEventSink) ImageUploaded(ctx context.Context, img *Image) error {
	s.logger.InfoContext(ctx, "image uploaded", "image_id", img.ID, "name", img.Name, "format", img.OriginalFormat)
	return nil
}

func (s *LogEventSink) FormatResolved(ctx context.Context, imageID, format string, cached bool) error {
	s.logger.DebugContext(ctx, "format resolved", "image_id", imageID, "format", format, "cached", cached)
	return nil
}

func (s *LogEventSink) ImageConverted(ctx context.Context, imageID, format, key string, took time.Duration) error {
	s.logger.InfoContext(ctx, "image converted", "image_id", imageID, "format", format, "key", key, "took", took)
	return nil
}

func (s *LogEventSink) ConversionFailed(ctx context.Context, imageID, format string, err error) error {
	s.logger.WarnContext(ctx, "conversion failed", "image_id", imageID, "format", format, "error", err)
	return nil
}

// MultiEventSink fans events out to several sinks. The first error is returned
// after every sink has been called.
type MultiEventSink []EventSink

func (m MultiEventSink) each(fn func(EventSink) error) error {
	var first error
	for _, sink := range m {
		if err := fn(sink); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiEventSink) ImageUploaded(ctx context.Context, img *Image) error {
	return m.each(func(s EventSink) error { return s.ImageUploaded(ctx, img) })
}

func (m MultiEventSink) FormatResolved(ctx context.Context, imageID, format string, cached bool) error {
	return m.each(func(s EventSink) error { return s.FormatResolved(ctx, imageID, format, cached) })
}

func (m MultiEventSink) ImageConverted(ctx context.Context, imageID, format, key string, took time.Duration) error {
	return m.each(func(s EventSink) error { return s.ImageConverted(ctx, imageID, format, key, took) })
}

func (m MultiEventSink) ConversionFailed(ctx context.Context, imageID, format string, err error) error {
	return m.each(func(s EventSink) error { return s.ConversionFailed(ctx, imageID, format, err) })
}
