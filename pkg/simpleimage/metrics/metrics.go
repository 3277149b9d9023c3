// Package metrics exports repository events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

const namespace = "simpleimage"

// EventSink implements simpleimage.EventSink with Prometheus collectors
type EventSink struct {
	uploads            prometheus.Counter
	resolved           *prometheus.CounterVec
	conversions        *prometheus.CounterVec
	conversionFailures *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
}

// NewEventSink registers the repository collectors with reg
func NewEventSink(reg prometheus.Registerer) (*EventSink, error) {
	s := &EventSink{
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Images uploaded.",
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolved_total",
			Help:      "Representations resolved, by format and cache result.",
		}, []string{"format", "cache"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Representations converted and published.",
		}, []string{"format"}),
		conversionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversion_failures_total",
			Help:      "Failed convert-and-cache runs, by format and error kind.",
		}, []string{"format", "kind"}),
		conversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of successful convert-and-cache runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"format"}),
	}

	for _, c := range []prometheus.Collector{s.uploads, s.resolved, s.conversions, s.conversionFailures, s.conversionDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *EventSink) ImageUploaded(ctx context.Context, img *simpleimage.Image) error {
	s.uploads.Inc()
	return nil
}

func (s *EventSink) FormatResolved(ctx context.Context, imageID, format string, cached bool) error {
	cache := "miss"
	if cached {
		cache = "hit"
	}
	s.resolved.WithLabelValues(format, cache).Inc()
	return nil
}

func (s *EventSink) ImageConverted(ctx context.Context, imageID, format, key string, took time.Duration) error {
	s.conversions.WithLabelValues(format).Inc()
	s.conversionDuration.WithLabelValues(format).Observe(took.Seconds())
	return nil
}

func (s *EventSink) ConversionFailed(ctx context.Context, imageID, format string, err error) error {
	s.conversionFailures.WithLabelValues(format, string(simpleimage.KindOf(err))).Inc()
	return nil
}

// Handler serves the metrics gathered by g in the Prometheus exposition format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
