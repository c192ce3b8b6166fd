// Package metrics provides MetricsSink implementations.
package metrics

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "kvguard"

// OTelSink records counters and timings through an OpenTelemetry meter.
// Instruments are created on first use and reused afterwards.
type OTelSink struct {
	meter      metric.Meter
	counters   *xsync.MapOf[string, metric.Int64Counter]
	histograms *xsync.MapOf[string, metric.Float64Histogram]
}

// NewOTelSink uses the global meter provider when meter is nil.
func NewOTelSink(meter metric.Meter) *OTelSink {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	return &OTelSink{
		meter:      meter,
		counters:   xsync.NewMapOf[string, metric.Int64Counter](),
		histograms: xsync.NewMapOf[string, metric.Float64Histogram](),
	}
}

func (s *OTelSink) Count(ctx context.Context, name string, n int64) error {
	var createErr error
	c, _ := s.counters.LoadOrCompute(name, func() metric.Int64Counter {
		c, err := s.meter.Int64Counter(name)
		if err != nil {
			createErr = err
		}
		return c
	})
	if createErr != nil {
		s.counters.Delete(name)
		return createErr
	}
	c.Add(ctx, n)
	return nil
}

func (s *OTelSink) Timing(ctx context.Context, name string, elapsed time.Duration) error {
	var createErr error
	h, _ := s.histograms.LoadOrCompute(name, func() metric.Float64Histogram {
		h, err := s.meter.Float64Histogram(name,
			metric.WithUnit("ms"),
			metric.WithDescription("Wall-clock duration of "+name),
		)
		if err != nil {
			createErr = err
		}
		return h
	})
	if createErr != nil {
		s.histograms.Delete(name)
		return createErr
	}
	h.Record(ctx, float64(elapsed)/float64(time.Millisecond))
	return nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Count(context.Context, string, int64) error          { return nil }
func (Nop) Timing(context.Context, string, time.Duration) error { return nil }
