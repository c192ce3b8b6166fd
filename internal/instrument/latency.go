// Package instrument times store operations, forwards the timings to a
// metrics sink and logs slow queries.
package instrument

import (
	"context"
	"fmt"
	"kvguard/internal/ports"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultSlowThreshold is the elapsed time above which an operation is logged as slow.
	DefaultSlowThreshold = 2 * time.Second

	metricPrefix = "kvguard.redis."
)

// Recorder wraps a MetricsSink so that emission can never fail the caller.
type Recorder struct {
	sink          ports.MetricsSink
	slowThreshold time.Duration
	now           func() time.Time
}

type Option func(*Recorder)

// WithSlowThreshold overrides DefaultSlowThreshold.
func WithSlowThreshold(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.slowThreshold = d
		}
	}
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder returns a Recorder. A nil sink records nothing but still logs slow queries.
func NewRecorder(sink ports.MetricsSink, opts ...Option) *Recorder {
	r := &Recorder{
		sink:          sink,
		slowThreshold: DefaultSlowThreshold,
		now:           time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// MetricName returns the timing name used for op.
func MetricName(op string) string {
	return metricPrefix + op
}

// Observe runs fn and records its wall-clock duration under MetricName(op).
// query describes the keys involved and only appears in the slow-query log.
func (r *Recorder) Observe(ctx context.Context, op, query string, fn func()) {
	start := r.now()
	defer func() {
		end := r.now()
		elapsed := end.Sub(start)
		r.Timing(ctx, MetricName(op), elapsed)
		if elapsed > r.slowThreshold {
			log.WithFields(log.Fields{
				"op":      op,
				"query":   query,
				"start":   start.Format(time.RFC3339Nano),
				"end":     end.Format(time.RFC3339Nano),
				"elapsed": elapsed.String(),
			}).Warn("slow redis query")
		}
	}()
	fn()
}

// Timing forwards a duration to the sink, swallowing errors and panics.
func (r *Recorder) Timing(ctx context.Context, name string, elapsed time.Duration) {
	if r == nil || r.sink == nil {
		return
	}
	r.guard(name, func() error {
		return r.sink.Timing(ctx, name, elapsed)
	})
}

// Count forwards a counter increment to the sink, swallowing errors and panics.
func (r *Recorder) Count(ctx context.Context, name string, n int64) {
	if r == nil || r.sink == nil {
		return
	}
	r.guard(name, func() error {
		return r.sink.Count(ctx, name, n)
	})
}

func (r *Recorder) guard(name string, emit func() error) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("metric", name).Errorf("metrics sink panicked: %v", p)
		}
	}()
	if err := emit(); err != nil {
		log.WithError(fmt.Errorf("emit %s: %w", name, err)).Error("failed to emit metric")
	}
}
