package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestOTelSinkReusesInstruments(t *testing.T) {
	s := NewOTelSink(noop.NewMeterProvider().Meter("test"))
	ctx := context.Background()

	assert.NoError(t, s.Count(ctx, "kvguard.redis.failure.other", 1))
	assert.NoError(t, s.Count(ctx, "kvguard.redis.failure.other", 2))
	assert.NoError(t, s.Timing(ctx, "kvguard.redis.get", 12*time.Millisecond))

	assert.Equal(t, 1, s.counters.Size())
	assert.Equal(t, 1, s.histograms.Size())
}

func TestOTelSinkGlobalMeter(t *testing.T) {
	s := NewOTelSink(nil)
	assert.NoError(t, s.Timing(context.Background(), "kvguard.redis.set", time.Second))
}

func TestNop(t *testing.T) {
	var n Nop
	assert.NoError(t, n.Count(context.Background(), "x", 1))
	assert.NoError(t, n.Timing(context.Background(), "x", time.Second))
}
