package ports

import (
	"context"
	"time"
)

// MetricsSink receives named counters and timings.
// Implementations SHOULD NOT panic; callers still guard every call.
type MetricsSink interface {
	Count(ctx context.Context, name string, n int64) error
	Timing(ctx context.Context, name string, elapsed time.Duration) error
}
