package store

import (
	"context"
	"kvguard/internal/retry"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	probePrefix = "_kvguard_probe_"
	probeTTL    = 10 * time.Second
)

// IsConnected writes a unique key, reads it back and deletes it. It makes a
// single attempt so it reports the state of the connection right now.
func (c *Client) IsConnected(ctx context.Context) bool {
	w, err := c.conn.Store(ctx)
	if err != nil {
		log.WithError(err).Warn("probe: no store connection")
		return false
	}
	key := probePrefix + uuid.NewString()
	want := uuid.NewString()

	var (
		got   string
		found bool
	)
	c.recorder.Observe(ctx, "probe", key, func() {
		if err = w.Set(ctx, key, want, probeTTL); err != nil {
			return
		}
		got, found, err = w.Get(ctx, key)
		_, _ = w.Delete(ctx, key)
	})
	if err != nil {
		kind := retry.Classify(err)
		c.recorder.Count(ctx, kind.CounterName(), 1)
		log.WithError(err).WithField("kind", kind.String()).Warn("probe failed")
		return false
	}
	return found && got == want
}
