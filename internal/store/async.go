package store

import (
	"context"
	"kvguard/internal/ports"
	"kvguard/internal/retry"
	"time"

	log "github.com/sirupsen/logrus"
)

// Outcome is what an asynchronous operation delivers. OK and Err carry the
// same meaning as the bool and error of the blocking call.
type Outcome[T any] struct {
	Value T
	OK    bool
	Err   error
}

// executeAsync is execute on the retry executor's own goroutine. The channel
// yields exactly one Outcome and is then closed.
func executeAsync[T any](ctx context.Context, c *Client, op, query string, fn func(ctx context.Context, w ports.WireStore) (T, error)) <-chan Outcome[T] {
	out := make(chan Outcome[T], 1)
	go func() {
		defer close(out)
		var (
			res   retry.Result[T]
			fatal error
		)
		c.recorder.Observe(ctx, op, query, func() {
			res = <-retry.ExecuteAsync(ctx, c.policy(ctx), op, withConn(c, fn, &fatal), query)
		})
		v, ok, err := settle(op, query, res.Value, res.Status, fatal)
		out <- Outcome[T]{Value: v, OK: ok, Err: err}
	}()
	return out
}

func failed[T any](err error) <-chan Outcome[T] {
	out := make(chan Outcome[T], 1)
	out <- Outcome[T]{Err: err}
	close(out)
	return out
}

// SetValueAsync is SetValue without blocking the caller. OK reports whether
// the write landed.
func SetValueAsync[T any](ctx context.Context, c *Client, key string, v T, ttl time.Duration) <-chan Outcome[struct{}] {
	if err := requireKey(key); err != nil {
		return failed[struct{}](err)
	}
	s, err := c.codec.encode(v)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("cannot serialize value")
		return failed[struct{}](nil)
	}
	return executeAsync(ctx, c, "set", key, func(ctx context.Context, w ports.WireStore) (struct{}, error) {
		return struct{}{}, w.Set(ctx, key, s, ttl)
	})
}

// GetAsync is Get without blocking the caller. OK is false when the key does
// not exist or every attempt failed.
func GetAsync[T any](ctx context.Context, c *Client, key string) <-chan Outcome[T] {
	if err := requireKey(key); err != nil {
		return failed[T](err)
	}
	type hit struct {
		value string
		found bool
	}
	in := executeAsync(ctx, c, "get", key, func(ctx context.Context, w ports.WireStore) (hit, error) {
		v, found, err := w.Get(ctx, key)
		return hit{value: v, found: found}, err
	})
	out := make(chan Outcome[T], 1)
	go func() {
		defer close(out)
		h := <-in
		if h.Err != nil || !h.OK || !h.Value.found {
			out <- Outcome[T]{Err: h.Err}
			return
		}
		v, decErr := decode[T](c.codec, h.Value.value)
		if decErr != nil {
			log.WithError(decErr).WithField("key", key).Warn("stored value does not decode")
		}
		out <- Outcome[T]{Value: v, OK: true}
	}()
	return out
}
