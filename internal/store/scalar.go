package store

import (
	"context"
	"kvguard/internal/ports"
	"time"

	log "github.com/sirupsen/logrus"
)

// Set writes value under key. ttl 0 means no expiry. An empty value is
// replaced by NilMarker.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return SetValue(ctx, c, key, value, ttl)
}

// SetValue serializes v and writes it under key.
func SetValue[T any](ctx context.Context, c *Client, key string, v T, ttl time.Duration) (bool, error) {
	if err := requireKey(key); err != nil {
		return false, err
	}
	s, err := c.codec.encode(v)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("cannot serialize value")
		return false, nil
	}
	_, ok, err := execute(ctx, c, "set", key, func(ctx context.Context, w ports.WireStore) (struct{}, error) {
		return struct{}{}, w.Set(ctx, key, s, ttl)
	})
	return ok, err
}

// Get reads and decodes key. found is false when the key does not exist or
// every attempt failed; a value that does not decode into T yields T's zero
// value with found true.
func Get[T any](ctx context.Context, c *Client, key string) (T, bool, error) {
	var zero T
	if err := requireKey(key); err != nil {
		return zero, false, err
	}
	type hit struct {
		value string
		found bool
	}
	h, ok, err := execute(ctx, c, "get", key, func(ctx context.Context, w ports.WireStore) (hit, error) {
		v, found, err := w.Get(ctx, key)
		return hit{value: v, found: found}, err
	})
	if err != nil || !ok || !h.found {
		return zero, false, err
	}
	v, decErr := decode[T](c.codec, h.value)
	if decErr != nil {
		log.WithError(decErr).WithField("key", key).Warn("stored value does not decode")
	}
	return v, true, nil
}

// GetString reads key without decoding beyond decompression.
func (c *Client) GetString(ctx context.Context, key string) (string, bool, error) {
	return Get[string](ctx, c, key)
}

// Delete removes key. It returns false when nothing was deleted.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	if err := requireKey(key); err != nil {
		return false, err
	}
	deleted, ok, err := execute(ctx, c, "del", key, func(ctx context.Context, w ports.WireStore) (bool, error) {
		return w.Delete(ctx, key)
	})
	return ok && deleted, err
}
