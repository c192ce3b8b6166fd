package ports

import (
	"context"
	"time"
)

// WireStore is the minimal command set the store client needs from the remote
// key/value server. It is implemented over go-redis and in memory.
// Implementations MUST be safe for concurrent use.
type WireStore interface {
	// Get returns (value, true, nil) on hit and ("", false, nil) when the key does not exist.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes a scalar; ttl == 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete returns false if the key did not exist.
	Delete(ctx context.Context, key string) (bool, error)

	// MGet returns one element per key, nil for missing keys.
	MGet(ctx context.Context, keys ...string) ([]*string, error)

	// MSet writes all pairs atomically, without expiry.
	MSet(ctx context.Context, pairs map[string]string) error

	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	HLen(ctx context.Context, key string) (int64, error)

	Close() error
}
