package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// WireStore implements ports.WireStore over any go-redis client: a plain
// *redis.Client for direct connections and the failover client for sentinel setups.
type WireStore struct {
	cli redis.UniversalClient
}

func NewWireStore(cli redis.UniversalClient) *WireStore {
	return &WireStore{cli: cli}
}

// Client exposes the underlying go-redis client.
func (s *WireStore) Client() redis.UniversalClient {
	return s.cli
}

func (s *WireStore) Get(ctx context.Context, key string) (string, bool, error) {
	out := s.cli.Get(ctx, key)
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return "", false, nil
		}
		return "", false, out.Err()
	}
	return out.Val(), true, nil
}

func (s *WireStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.cli.Set(ctx, key, value, ttl).Err()
}

func (s *WireStore) Delete(ctx context.Context, key string) (bool, error) {
	out := s.cli.Del(ctx, key)
	if out.Err() != nil {
		return false, out.Err()
	}
	return out.Val() > 0, nil
}

func (s *WireStore) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := s.cli.MGet(ctx, keys...)
	if out.Err() != nil {
		return nil, out.Err()
	}
	vals := make([]*string, len(keys))
	for i, v := range out.Val() {
		if str, ok := v.(string); ok {
			vals[i] = &str
		}
	}
	return vals, nil
}

func (s *WireStore) MSet(ctx context.Context, pairs map[string]string) error {
	if len(pairs) == 0 {
		return nil
	}
	args := make([]any, 0, 2*len(pairs))
	for k, v := range pairs {
		args = append(args, k, v)
	}
	return s.cli.MSet(ctx, args...).Err()
}

func (s *WireStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	out := s.cli.HGetAll(ctx, key)
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return map[string]string{}, nil
		}
		return nil, out.Err()
	}
	return out.Val(), nil
}

func (s *WireStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	av := make(map[string]any, len(fields))
	for f, v := range fields {
		av[f] = v
	}
	return s.cli.HSet(ctx, key, av).Err()
}

func (s *WireStore) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	return s.cli.HDel(ctx, key, fields...).Result()
}

func (s *WireStore) HLen(ctx context.Context, key string) (int64, error) {
	return s.cli.HLen(ctx, key).Result()
}

func (s *WireStore) Close() error {
	return s.cli.Close()
}
