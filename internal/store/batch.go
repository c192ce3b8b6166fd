package store

import (
	"context"
	"fmt"
	"kvguard/internal/ports"
	"kvguard/internal/types"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// SetMany writes every non-nil pair. Without a ttl all pairs go out in one
// atomic MSET. With a ttl each key is written on its own, in input order, and
// the whole sequence is timed as one operation. A pair with an empty key
// fails the call with types.ErrNullArgument before anything is written.
func SetMany[T any](ctx context.Context, c *Client, pairs []*types.Pair[T], ttl time.Duration) (bool, error) {
	keys := make([]string, 0, len(pairs))
	values := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p == nil {
			continue
		}
		if err := requireKey(p.Key); err != nil {
			return false, err
		}
		s, err := c.codec.encode(p.Value)
		if err != nil {
			log.WithError(err).WithField("key", p.Key).Error("cannot serialize value")
			return false, nil
		}
		keys = append(keys, p.Key)
		values = append(values, s)
	}
	if len(keys) == 0 {
		return true, nil
	}
	query := strings.Join(keys, ",")

	if ttl <= 0 {
		m := make(map[string]string, len(keys))
		for i, k := range keys {
			m[k] = values[i]
		}
		_, ok, err := execute(ctx, c, "mset", query, func(ctx context.Context, w ports.WireStore) (struct{}, error) {
			return struct{}{}, w.MSet(ctx, m)
		})
		return ok, err
	}

	_, ok, err := execute(ctx, c, "setex_many", query, func(ctx context.Context, w ports.WireStore) (struct{}, error) {
		var errs *multierror.Error
		for i, k := range keys {
			if err := w.Set(ctx, k, values[i], ttl); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("set %s: %w", k, err))
			}
		}
		return struct{}{}, errs.ErrorOrNil()
	})
	return ok, err
}

// GetMany reads the given keys in one MGET. Empty keys are skipped; the result
// holds one element per queried key, in order, with T's zero value for
// missing or undecodable entries. It returns nil when every attempt failed.
func GetMany[T any](ctx context.Context, c *Client, keys []string) ([]T, error) {
	queried := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			queried = append(queried, k)
		}
	}
	if len(queried) == 0 {
		return []T{}, nil
	}
	raw, ok, err := execute(ctx, c, "mget", strings.Join(queried, ","), func(ctx context.Context, w ports.WireStore) ([]*string, error) {
		return w.MGet(ctx, queried...)
	})
	if err != nil || !ok {
		return nil, err
	}
	out := make([]T, len(queried))
	for i, s := range raw {
		if i >= len(out) || s == nil {
			continue
		}
		v, decErr := decode[T](c.codec, *s)
		if decErr != nil {
			log.WithError(decErr).WithField("key", queried[i]).Warn("stored value does not decode")
		}
		out[i] = v
	}
	return out, nil
}
