// Package configcache is a cache-aside layer in front of a ports.ConfigSource.
//
// Every entry, including confirmed absences, is cached with an expiry computed
// by the TTL rule in ttl.go. Expired entries are evicted lazily on the next read.
// Updates made through UpdateConfig are visible to this process only; other
// processes pick them up when their own entries expire.
package configcache

import (
	"context"
	"errors"
	"kvguard/internal/ports"
	"kvguard/internal/types"
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// record is either a found entry or the not-found sentinel (found == false).
type record struct {
	entry   types.ConfigEntry
	found   bool
	expires time.Time
}

type Cache struct {
	source      ports.ConfigSource
	environment string
	blacklist   []*regexp.Regexp
	entries     *xsync.MapOf[string, record]
	group       singleflight.Group
	now         func() time.Time
	intn        func(n int) int
}

type Option func(*Cache)

// WithEnvironment sets the environment part of every composite key. Default "prod".
func WithEnvironment(env string) Option {
	return func(c *Cache) {
		if env != "" {
			c.environment = env
		}
	}
}

// WithBlacklist replaces the default blacklist. Keys matching any pattern are
// cached with a zero duration unless the entry carries its own.
func WithBlacklist(patterns ...*regexp.Regexp) Option {
	return func(c *Cache) {
		c.blacklist = patterns
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithRand replaces the jitter source; intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(c *Cache) {
		c.intn = intn
	}
}

func New(source ports.ConfigSource, opts ...Option) *Cache {
	c := &Cache{
		source:      source,
		environment: types.DefaultEnvironment,
		blacklist:   DefaultBlacklist(),
		entries:     xsync.NewMapOf[string, record](),
		now:         time.Now,
		intn:        rand.IntN,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) Environment() string {
	return c.environment
}

// GetValue returns the configured value, or "" when the entry does not exist
// or the source could not be reached.
func (c *Cache) GetValue(ctx context.Context, name, namespace string) string {
	e, err := c.Lookup(ctx, name, namespace)
	if err != nil {
		return ""
	}
	return e.Value
}

// GetValueOr is GetValue with a default for the empty result.
func (c *Cache) GetValueOr(ctx context.Context, name, namespace, def string) string {
	if v := c.GetValue(ctx, name, namespace); v != "" {
		return v
	}
	return def
}

func (c *Cache) GetInt(ctx context.Context, name, namespace string, def int) int {
	v := c.GetValue(ctx, name, namespace)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.WithField("key", types.ConfigKey(c.environment, namespace, name)).Warnf("not an integer: %q", v)
		return def
	}
	return i
}

func (c *Cache) GetBool(ctx context.Context, name, namespace string, def bool) bool {
	v := c.GetValue(ctx, name, namespace)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.WithField("key", types.ConfigKey(c.environment, namespace, name)).Warnf("not a boolean: %q", v)
		return def
	}
	return b
}

// GetMillis reads an integer number of milliseconds.
func (c *Cache) GetMillis(ctx context.Context, name, namespace string, def time.Duration) time.Duration {
	ms := c.GetInt(ctx, name, namespace, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// Lookup is the distinguishing form of GetValue: it returns types.ErrNotFound
// for a confirmed absence and an error wrapping types.ErrConfigSource when the
// source failed. Failures are not cached.
func (c *Cache) Lookup(ctx context.Context, name, namespace string) (types.ConfigEntry, error) {
	if name == "" {
		return types.ConfigEntry{}, types.NullArgument("name")
	}
	if namespace == "" {
		return types.ConfigEntry{}, types.NullArgument("namespace")
	}
	key := types.ConfigKey(c.environment, namespace, name)
	if r, ok := c.fresh(key); ok {
		return r.result()
	}

	// The fetch is shared by every caller of the key and outlives any one of them.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if r, ok := c.fresh(key); ok {
			return r, nil
		}
		return c.fetch(fetchCtx, namespace, name)
	})
	select {
	case <-ctx.Done():
		return types.ConfigEntry{}, types.Err(types.ErrConfigSource, ctx.Err(), "")
	case res := <-ch:
		if res.Err != nil {
			return types.ConfigEntry{}, res.Err
		}
		return res.Val.(record).result()
	}
}

// fresh returns the unexpired record for key. An expired record is evicted,
// but only if it is still the one stored, so a record refreshed concurrently
// survives.
func (c *Cache) fresh(key string) (record, bool) {
	now := c.now()
	if r, ok := c.entries.Load(key); !ok || now.Before(r.expires) {
		return r, ok
	}
	return c.entries.Compute(key, func(old record, loaded bool) (record, bool) {
		return old, !loaded || !now.Before(old.expires)
	})
}

func (c *Cache) fetch(ctx context.Context, namespace, name string) (record, error) {
	key := types.ConfigKey(c.environment, namespace, name)
	e, err := c.source.GetConfig(ctx, c.environment, namespace, name)
	switch {
	case errors.Is(err, types.ErrNotFound):
		r := c.store(types.ConfigEntry{Environment: c.environment, Namespace: namespace, Name: name}, false)
		return r, nil
	case err != nil:
		log.WithError(err).WithField("key", key).Error("failed to read config")
		if errors.Is(err, types.ErrConfigSource) {
			return record{}, err
		}
		return record{}, types.Err(types.ErrConfigSource, err, "")
	}
	return c.store(e, true), nil
}

// UpdateConfig writes the entry through to the source and refreshes the local cache.
// An empty Environment defaults to the cache's environment.
func (c *Cache) UpdateConfig(ctx context.Context, entry types.ConfigEntry) error {
	if entry.Environment == "" {
		entry.Environment = c.environment
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := c.source.PutConfig(ctx, entry); err != nil {
		return err
	}
	if entry.Environment == c.environment {
		c.store(entry, true)
	}
	return nil
}

// Expiry returns the absolute expiry of a cached key, if present.
func (c *Cache) Expiry(name, namespace string) (time.Time, bool) {
	r, ok := c.entries.Load(types.ConfigKey(c.environment, namespace, name))
	return r.expires, ok
}

func (c *Cache) store(e types.ConfigEntry, found bool) record {
	r := record{
		entry:   e,
		found:   found,
		expires: c.now().Add(c.cacheDuration(e.Key(), e.CacheDuration)),
	}
	c.entries.Store(e.Key(), r)
	return r
}

func (r record) result() (types.ConfigEntry, error) {
	if !r.found {
		return types.ConfigEntry{}, types.ErrNotFound
	}
	return r.entry, nil
}
