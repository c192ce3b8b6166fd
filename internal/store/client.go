// Package store is the typed client over the remote key/value server.
//
// Every operation acquires the shared connection from the topology resolver,
// runs through the retry executor and is timed by the latency recorder.
// Operational failures are absorbed: callers see false, absent or empty
// results. Only programmer errors (types.ErrNullArgument) and misconfiguration
// (types.ErrConfiguration) are returned as errors.
package store

import (
	"context"
	"errors"
	"kvguard/internal/instrument"
	"kvguard/internal/ports"
	"kvguard/internal/retry"
	"kvguard/internal/topology"
	"kvguard/internal/types"

	log "github.com/sirupsen/logrus"
)

// Connector hands out the shared connection. topology.Resolver implements it.
type Connector interface {
	Store(ctx context.Context) (ports.WireStore, error)
	Settings() topology.Settings
}

type Client struct {
	conn     Connector
	recorder *instrument.Recorder
	attempts int
	settings topology.Settings
	codec    codec
}

type Option func(*Client)

// WithRecorder sets the latency recorder. Without one, timings are dropped but
// slow queries are still logged.
func WithRecorder(r *instrument.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithAttempts overrides Redis.RetryCount.
func WithAttempts(n int) Option {
	return func(c *Client) {
		c.attempts = n
	}
}

func New(conn Connector, opts ...Option) *Client {
	settings := conn.Settings()
	c := &Client{
		conn:     conn,
		recorder: instrument.NewRecorder(nil),
		attempts: settings.RetryCount,
		settings: settings,
		codec:    newCodec(settings.CompressAbove),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) policy(ctx context.Context) retry.Policy {
	return retry.Policy{
		MaxAttempts: c.attempts,
		Sleep:       c.settings.RetrySleep,
		Retryable: func(err error) bool {
			return ctx.Err() == nil && !errors.Is(err, types.ErrConfiguration)
		},
		OnFailure: func(err error, op string, args []any) {
			if errors.Is(err, types.ErrConfiguration) {
				return
			}
			kind := retry.Classify(err)
			log.WithError(err).WithFields(log.Fields{
				"op":   op,
				"args": args,
				"kind": kind.String(),
			}).Warn("store operation failed")
			c.recorder.Count(ctx, kind.CounterName(), 1)
		},
	}
}

// execute runs fn with the shared connection under the retry policy and the
// latency recorder. ok is false when every attempt failed.
func execute[T any](ctx context.Context, c *Client, op, query string, fn func(ctx context.Context, w ports.WireStore) (T, error)) (v T, ok bool, err error) {
	var (
		status retry.Status
		fatal  error
	)
	c.recorder.Observe(ctx, op, query, func() {
		v, status = retry.Execute(ctx, c.policy(ctx), op, withConn(c, fn, &fatal), query)
	})
	return settle(op, query, v, status, fatal)
}

// withConn adapts fn to a single retry attempt. A configuration error from the
// connector is kept in fatal so it can be surfaced instead of absorbed.
func withConn[T any](c *Client, fn func(ctx context.Context, w ports.WireStore) (T, error), fatal *error) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var zero T
		w, err := c.conn.Store(ctx)
		if err != nil {
			if errors.Is(err, types.ErrConfiguration) {
				*fatal = err
			}
			return zero, err
		}
		return fn(ctx, w)
	}
}

func settle[T any](op, query string, v T, status retry.Status, fatal error) (T, bool, error) {
	if fatal != nil {
		return v, false, fatal
	}
	if status != retry.StatusSucceeded {
		log.WithFields(log.Fields{"op": op, "query": query}).Error("store operation gave up")
		return v, false, nil
	}
	return v, true, nil
}

func requireKey(key string) error {
	if key == "" {
		return types.NullArgument("key")
	}
	return nil
}
