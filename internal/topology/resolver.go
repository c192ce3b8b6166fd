// Package topology turns configuration into exactly one shared connection to
// the remote store.
//
// The handle is created on first use and never rebuilt. Individual sockets are
// re-dialled by the go-redis pool, but a resolver whose settings are wrong
// stays wrong until the process restarts; use store.Client.IsConnected to probe.
package topology

import (
	"context"
	"crypto/tls"
	"kvguard/internal/ports"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	redisbackend "kvguard/internal/backends/redis"
)

// Dialer builds the connection handle for validated settings.
type Dialer func(ctx context.Context, s Settings) (ports.WireStore, error)

type handle struct {
	store ports.WireStore
}

type Resolver struct {
	settings Settings
	dial     Dialer

	mu      sync.Mutex
	current atomic.Pointer[handle]
}

type Option func(*Resolver)

// WithDialer replaces DialRedis.
func WithDialer(d Dialer) Option {
	return func(r *Resolver) {
		r.dial = d
	}
}

func NewResolver(settings Settings, opts ...Option) *Resolver {
	r := &Resolver{settings: settings, dial: DialRedis}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resolver) Settings() Settings {
	return r.settings
}

// Store returns the shared handle, establishing it on the first call.
// Concurrent first callers wait for a single establishment attempt.
// Misconfiguration is returned as types.ErrConfiguration and is not cached,
// so every later call reports it again.
func (r *Resolver) Store(ctx context.Context) (ports.WireStore, error) {
	if h := r.current.Load(); h != nil {
		return h.store, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h := r.current.Load(); h != nil {
		return h.store, nil
	}
	if err := r.settings.Validate(); err != nil {
		log.WithError(err).Error("cannot resolve store connection")
		return nil, err
	}
	store, err := r.dial(ctx, r.settings)
	if err != nil {
		log.WithError(err).WithField("mode", r.settings.Mode.String()).Error("failed to establish store connection")
		return nil, err
	}
	r.current.Store(&handle{store: store})
	log.WithFields(log.Fields{
		"mode":      r.settings.Mode.String(),
		"endpoints": r.settings.Endpoints(),
		"proxy":     r.settings.Proxy,
	}).Info("store connection established")
	return store, nil
}

// Close releases the handle if one was established.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.current.Swap(nil)
	if h == nil {
		return nil
	}
	return h.store.Close()
}

// DialRedis builds a go-redis client for the configured mode. go-redis connects
// lazily, so this does not touch the network. Client-side retries are disabled
// because the store client runs its own retry loop.
func DialRedis(ctx context.Context, s Settings) (ports.WireStore, error) {
	var tlsConfig *tls.Config
	if s.TLS {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if s.Mode == ModeSupervised {
		cli := redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    s.MasterName,
			SentinelAddrs: s.SentinelEndpoints,
			Username:      s.Username,
			Password:      s.Password,
			DB:            s.DB,
			DialTimeout:   s.ConnectTimeout,
			ReadTimeout:   s.SyncTimeout,
			WriteTimeout:  s.SyncTimeout,
			MaxRetries:    -1,
			TLSConfig:     tlsConfig,
		})
		return redisbackend.NewWireStore(cli), nil
	}

	opts := &redis.Options{
		Addr:         s.Endpoints()[0],
		Username:     s.Username,
		Password:     s.Password,
		DB:           s.DB,
		DialTimeout:  s.ConnectTimeout,
		ReadTimeout:  s.SyncTimeout,
		WriteTimeout: s.SyncTimeout,
		MaxRetries:   -1,
		TLSConfig:    tlsConfig,
	}
	if s.Proxy {
		// Proxies such as twemproxy reject HELLO, CLIENT SETNAME and SELECT.
		opts.Protocol = 2
		opts.DisableIdentity = true
	}
	return redisbackend.NewWireStore(redis.NewClient(opts)), nil
}
