// Package service wires the components together in their required order:
// configuration source, configuration cache, connection settings, resolver,
// store client.
package service

import (
	"context"
	"kvguard/internal/configcache"
	"kvguard/internal/instrument"
	"kvguard/internal/metrics"
	"kvguard/internal/ports"
	"kvguard/internal/store"
	"kvguard/internal/topology"
	"kvguard/internal/types"
	"time"

	log "github.com/sirupsen/logrus"
)

type Options struct {
	// Environment defaults to types.DefaultEnvironment.
	Environment string
	// Sink defaults to metrics.Nop.
	Sink ports.MetricsSink
	// Dialer defaults to topology.DialRedis.
	Dialer topology.Dialer
	// SlowThreshold defaults to instrument.DefaultSlowThreshold.
	SlowThreshold time.Duration
}

type Service struct {
	Config   *configcache.Cache
	Resolver *topology.Resolver
	Store    *store.Client
}

// New builds the service. Connection settings are read from source through
// the cache; the store connection itself is only opened on first use.
func New(ctx context.Context, source ports.ConfigSource, opts Options) (*Service, error) {
	if source == nil {
		return nil, types.NullArgument("source")
	}
	if opts.Environment == "" {
		opts.Environment = types.DefaultEnvironment
	}
	if opts.Sink == nil {
		opts.Sink = metrics.Nop{}
	}

	cache := configcache.New(source, configcache.WithEnvironment(opts.Environment))
	settings := topology.LoadSettings(ctx, cache)
	if err := settings.Validate(); err != nil {
		log.WithError(err).Warn("store settings are incomplete; store operations will fail")
	}
	log.Debugf("store settings for %s:%s", opts.Environment, settings)

	var resolverOpts []topology.Option
	if opts.Dialer != nil {
		resolverOpts = append(resolverOpts, topology.WithDialer(opts.Dialer))
	}
	resolver := topology.NewResolver(settings, resolverOpts...)

	var recorderOpts []instrument.Option
	if opts.SlowThreshold > 0 {
		recorderOpts = append(recorderOpts, instrument.WithSlowThreshold(opts.SlowThreshold))
	}
	client := store.New(resolver, store.WithRecorder(instrument.NewRecorder(opts.Sink, recorderOpts...)))

	return &Service{
		Config:   cache,
		Resolver: resolver,
		Store:    client,
	}, nil
}

// Close releases the store connection.
func (s *Service) Close() error {
	return s.Resolver.Close()
}
