package ports

import (
	"context"
	"kvguard/internal/types"
)

// ConfigSource is the source of truth for configuration values.
// Callers are expected to front it with configcache.Cache; implementations do not cache.
type ConfigSource interface {
	// GetConfig returns the entry for (environment, namespace, name).
	// MUST return types.ErrNotFound if the entry does not exist; any other error is an access failure.
	GetConfig(ctx context.Context, environment, namespace, name string) (types.ConfigEntry, error)

	// PutConfig creates or replaces an entry.
	PutConfig(ctx context.Context, entry types.ConfigEntry) error

	// ListConfig returns every entry of a namespace.
	ListConfig(ctx context.Context, environment, namespace string) ([]types.ConfigEntry, error)
}
