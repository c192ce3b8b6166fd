package types

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultEnvironment is used when a cache is built without an explicit environment.
	DefaultEnvironment = "prod"

	keySeparator = "."
)

// ConfigEntry is a single configuration value identified by (Environment, Namespace, Name).
// CacheDuration overrides the cache TTL when non-zero.
type ConfigEntry struct {
	Environment   string        `json:"environment" yaml:"environment" dynamodbav:"environment"`
	Namespace     string        `json:"namespace" yaml:"namespace" dynamodbav:"namespace"`
	Name          string        `json:"name" yaml:"name" dynamodbav:"name"`
	Value         string        `json:"value" yaml:"value" dynamodbav:"value"`
	CacheDuration time.Duration `json:"cache_duration,omitempty" yaml:"cache_duration,omitempty" dynamodbav:"cache_duration_ns"`
}

// Key returns the composite cache key "environment.namespace.name".
func (e ConfigEntry) Key() string {
	return ConfigKey(e.Environment, e.Namespace, e.Name)
}

func (e ConfigEntry) Validate() error {
	if e.Environment == "" {
		return fmt.Errorf("%w: environment is required", ErrInvalidEntry)
	}
	if e.Namespace == "" {
		return fmt.Errorf("%w: namespace is required", ErrInvalidEntry)
	}
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEntry)
	}
	if e.CacheDuration < 0 {
		return fmt.Errorf("%w: cache_duration must be non-negative", ErrInvalidEntry)
	}
	return nil
}

// ConfigKey builds the composite key for an entry.
func ConfigKey(environment, namespace, name string) string {
	return strings.Join([]string{environment, namespace, name}, keySeparator)
}
