package redis

import (
	"context"
	"errors"
	"fmt"
	"kvguard/internal/types"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	configKeyNameTemplate = "_kvguard_cfg_%s.%s"
)

// storedEntry is the JSON document kept in each hash field. CacheSeconds is
// read only from documents written before cache_ms existed.
type storedEntry struct {
	Value        string `json:"value"`
	CacheMillis  int64  `json:"cache_ms,omitempty"`
	CacheSeconds int64  `json:"cache_seconds,omitempty"`
}

// ConfigSource keeps one hash per (environment, namespace); the field name is
// the entry name and the field value a JSON document.
type ConfigSource struct {
	cli *redis.Client
}

func NewConfigSource(cli *redis.Client) *ConfigSource {
	return &ConfigSource{cli: cli}
}

func (s *ConfigSource) GetConfig(ctx context.Context, environment, namespace, name string) (types.ConfigEntry, error) {
	out := s.cli.HGet(ctx, getConfigKey(environment, namespace), name)
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return types.ConfigEntry{}, types.ErrNotFound
		}
		return types.ConfigEntry{}, types.Err(types.ErrConfigSource, out.Err(), "")
	}
	return decodeEntry(environment, namespace, name, out.Val())
}

func (s *ConfigSource) PutConfig(ctx context.Context, entry types.ConfigEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	out, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	outS := s.cli.HSet(ctx, getConfigKey(entry.Environment, entry.Namespace), entry.Name, out)
	if outS.Err() != nil {
		return types.Err(types.ErrConfigSource, outS.Err(), "")
	}
	return nil
}

func (s *ConfigSource) ListConfig(ctx context.Context, environment, namespace string) ([]types.ConfigEntry, error) {
	out := s.cli.HGetAll(ctx, getConfigKey(environment, namespace))
	if out.Err() != nil {
		return nil, types.Err(types.ErrConfigSource, out.Err(), "")
	}
	entries := make([]types.ConfigEntry, 0, len(out.Val()))
	for name, raw := range out.Val() {
		e, err := decodeEntry(environment, namespace, name, raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func encodeEntry(entry types.ConfigEntry) (string, error) {
	out, err := json.Marshal(storedEntry{
		Value:       entry.Value,
		CacheMillis: entry.CacheDuration.Milliseconds(),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeEntry(environment, namespace, name, raw string) (types.ConfigEntry, error) {
	var se storedEntry
	if err := json.Unmarshal([]byte(raw), &se); err != nil {
		return types.ConfigEntry{}, types.Err(types.ErrConfigSource, err, "decode %s", name)
	}
	cacheFor := time.Duration(se.CacheMillis) * time.Millisecond
	if se.CacheMillis == 0 {
		cacheFor = time.Duration(se.CacheSeconds) * time.Second
	}
	return types.ConfigEntry{
		Environment:   environment,
		Namespace:     namespace,
		Name:          name,
		Value:         se.Value,
		CacheDuration: cacheFor,
	}, nil
}

func getConfigKey(environment, namespace string) string {
	return fmt.Sprintf(configKeyNameTemplate, environment, namespace)
}
