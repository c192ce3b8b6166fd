package memory

import (
	"context"
	"errors"
	"fmt"
	"kvguard/internal/types"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"
)

var ErrClosed = errors.New("memory: store closed")

// ConfigSource is a map-backed ports.ConfigSource. Gets and Puts are counted so
// tests can assert how often the cache reached the source.
type ConfigSource struct {
	mu      sync.RWMutex
	entries map[string]types.ConfigEntry
	gets    int
	failErr error
}

func NewConfigSource(entries ...types.ConfigEntry) *ConfigSource {
	s := &ConfigSource{entries: make(map[string]types.ConfigEntry, len(entries))}
	for _, e := range entries {
		s.entries[e.Key()] = e
	}
	return s
}

func (s *ConfigSource) GetConfig(ctx context.Context, environment, namespace, name string) (types.ConfigEntry, error) {
	s.mu.Lock()
	s.gets++
	failErr := s.failErr
	e, ok := s.entries[types.ConfigKey(environment, namespace, name)]
	s.mu.Unlock()
	if failErr != nil {
		return types.ConfigEntry{}, failErr
	}
	if !ok {
		return types.ConfigEntry{}, types.ErrNotFound
	}
	return e, nil
}

func (s *ConfigSource) PutConfig(ctx context.Context, entry types.ConfigEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.entries[entry.Key()] = entry
	return nil
}

func (s *ConfigSource) ListConfig(ctx context.Context, environment, namespace string) ([]types.ConfigEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.ConfigEntry
	for _, e := range s.entries {
		if e.Environment == environment && e.Namespace == namespace {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Gets returns the number of GetConfig calls served so far.
func (s *ConfigSource) Gets() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gets
}

// FailWith makes every subsequent call return err; nil restores normal operation.
func (s *ConfigSource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// seedFile is the YAML layout accepted by LoadYAML:
//
//	environment: prod
//	namespaces:
//	  Redis:
//	    EndPoint: 10.0.0.5
//	    Port: "6379"
type seedFile struct {
	Environment string                       `yaml:"environment"`
	Namespaces  map[string]map[string]string `yaml:"namespaces"`
	Entries     []types.ConfigEntry          `yaml:"entries"`
}

// ParseYAML decodes a seed document into entries. Entries without an
// environment inherit the document's environment (or types.DefaultEnvironment).
func ParseYAML(data []byte) ([]types.ConfigEntry, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	env := f.Environment
	if env == "" {
		env = types.DefaultEnvironment
	}
	var out []types.ConfigEntry
	for ns, values := range f.Namespaces {
		for name, v := range values {
			out = append(out, types.ConfigEntry{Environment: env, Namespace: ns, Name: name, Value: v})
		}
	}
	for _, e := range f.Entries {
		if e.Environment == "" {
			e.Environment = env
		}
		out = append(out, e)
	}
	for _, e := range out {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// LoadYAML reads a seed file from disk, see ParseYAML.
func LoadYAML(path string) ([]types.ConfigEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}
