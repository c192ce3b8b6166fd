package backends

import (
	"context"
	"kvguard/internal/backends/memory"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSourceFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvguard.yml")
	require.NoError(t, os.WriteFile(path, []byte("namespaces:\n  Redis:\n    EndPoint: 10.0.0.5\n"), 0o600))
	t.Setenv(ConfigBackendEnvKey, BackendFile)
	t.Setenv(ConfigFileKey, path)

	src, err := ConfigSourceFromEnv(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &memory.ConfigSource{}, src)

	e, err := src.GetConfig(context.Background(), "prod", "Redis", "EndPoint")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", e.Value)
}

func TestConfigSourceFromEnvMissingFile(t *testing.T) {
	t.Setenv(ConfigBackendEnvKey, "")
	t.Setenv(ConfigFileKey, filepath.Join(t.TempDir(), "absent.yml"))

	src, err := ConfigSourceFromEnv(context.Background())
	require.NoError(t, err)
	list, err := src.ListConfig(context.Background(), "prod", "Redis")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestParseBoolean(t *testing.T) {
	assert.True(t, parseBoolean("true"))
	assert.True(t, parseBoolean("1"))
	assert.False(t, parseBoolean("nope"))
}
