package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile_MissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ARBOR_CONFIG", "")

	profile, err := LoadProfile("")
	require.NoError(t, err)

	assert.Equal(t, TransportMemory, profile.Transport)
	assert.Equal(t, "localhost:6379", profile.Redis.Addr)
	assert.Equal(t, 5*time.Second, profile.Timeout())
	assert.Equal(t, ":8321", profile.HTTPAddr)
}

func TestLoadProfile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	content := []byte("transport: redis\nredis:\n  addr: broker:6380\n  db: 2\ntimeout_ms: 250\nhttp_addr: \":9000\"\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	profile, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, TransportRedis, profile.Transport)
	assert.Equal(t, "broker:6380", profile.Redis.Addr)
	assert.Equal(t, 2, profile.Redis.DB)
	assert.Equal(t, 250*time.Millisecond, profile.Timeout())
	assert.Equal(t, ":9000", profile.HTTPAddr)
}

func TestLoadProfile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.json")
	content := []byte(`{"transport":"redis","redis":{"addr":"broker:6380"},"timeout_ms":100,"http_addr":":9000"}`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	profile, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, TransportRedis, profile.Transport)
	assert.Equal(t, "broker:6380", profile.Redis.Addr)
	assert.Equal(t, 100*time.Millisecond, profile.Timeout())
}

func TestLoadProfile_EnvFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: redis\n"), 0o644))
	t.Setenv("ARBOR_CONFIG", path)

	profile, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, TransportRedis, profile.Transport)
}

func TestLoadProfile_ExplicitMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "an explicitly requested file must exist")
}

func TestLoadProfile_RejectsUnknownTransport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: carrier-pigeon\n"), 0o644))

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestLoadProfile_RejectsNegativeTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout_ms: -5\n"), 0o644))

	_, err := LoadProfile(path)
	assert.Error(t, err)
}
