package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.ListenAddress)
	assert.Equal(t, 400, cfg.MaxWorkers)
	assert.Equal(t, int64(200*1024*1024), cfg.Cache.MaxTotalBytes)
	assert.Equal(t, int64(10*1024*1024), cfg.Cache.MaxEntryBytes)
	assert.Equal(t, "blocked_urls.txt", cfg.BlocklistFile)
	assert.False(t, cfg.DNS.Enabled)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"listen-address": ":9090",
		"max-workers": 200,
		"cache": {"max-total-bytes": 1048576, "max-entry-bytes": 65536, "capacity": 10}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddress)
	assert.Equal(t, 200, cfg.MaxWorkers)
	assert.Equal(t, int64(1048576), cfg.Cache.MaxTotalBytes)
	assert.Equal(t, int64(65536), cfg.Cache.MaxEntryBytes)
	assert.Equal(t, 10, cfg.Cache.Capacity)
}

func TestLoadConfigHCL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.hcl")
	content := `
listen_address = ":9191"
max_workers    = 250

cache {
  max_total_bytes = 2097152
  max_entry_bytes = 131072
  capacity        = 20
}

dns {
  enabled = false
}

statistics {
  backend = "sqlite"
  dsn     = "warden.db"
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.ListenAddress)
	assert.Equal(t, 250, cfg.MaxWorkers)
	assert.Equal(t, int64(2097152), cfg.Cache.MaxTotalBytes)
	assert.Equal(t, "sqlite", cfg.Statistics.Backend)
}

func TestLoadConfigUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x: 1"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestHasChanged(t *testing.T) {
	a := Default()
	b := Default()
	assert.False(t, HasChanged(a, b))

	b.MaxWorkers = 999
	assert.True(t, HasChanged(a, b))

	c := Default()
	c.DNS.Servers = append(c.DNS.Servers, DNSServerConfig{Address: "9.9.9.9:53", Type: DNSTypeUDP, TimeoutSeconds: 5})
	assert.True(t, HasChanged(a, c))
}

func TestHasChangedNil(t *testing.T) {
	a := Default()
	assert.True(t, HasChanged(a, nil))
	assert.True(t, HasChanged(nil, a))
	assert.False(t, HasChanged(nil, nil))
}
