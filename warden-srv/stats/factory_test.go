package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenproxy/warden/warden-srv/config"
)

func TestNewCollectorDummy(t *testing.T) {
	c, err := NewCollector(config.StatisticsConfig{})
	require.NoError(t, err)
	_, ok := c.(*DummyCollector)
	assert.True(t, ok)
}

func TestNewCollectorUnknownBackend(t *testing.T) {
	_, err := NewCollector(config.StatisticsConfig{Backend: "oracle"})
	assert.Error(t, err)
}

func TestNewCollectorSQLite(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCollector(config.StatisticsConfig{Backend: "sqlite", DSN: dir + "/stats.db"})
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.(*SQLiteCollector)
	assert.True(t, ok)
}
