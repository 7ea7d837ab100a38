package etlconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_ValidCSVConfig(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: debug
  format: json

storage:
  backend: csv
  base_path: ./data
  batch_size: 500

subscriptions:
  - exchange: binance
    market: spot
    symbol: BTCUSDT
    events: [depth, trade]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "csv", cfg.Storage.Backend)
	assert.Equal(t, 500, cfg.Storage.BatchSize)
	require.Len(t, cfg.Subscriptions, 1)
	assert.Equal(t, "BTCUSDT", cfg.Subscriptions[0].Symbol)
	assert.True(t, cfg.Subscriptions[0].HasEvent("depth"))
	assert.False(t, cfg.Subscriptions[0].HasEvent("kline"))
}

func TestLoad_PostgresBackendRequiresDSN(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: postgres

subscriptions:
  - exchange: binance
    symbol: BTCUSDT
    events: [depth]
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsUnsupportedBackend(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: sqlite

subscriptions:
  - exchange: binance
    symbol: BTCUSDT
    events: [depth]
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RequiresAtLeastOneSubscription(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: csv
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("does-not-exist.yml")
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: csv

subscriptions:
  - exchange: binance
    symbol: ETHUSDT
    events: [trade]
`)

	t.Setenv(ConfigEnvVar, path)
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", cfg.Subscriptions[0].Symbol)
}
