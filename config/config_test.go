package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadAppliesDefaultsForMissingFields(t *testing.T) {
	path := writeFile(t, "gateway.yml", `
network:
  network: testnet
ledger:
  endpoint: http://ledger:9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "testnet", cfg.Network.Network)
	assert.Equal(t, "tokenledger", cfg.Network.Blockchain, "default survives partial file")
	assert.Equal(t, "http://ledger:9000", cfg.Ledger.Endpoint)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "TKN", cfg.Currency.Symbol)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadSyncConfig(t *testing.T) {
	path := writeFile(t, "tuning.ini", `
[sync]
batch_size = 25
poll_interval_ms = 500

[construction]
confirm_timeout_ms = 1000
`)
	syncCfg, err := LoadSyncConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(25), syncCfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, syncCfg.PollInterval())
	assert.Equal(t, 250*time.Millisecond, syncCfg.RetryBackoffMin(), "defaults fill unset keys")

	conCfg, err := LoadConstructionConfig(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, conCfg.ConfirmTimeout())
	assert.Equal(t, 200*time.Millisecond, conCfg.ConfirmPoll())
}
