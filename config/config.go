package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"rosettagw/logx"
)

// Config is the service configuration loaded from gateway.yml.
type Config struct {
	Network  NetworkConfig  `yaml:"network"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Currency CurrencyConfig `yaml:"currency"`
}

type NetworkConfig struct {
	Blockchain string `yaml:"blockchain"`
	Network    string `yaml:"network"`
}

type LedgerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type ServerConfig struct {
	Listen        string `yaml:"listen"`
	MetricsListen string `yaml:"metrics_listen"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type CurrencyConfig struct {
	Symbol   string `yaml:"symbol"`
	Decimals int32  `yaml:"decimals"`
}

func Default() *Config {
	return &Config{
		Network:  NetworkConfig{Blockchain: "tokenledger", Network: "mainnet"},
		Ledger:   LedgerConfig{Endpoint: "http://127.0.0.1:8745"},
		Server:   ServerConfig{Listen: ":8080", MetricsListen: ":9091"},
		Store:    StoreConfig{Path: "./data/gateway.db"},
		Currency: CurrencyConfig{Symbol: "TKN", Decimals: 8},
	}
}

// Load reads and parses the gateway.yml file. Fields left out of the file
// keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	logx.Info("CONFIG", "loaded config: network=", cfg.Network.Blockchain, "/", cfg.Network.Network,
		" ledger=", cfg.Ledger.Endpoint, " store=", cfg.Store.Path)
	return cfg, nil
}

// SyncConfig holds the sync engine's operational tuning, read from an .ini
// file. Batch size and backoff are tuning parameters, not correctness
// parameters; the engine also honors the ledger's own reported batch cap.
type SyncConfig struct {
	BatchSize         uint32 `ini:"batch_size"`
	PollIntervalMs    int    `ini:"poll_interval_ms"`
	RetryBackoffMinMs int    `ini:"retry_backoff_min_ms"`
	RetryBackoffMaxMs int    `ini:"retry_backoff_max_ms"`
}

func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		BatchSize:         100,
		PollIntervalMs:    1000,
		RetryBackoffMinMs: 250,
		RetryBackoffMaxMs: 30000,
	}
}

func (c *SyncConfig) PollInterval() time.Duration    { return time.Duration(c.PollIntervalMs) * time.Millisecond }
func (c *SyncConfig) RetryBackoffMin() time.Duration { return time.Duration(c.RetryBackoffMinMs) * time.Millisecond }
func (c *SyncConfig) RetryBackoffMax() time.Duration { return time.Duration(c.RetryBackoffMaxMs) * time.Millisecond }

// LoadSyncConfig reads the [sync] section from an .ini file.
func LoadSyncConfig(path string) (*SyncConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	syncCfg := DefaultSyncConfig()
	if err := cfg.Section("sync").MapTo(syncCfg); err != nil {
		return nil, err
	}
	return syncCfg, nil
}

// ConstructionConfig holds confirmation-polling tuning for the construction
// flow, read from the [construction] section of the same .ini file.
type ConstructionConfig struct {
	ConfirmTimeoutMs int `ini:"confirm_timeout_ms"`
	ConfirmPollMs    int `ini:"confirm_poll_ms"`
}

func DefaultConstructionConfig() *ConstructionConfig {
	return &ConstructionConfig{
		ConfirmTimeoutMs: 30000,
		ConfirmPollMs:    200,
	}
}

func (c *ConstructionConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutMs) * time.Millisecond
}

func (c *ConstructionConfig) ConfirmPoll() time.Duration {
	return time.Duration(c.ConfirmPollMs) * time.Millisecond
}

// LoadConstructionConfig reads the [construction] section from an .ini file.
func LoadConstructionConfig(path string) (*ConstructionConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	conCfg := DefaultConstructionConfig()
	if err := cfg.Section("construction").MapTo(conCfg); err != nil {
		return nil, err
	}
	return conCfg, nil
}
