package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Cache   CacheConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type CacheConfig struct {
	// DefaultTTLMinutes is applied to generic kv writes that do not name a
	// ttl. 0 means items never expire.
	DefaultTTLMinutes int
	// SweepIntervalMinutes is how often the background sweeper scans for
	// expired items. 0 disables the sweeper.
	SweepIntervalMinutes int
}

type LogConfig struct {
	Level string
}

func (c CacheConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLMinutes) * time.Minute
}

func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Cache: CacheConfig{
			DefaultTTLMinutes:    0,
			SweepIntervalMinutes: 15,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "vaultd-data"
		}
	}
	return filepath.Join(dir, "vaultd")
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/vaultd/config.json, then applies VAULTD_* environment
// variable overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
