// Package config provides runtime configuration for the certledgerd daemon.
//
// Values come from an optional YAML file and are then overridden by
// CERTLEDGER_* environment variables. Every field has a default except the
// owner address, which must be supplied.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/certledger/types"
)

const envPrefix = "CERTLEDGER_"

// Store drivers understood by the daemon.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config holds configuration knobs for the daemon.
type Config struct {
	HTTP   HTTPConfig   `yaml:"http"`
	Ledger LedgerConfig `yaml:"ledger"`
	Store  StoreConfig  `yaml:"store"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LedgerConfig struct {
	// Owner is the hex address allowed to create entries and confirm delivery.
	Owner         string        `yaml:"owner"`
	BasePath      string        `yaml:"base_path"`
	PluginTimeout time.Duration `yaml:"plugin_timeout"`
	// LenientFallback turns unknown methods without value into no-ops
	// instead of rejecting them.
	LenientFallback bool `yaml:"lenient_fallback"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// KafkaConfig enables the Kafka notifier when Brokers is non-empty.
type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

// RedisConfig enables the Redis notifier when Addr is non-empty.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Ledger: LedgerConfig{
			BasePath:      "/certledger",
			PluginTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "data/certledger.db",
		},
		Kafka: KafkaConfig{Topic: "certledger.events"},
		Redis: RedisConfig{Channel: "certledger:events"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields the daemon cannot default.
func (c Config) Validate() error {
	if c.Ledger.Owner == "" {
		return errors.New("config: ledger.owner is required")
	}
	if _, err := types.ParseAddress(c.Ledger.Owner); err != nil {
		return fmt.Errorf("config: ledger.owner: %w", err)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("config: store.path is required for sqlite")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// OwnerAddress returns the parsed owner. Call after Validate.
func (c Config) OwnerAddress() types.Address {
	return types.MustParseAddress(c.Ledger.Owner)
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return level, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"HTTP_ADDR":     &c.HTTP.Addr,
		"OWNER":         &c.Ledger.Owner,
		"BASE_PATH":     &c.Ledger.BasePath,
		"STORE_DRIVER":  &c.Store.Driver,
		"STORE_PATH":    &c.Store.Path,
		"KAFKA_BROKERS": &c.Kafka.Brokers,
		"KAFKA_TOPIC":   &c.Kafka.Topic,
		"REDIS_ADDR":    &c.Redis.Addr,
		"REDIS_CHANNEL": &c.Redis.Channel,
		"LOG_LEVEL":     &c.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	durs := map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT": &c.HTTP.ShutdownTimeout,
		"PLUGIN_TIMEOUT":   &c.Ledger.PluginTimeout,
	}
	for key, dst := range durs {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
	}

	if v, ok := lookup("LENIENT_FALLBACK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sLENIENT_FALLBACK: %w", envPrefix, err)
		}
		c.Ledger.LenientFallback = b
	}
	return nil
}

// lookup returns the trimmed value of CERTLEDGER_<key> if it is set and non-empty.
func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	return v, v != ""
}
