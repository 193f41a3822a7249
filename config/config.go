package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"marketagg/internal/apperr"
	"marketagg/internal/model"

	"gopkg.in/yaml.v3"
)

// ExchangeConfig describes one exchange feed adapter to start: which
// symbols to subscribe to, and whether it is reached via streaming
// websocket or REST polling.
type ExchangeConfig struct {
	Name       string   `yaml:"name"`
	SourceType string   `yaml:"sourceType"`
	WSURL      string   `yaml:"wsUrl"`
	RESTURL    string   `yaml:"restUrl"`
	PollMillis int      `yaml:"pollIntervalMs"`
	Symbols    []string `yaml:"symbols"`
}

// ChannelConfig describes one notification channel to wire up.
type ChannelConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Target  string `yaml:"target"`
	Enabled bool   `yaml:"enabled"`
}

// fileConfig is the shape of the nested-list config file. Only the
// list-shaped settings live here; scalars come from the environment
// the way the rest of the service is configured.
type fileConfig struct {
	Exchanges []ExchangeConfig `yaml:"exchanges"`
	Channels  []ChannelConfig  `yaml:"channels"`
}

// Config holds all application configuration: scalars loaded from
// environment variables, list-shaped settings loaded from a YAML file.
type Config struct {
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	TickBufferSize                  int
	FlushIntervalSeconds            int
	CandleIntervals                 []string
	InMemoryCandleRetentionMinutes  int
	CooldownSeconds                 int
	MaxConcurrentNotifications      int
	StatusProbeIntervalSeconds      int

	Exchanges []ExchangeConfig
	Channels  []ChannelConfig
}

// Load reads scalar settings from the environment and list-shaped
// settings from the YAML file at path (empty path skips the file, used
// in tests where Exchanges/Channels are set directly).
func Load(path string) (*Config, error) {
	cfg := &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/marketagg.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TickBufferSize:                 getEnvAsInt("TICK_BUFFER_SIZE", 500),
		FlushIntervalSeconds:           getEnvAsInt("FLUSH_INTERVAL_SECONDS", 10),
		InMemoryCandleRetentionMinutes: getEnvAsInt("CANDLE_RETENTION_MINUTES", 120),
		CooldownSeconds:                getEnvAsInt("ALERT_COOLDOWN_SECONDS", 300),
		MaxConcurrentNotifications:     getEnvAsInt("MAX_CONCURRENT_NOTIFICATIONS", 10),
		StatusProbeIntervalSeconds:     getEnvAsInt("STATUS_PROBE_INTERVAL_SECONDS", 30),
		CandleIntervals:                []string{"1m", "5m", "1h"},
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Exchanges = fc.Exchanges
	cfg.Channels = fc.Channels

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks the fields a bad config file would otherwise leave
// silently broken until the first adapter or channel fails at runtime.
// Every failure here is fatal at startup, per the ConfigurationError
// taxonomy: there is no safe default for an unknown source type or
// channel kind, or a missing required field.
func (c *Config) validate() error {
	for _, ex := range c.Exchanges {
		if ex.Name == "" {
			return apperr.NewConfigurationError("exchanges[].name", fmt.Errorf("missing required field"))
		}
		switch model.SourceType(ex.SourceType) {
		case model.SourceStreaming:
			if ex.WSURL == "" {
				return apperr.NewConfigurationError("exchanges["+ex.Name+"].wsUrl", fmt.Errorf("required for sourceType=streaming"))
			}
		case model.SourcePolled:
			if ex.RESTURL == "" {
				return apperr.NewConfigurationError("exchanges["+ex.Name+"].restUrl", fmt.Errorf("required for sourceType=polled"))
			}
		default:
			return apperr.NewConfigurationError("exchanges["+ex.Name+"].sourceType", fmt.Errorf("unknown source type %q", ex.SourceType))
		}
		if len(ex.Symbols) == 0 {
			return apperr.NewConfigurationError("exchanges["+ex.Name+"].symbols", fmt.Errorf("at least one symbol required"))
		}
	}

	for _, ch := range c.Channels {
		if ch.Name == "" {
			return apperr.NewConfigurationError("channels[].name", fmt.Errorf("missing required field"))
		}
		switch ch.Kind {
		case "console", "file", "email":
		default:
			return apperr.NewConfigurationError("channels["+ch.Name+"].kind", fmt.Errorf("unknown channel kind %q", ch.Kind))
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvAsInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
