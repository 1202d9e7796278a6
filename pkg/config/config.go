// Package config loads and validates the widget consumer's configuration from
// an optional YAML file, WIDGETFLOW_* environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage targets.
const (
	TargetBlob   = "blob"
	TargetRecord = "record"
	TargetRedis  = "redis"
	TargetMemory = "memory"
)

// EnvPrefix prefixes every environment variable override, e.g. WIDGETFLOW_QUEUE_BUCKET.
const EnvPrefix = "WIDGETFLOW"

// Config is the complete consumer configuration.
type Config struct {
	QueueBucket     string      `mapstructure:"queue_bucket"`
	QueuePrefix     string      `mapstructure:"queue_prefix"`
	Target          string      `mapstructure:"target"`
	WidgetBucket    string      `mapstructure:"widget_bucket"`
	Table           string      `mapstructure:"table"`
	Redis           RedisConfig `mapstructure:"redis"`
	SleepMS         int         `mapstructure:"sleep_ms"`
	StopAfter       int         `mapstructure:"stop_after"`
	LogFile         string      `mapstructure:"log_file"`
	LogLevel        string      `mapstructure:"log_level"`
	ProjectID       string      `mapstructure:"project_id"`
	CredentialsFile string      `mapstructure:"credentials_file"`
	NotifyTopic     string      `mapstructure:"notify_topic"`
	HealthAddr      string      `mapstructure:"health_addr"`
}

// RedisConfig holds Redis connection settings for the redis target.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ConfigurationError reports a missing or inconsistent setting. It is raised
// before any polling starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err is, or wraps, a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cErr *ConfigurationError
	return errors.As(err, &cErr)
}

// SetDefaults registers every key with its default so environment overrides apply to all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("queue_bucket", "")
	v.SetDefault("queue_prefix", "")
	v.SetDefault("target", "")
	v.SetDefault("widget_bucket", "")
	v.SetDefault("table", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "widget")
	v.SetDefault("sleep_ms", 100)
	v.SetDefault("stop_after", 0)
	v.SetDefault("log_file", "consumer.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("project_id", "")
	v.SetDefault("credentials_file", "")
	v.SetDefault("notify_topic", "")
	v.SetDefault("health_addr", "")
}

// Load reads configuration into a Config. Flags should already be bound to v.
// A configFile that cannot be read is an error; without one, defaults,
// environment and flags are used.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Target = strings.ToLower(strings.TrimSpace(cfg.Target))
	return &cfg, nil
}

// Validate checks that the settings needed by the selected target are present.
func (c *Config) Validate() error {
	if c.QueueBucket == "" {
		return &ConfigurationError{Field: "queue_bucket", Reason: "is required"}
	}
	switch c.Target {
	case TargetBlob:
		if c.WidgetBucket == "" {
			return &ConfigurationError{Field: "widget_bucket", Reason: "is required when target=blob"}
		}
	case TargetRecord:
		if c.Table == "" {
			return &ConfigurationError{Field: "table", Reason: "is required when target=record"}
		}
	case TargetRedis:
		if c.Redis.Addr == "" {
			return &ConfigurationError{Field: "redis.addr", Reason: "is required when target=redis"}
		}
	case TargetMemory:
	case "":
		return &ConfigurationError{Field: "target", Reason: "is required"}
	default:
		return &ConfigurationError{
			Field:  "target",
			Reason: fmt.Sprintf("must be one of %s, %s, %s, %s; got %q", TargetBlob, TargetRecord, TargetRedis, TargetMemory, c.Target),
		}
	}
	if c.StopAfter < 0 {
		return &ConfigurationError{Field: "stop_after", Reason: "must not be negative"}
	}
	return nil
}

// PollDelay returns the empty-queue delay, never less than a millisecond.
func (c *Config) PollDelay() time.Duration {
	if c.SleepMS < 1 {
		return time.Millisecond
	}
	return time.Duration(c.SleepMS) * time.Millisecond
}

// TargetIdentifier returns the bucket, table or address the selected target writes to.
func (c *Config) TargetIdentifier() string {
	switch c.Target {
	case TargetBlob:
		return c.WidgetBucket
	case TargetRecord:
		return c.Table
	case TargetRedis:
		return c.Redis.Addr
	}
	return "-"
}
