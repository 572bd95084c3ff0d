// Package appconfig loads the host configuration of the fsmcanvas tool from
// an optional YAML file and FSMCANVAS_* environment variables.
package appconfig

import (
	stderrors "errors"
	"strings"
	"time"

	apperrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "FSMCANVAS"

	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	ErrCodeInvalidConfig = "APPCONFIG_INVALID"
)

var ErrInvalidConfig = apperrors.New("invalid configuration", apperrors.CategoryBadInput).
	WithTextCode(ErrCodeInvalidConfig)

// Config holds the host configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	// Settings is the durable store behind the settings provider.
	Settings struct {
		SQLitePath string `mapstructure:"sqlite_path"`
		Table      string `mapstructure:"table"`
	} `mapstructure:"settings"`
	// Session is the session-scoped store behind history.
	Session struct {
		ID         string        `mapstructure:"id"`
		Backend    string        `mapstructure:"backend"`
		SQLitePath string        `mapstructure:"sqlite_path"`
		Table      string        `mapstructure:"table"`
		RedisAddr  string        `mapstructure:"redis_addr"`
		RedisDB    int           `mapstructure:"redis_db"`
		TTL        time.Duration `mapstructure:"ttl"`
		Retries    int           `mapstructure:"retries"`
	} `mapstructure:"session"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("settings.sqlite_path", "fsmcanvas.db")
	v.SetDefault("settings.table", "settings_kv")
	v.SetDefault("session.id", "default")
	v.SetDefault("session.backend", BackendSQLite)
	v.SetDefault("session.sqlite_path", "fsmcanvas.db")
	v.SetDefault("session.table", "session_kv")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("session.retries", 3)
}

// Load reads path when given, otherwise an optional fsmcanvas.yaml in the
// working directory or ./config, then applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, invalidConfig("read config file", err)
		}
	} else {
		v.SetConfigName("fsmcanvas")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, invalidConfig("read config file", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, invalidConfig("decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	switch c.Session.Backend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return invalidConfig("unknown session backend "+c.Session.Backend, nil)
	}
	if strings.TrimSpace(c.Session.ID) == "" {
		return invalidConfig("session id required", nil)
	}
	if c.Session.TTL < 0 {
		return invalidConfig("session ttl must not be negative", nil)
	}
	return nil
}

func invalidConfig(reason string, source error) error {
	err := ErrInvalidConfig.Clone()
	err.Source = source
	return err.WithMetadata(map[string]any{"reason": reason})
}
