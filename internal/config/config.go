package config

import (
	"net/textproto"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	NSI    NSIConfig    `yaml:"nsi" mapstructure:"nsi"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig points at the company CSV export.
type DataConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// NSIConfig configures the accreditation registry client.
type NSIConfig struct {
	BaseURL      string            `yaml:"base_url" mapstructure:"base_url"`
	Headers      map[string]string `yaml:"headers" mapstructure:"headers"`
	TimeoutSecs  int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS float64           `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// Timeout returns the per-call lookup timeout.
func (c NSIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// StoreConfig configures the accreditation store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the JSON API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MSPDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.file", "data/dop_material.csv")
	v.SetDefault("nsi.timeout_secs", 15)
	v.SetDefault("nsi.rate_limit_rps", 1.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mspdash.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Viper lowercases nested map keys; the headers are sent on the wire
	// verbatim, so restore canonical MIME form.
	if len(cfg.NSI.Headers) > 0 {
		canonical := make(map[string]string, len(cfg.NSI.Headers))
		for k, v := range cfg.NSI.Headers {
			canonical[textproto.CanonicalMIMEHeaderKey(k)] = v
		}
		cfg.NSI.Headers = canonical
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
