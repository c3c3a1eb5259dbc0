package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is loaded once at
// startup and treated as immutable for the duration of a pipeline run.
type Config struct {
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Rates      RatesConfig      `yaml:"rates" mapstructure:"rates"`
	Telegram   TelegramConfig   `yaml:"telegram" mapstructure:"telegram"`
	Webhook    WebhookConfig    `yaml:"webhook" mapstructure:"webhook"`
	Describer  DescriberConfig  `yaml:"describer" mapstructure:"describer"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ThresholdsConfig holds the scoring and routing threshold bands.
type ThresholdsConfig struct {
	FollowerMin        int64   `yaml:"follower_min" mapstructure:"follower_min"`
	FollowerMax        int64   `yaml:"follower_max" mapstructure:"follower_max"`
	PrizeMin           float64 `yaml:"prize_min" mapstructure:"prize_min"`
	PrizeMax           float64 `yaml:"prize_max" mapstructure:"prize_max"`
	MaxDurationHours   float64 `yaml:"max_duration_hours" mapstructure:"max_duration_hours"`
	RelevanceThreshold float64 `yaml:"relevance_threshold" mapstructure:"relevance_threshold"`
}

// ProcessingConfig holds pipeline processing knobs.
type ProcessingConfig struct {
	AlertPercentile float64 `yaml:"alert_threshold_percentile" mapstructure:"alert_threshold_percentile"`
	DigestSendTime  string  `yaml:"digest_send_time" mapstructure:"digest_send_time"`
}

// RatesConfig configures the optional live currency-rate lookup.
type RatesConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	RequestsPerSec   float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// TelegramConfig configures the Telegram delivery channel.
type TelegramConfig struct {
	Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
	BotToken       string  `yaml:"bot_token" mapstructure:"bot_token"`
	ChannelID      int64   `yaml:"channel_id" mapstructure:"channel_id"`
	MessagesPerSec float64 `yaml:"messages_per_sec" mapstructure:"messages_per_sec"`
}

// WebhookConfig configures webhook alert delivery.
type WebhookConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// DescriberConfig configures the optional LLM title/description writer.
type DescriberConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// CatalogConfig points at the scoring catalog file.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StoreConfig configures the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read API server.
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
	v.SetEnvPrefix("HACKSIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("thresholds.follower_min", 2000)
	v.SetDefault("thresholds.follower_max", 50000)
	v.SetDefault("thresholds.prize_min", 1000)
	v.SetDefault("thresholds.prize_max", 100000)
	v.SetDefault("thresholds.max_duration_hours", 168)
	v.SetDefault("thresholds.relevance_threshold", 0.3)
	v.SetDefault("processing.alert_threshold_percentile", 90)
	v.SetDefault("processing.digest_send_time", "18:00")
	v.SetDefault("rates.timeout_secs", 5)
	v.SetDefault("rates.max_attempts", 3)
	v.SetDefault("rates.initial_backoff_ms", 250)
	v.SetDefault("rates.requests_per_sec", 2)
	v.SetDefault("telegram.messages_per_sec", 2)
	v.SetDefault("describer.model", "claude-haiku-4-5-20251001")
	v.SetDefault("describer.max_tokens", 512)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "hacksignal.db")
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks threshold sanity. A failure here is fatal at startup —
// no record is ever processed under an invalid configuration.
func (c *Config) Validate() error {
	t := c.Thresholds
	if t.FollowerMin < 0 {
		return eris.New("config: thresholds.follower_min must be non-negative")
	}
	if t.FollowerMax < t.FollowerMin {
		return eris.Errorf("config: thresholds.follower_max (%d) below follower_min (%d)", t.FollowerMax, t.FollowerMin)
	}
	if t.PrizeMax < t.PrizeMin {
		return eris.Errorf("config: thresholds.prize_max (%.0f) below prize_min (%.0f)", t.PrizeMax, t.PrizeMin)
	}
	if t.MaxDurationHours <= 0 {
		return eris.New("config: thresholds.max_duration_hours must be positive")
	}
	if t.RelevanceThreshold < 0 || t.RelevanceThreshold > 1 {
		return eris.Errorf("config: thresholds.relevance_threshold %.3f outside [0,1]", t.RelevanceThreshold)
	}

	p := c.Processing
	if p.AlertPercentile <= 0 || p.AlertPercentile > 100 {
		return eris.Errorf("config: processing.alert_threshold_percentile %.1f outside (0,100]", p.AlertPercentile)
	}
	if _, _, err := ParseClock(p.DigestSendTime); err != nil {
		return err
	}

	return nil
}

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, eris.Wrapf(err, "config: parse clock %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, eris.Errorf("config: clock %q out of range", s)
	}
	return hour, minute, nil
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
