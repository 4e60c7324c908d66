// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Source    SourceConfig    `mapstructure:"source"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	AI        AIConfig        `mapstructure:"ai"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Media     MediaConfig     `mapstructure:"media"`
	DB        DBConfig        `mapstructure:"db"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CategoryConfig describes one category listing page to poll.
type CategoryConfig struct {
	Path string `mapstructure:"path"`
	// FilterBlacklist enables the secondary keyword pass for this category.
	FilterBlacklist bool `mapstructure:"filter_blacklist"`
}

// SourceConfig identifies the marketplace being scraped.
type SourceConfig struct {
	Origin     string           `mapstructure:"origin"`
	UserAgent  string           `mapstructure:"user_agent"`
	Categories []CategoryConfig `mapstructure:"categories"`
	// Blacklist holds lowercase keywords marking service/repair offers.
	Blacklist []string `mapstructure:"blacklist"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
	RetryDelayMs   int `mapstructure:"retry_delay_ms"`
}

// AIConfig points at the chat-completions service used for normalization.
type AIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SchedulerConfig governs the refill/drain cadence.
type SchedulerConfig struct {
	RefillIntervalSeconds int `mapstructure:"refill_interval_seconds"`
	DrainIntervalSeconds  int `mapstructure:"drain_interval_seconds"`
	BatchSize             int `mapstructure:"batch_size"`
}

// MediaConfig sets where downloaded images land and how they are served.
type MediaConfig struct {
	Dir          string `mapstructure:"dir"`
	PublicPrefix string `mapstructure:"public_prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BERKAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("source.origin", "https://berkat.ru")
	v.SetDefault("source.user_agent", "berkat-crawler/0.1")
	v.SetDefault("source.blacklist", []string{"ремонт", "услуги", "тюнинг", "автосервис"})
	v.SetDefault("http.timeout_seconds", 5)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.retry_delay_ms", 1000)
	v.SetDefault("ai.base_url", "https://api.together.xyz")
	v.SetDefault("ai.model", "meta-llama/Llama-3.2-3B-Instruct-Turbo")
	v.SetDefault("ai.timeout_seconds", 60)
	v.SetDefault("scheduler.refill_interval_seconds", 20)
	v.SetDefault("scheduler.drain_interval_seconds", 20)
	v.SetDefault("scheduler.batch_size", 5)
	v.SetDefault("media.dir", "uploads")
	v.SetDefault("media.public_prefix", "/uploads")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Source.Origin == "" {
		return fmt.Errorf("source.origin must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler.batch_size must be > 0")
	}
	if c.Scheduler.RefillIntervalSeconds <= 0 || c.Scheduler.DrainIntervalSeconds <= 0 {
		return fmt.Errorf("scheduler intervals must be > 0")
	}
	if c.AI.BaseURL == "" {
		return fmt.Errorf("ai.base_url must be set")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryDelay converts the retry delay config into a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.HTTP.RetryDelayMs) * time.Millisecond
}

// AITimeout converts the AI timeout config into a duration.
func (c Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// RefillInterval converts the refill cadence into a duration.
func (c Config) RefillInterval() time.Duration {
	return time.Duration(c.Scheduler.RefillIntervalSeconds) * time.Second
}

// DrainInterval converts the drain cadence into a duration.
func (c Config) DrainInterval() time.Duration {
	return time.Duration(c.Scheduler.DrainIntervalSeconds) * time.Second
}
