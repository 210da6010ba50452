// Package config loads gallery settings from defaults, an optional YAML
// file and GALLERY_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/Sternrassler/picsum-gallery/pkg/client"
	"github.com/Sternrassler/picsum-gallery/pkg/logging"
	"github.com/Sternrassler/picsum-gallery/pkg/pagination"
	"github.com/Sternrassler/picsum-gallery/pkg/photo"
	"github.com/Sternrassler/picsum-gallery/pkg/scroll"
)

// EnvPrefix namespaces environment overrides, e.g. GALLERY_REDIS_ADDR.
const EnvPrefix = "GALLERY"

// DefaultUserAgent identifies the gallery to the photo service.
const DefaultUserAgent = "picsum-gallery/1.0 (+https://github.com/Sternrassler/picsum-gallery)"

// API holds photo service settings.
type API struct {
	BaseURL        string        `mapstructure:"base_url"`
	ListPath       string        `mapstructure:"list_path"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	Burst          int           `mapstructure:"burst"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

// Gallery holds pagination and lookup settings.
type Gallery struct {
	PageSize        int           `mapstructure:"page_size"`
	LoadTimeout     time.Duration `mapstructure:"load_timeout"`
	ScanPageLimit   int           `mapstructure:"scan_page_limit"`
	ScanPageSize    int           `mapstructure:"scan_page_size"`
	ScanConcurrency int           `mapstructure:"scan_concurrency"`
	TriggerMargin   int           `mapstructure:"trigger_margin"`
}

// Redis holds cache backend settings.
type Redis struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	StaleTTL time.Duration `mapstructure:"stale_ttl"`
}

// Server holds HTTP service settings.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SessionIdleTTL  time.Duration `mapstructure:"session_idle_ttl"`
}

// Log holds logging settings.
type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Config is the full gallery configuration.
type Config struct {
	API     API     `mapstructure:"api"`
	Gallery Gallery `mapstructure:"gallery"`
	Redis   Redis   `mapstructure:"redis"`
	Server  Server  `mapstructure:"server"`
	Log     Log     `mapstructure:"log"`
}

// SetDefaults registers every key with its default so environment
// overrides resolve even without a config file.
func SetDefaults(v *viper.Viper) {
	retry := client.DefaultRetryConfig()
	scan := pagination.DefaultScanConfig()

	v.SetDefault("api.base_url", photo.DefaultBaseURL)
	v.SetDefault("api.list_path", client.DefaultListPath)
	v.SetDefault("api.user_agent", DefaultUserAgent)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.burst", 5)
	v.SetDefault("api.max_retries", retry.MaxAttempts)
	v.SetDefault("api.initial_backoff", retry.InitialBackoff)

	v.SetDefault("gallery.page_size", pagination.DefaultPageSize)
	v.SetDefault("gallery.load_timeout", 0)
	v.SetDefault("gallery.scan_page_limit", scan.PageLimit)
	v.SetDefault("gallery.scan_page_size", scan.PageSize)
	v.SetDefault("gallery.scan_concurrency", scan.Concurrency)
	v.SetDefault("gallery.trigger_margin", scroll.DefaultMargin)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stale_ttl", 10*time.Minute)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.session_idle_ttl", 30*time.Minute)

	v.SetDefault("log.level", string(logging.LevelInfo))
	v.SetDefault("log.pretty", false)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) over the defaults and environment.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates a configuration.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch {
	case c.API.BaseURL == "":
		return fmt.Errorf("api.base_url is required")
	case c.API.UserAgent == "":
		return fmt.Errorf("api.user_agent is required")
	case c.API.MaxRetries < 1:
		return fmt.Errorf("api.max_retries must be >= 1 (got %d)", c.API.MaxRetries)
	case c.API.RateLimit < 0:
		return fmt.Errorf("api.rate_limit must be >= 0 (got %v)", c.API.RateLimit)
	case c.Gallery.PageSize < 1:
		return fmt.Errorf("gallery.page_size must be >= 1 (got %d)", c.Gallery.PageSize)
	case c.Gallery.ScanPageLimit < 1:
		return fmt.Errorf("gallery.scan_page_limit must be >= 1 (got %d)", c.Gallery.ScanPageLimit)
	case c.Gallery.ScanPageSize < 1:
		return fmt.Errorf("gallery.scan_page_size must be >= 1 (got %d)", c.Gallery.ScanPageSize)
	case c.Gallery.TriggerMargin < 0:
		return fmt.Errorf("gallery.trigger_margin must be >= 0 (got %d)", c.Gallery.TriggerMargin)
	}
	return nil
}

// RedisClient opens the configured Redis client, or returns nil when the
// cache is disabled.
func (c *Config) RedisClient() *redis.Client {
	if !c.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// ClientConfig maps the configuration onto the photo client.
func (c *Config) ClientConfig(redisClient *redis.Client) client.Config {
	cfg := client.DefaultConfig(redisClient, c.API.UserAgent)
	cfg.BaseURL = c.API.BaseURL
	cfg.ListPath = c.API.ListPath
	cfg.Timeout = c.API.Timeout
	cfg.RateLimit = c.API.RateLimit
	cfg.Burst = c.API.Burst
	cfg.Retry.MaxAttempts = c.API.MaxRetries
	cfg.Retry.InitialBackoff = c.API.InitialBackoff
	cfg.ScanPageLimit = c.Gallery.ScanPageLimit
	cfg.ScanPageSize = c.Gallery.ScanPageSize
	cfg.ScanConcurrency = c.Gallery.ScanConcurrency
	if c.Redis.StaleTTL > 0 {
		cfg.StaleTTL = c.Redis.StaleTTL
	}
	return cfg
}

// PaginationConfig maps the configuration onto a gallery controller.
func (c *Config) PaginationConfig() pagination.Config {
	return pagination.Config{
		PageSize:    c.Gallery.PageSize,
		LoadTimeout: c.Gallery.LoadTimeout,
	}
}

// LogConfig maps the configuration onto the logger setup.
func (c *Config) LogConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
