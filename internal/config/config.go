// Package config loads server configuration: built-in defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	SiteURL        string        `yaml:"site_url"`
	Environment    string        `yaml:"environment"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type NotionConfig struct {
	Token      string        `yaml:"token"`
	DatabaseID string        `yaml:"database_id"`
	BaseURL    string        `yaml:"base_url"`
	Version    string        `yaml:"version"`
	Timeout    time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type CacheConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Warmup        bool          `yaml:"warmup"`
}

type RateLimitConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`
}

type NewsletterConfig struct {
	ResendAPIKey      string        `yaml:"resend_api_key"`
	ResendBaseURL     string        `yaml:"resend_base_url"`
	From              string        `yaml:"from"`
	Pause             time.Duration `yaml:"pause"`
	DispatchOnPublish bool          `yaml:"dispatch_on_publish"`
}

type AuthConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
	// AdminTokenHash is the bcrypt hash of the admin token.
	AdminTokenHash string `yaml:"admin_token_hash"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Notion     NotionConfig     `yaml:"notion"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Newsletter NewsletterConfig `yaml:"newsletter"`
	Auth       AuthConfig       `yaml:"auth"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			Environment:  "production",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Notion: NotionConfig{
			BaseURL: "https://api.notion.com",
			Version: "2022-06-28",
			Timeout: 10 * time.Second,
		},
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "file:blog.db?_pragma=busy_timeout(5000)"},
		Redis:     RedisConfig{Addr: "127.0.0.1:6379", KeyPrefix: "blog:"},
		Cache:     CacheConfig{SweepInterval: 5 * time.Minute, Warmup: true},
		RateLimit: RateLimitConfig{Backend: "memory"},
		Newsletter: NewsletterConfig{
			ResendBaseURL:     "https://api.resend.com",
			From:              "El Blog del CEO <newsletter@elblogdelceo.com>",
			Pause:             100 * time.Millisecond,
			DispatchOnPublish: true,
		},
	}
}

// Load reads path (when non-empty) over the defaults and then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing YAML config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getenv("ADDR", c.Server.Addr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("ADDR") == "" {
		c.Server.Addr = ":" + port
	}
	c.Server.SiteURL = getenv("SITE_URL", getenv("NEXT_PUBLIC_SITE_URL", c.Server.SiteURL))
	c.Server.Environment = getenv("APP_ENV", getenv("NODE_ENV", c.Server.Environment))
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	c.Log.Level = getenv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenv("LOG_FORMAT", c.Log.Format)

	c.Notion.Token = getenv("NOTION_TOKEN", c.Notion.Token)
	c.Notion.DatabaseID = getenv("NOTION_DATABASE_ID", c.Notion.DatabaseID)
	c.Notion.BaseURL = getenv("NOTION_BASE_URL", c.Notion.BaseURL)

	c.Database.Driver = getenv("DATABASE_DRIVER", c.Database.Driver)
	c.Database.DSN = getenv("DATABASE_URL", c.Database.DSN)

	c.Redis.Addr = getenv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getenv("REDIS_PASSWORD", c.Redis.Password)
	c.RateLimit.Backend = getenv("RATE_LIMIT_BACKEND", c.RateLimit.Backend)

	c.Newsletter.ResendAPIKey = getenv("RESEND_API_KEY", c.Newsletter.ResendAPIKey)
	c.Newsletter.From = getenv("NEWSLETTER_FROM", c.Newsletter.From)

	c.Auth.WebhookSecret = getenv("WEBHOOK_SECRET", c.Auth.WebhookSecret)
	c.Auth.AdminTokenHash = getenv("ADMIN_TOKEN_HASH", c.Auth.AdminTokenHash)

	var err error
	if c.Redis.DB, err = getenvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.Cache.SweepInterval, err = getenvDuration("CACHE_SWEEP_INTERVAL", c.Cache.SweepInterval); err != nil {
		return err
	}
	if c.Newsletter.Pause, err = getenvDuration("NEWSLETTER_PAUSE", c.Newsletter.Pause); err != nil {
		return err
	}
	if c.Newsletter.DispatchOnPublish, err = getenvBool("NEWSLETTER_DISPATCH_ON_PUBLISH", c.Newsletter.DispatchOnPublish); err != nil {
		return err
	}
	return nil
}

// Development reports whether the server runs in development mode, where
// localhost origins are accepted.
func (c Config) Development() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

// Origins lists the origins allowed to send mutating API requests besides
// the request's own host.
func (c Config) Origins() []string {
	origins := append([]string(nil), c.Server.AllowedOrigins...)
	if c.Server.SiteURL != "" {
		origins = append(origins, c.Server.SiteURL)
	}
	if c.Development() {
		origins = append(origins, "http://localhost:3000", "http://127.0.0.1:3000")
	}
	return origins
}

// Validate reports every setting the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Notion.Token == "" {
		errs = append(errs, errors.New("NOTION_TOKEN is required"))
	}
	if c.Notion.DatabaseID == "" {
		errs = append(errs, errors.New("NOTION_DATABASE_ID is required"))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend))
	}
	if c.Auth.WebhookSecret == "" {
		errs = append(errs, errors.New("WEBHOOK_SECRET is required"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
