// ABOUTME: Configuration loading and parsing for merti-gateway
// ABOUTME: Reads YAML or TOML files with env var expansion, defaults and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete merti-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Webhook  WebhookConfig  `yaml:"webhook" toml:"webhook"`
	Scraper  ScraperConfig  `yaml:"scraper" toml:"scraper"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	History  HistoryConfig  `yaml:"history" toml:"history"`
	Admin    AdminConfig    `yaml:"admin" toml:"admin"`
	Chat     ChatConfig     `yaml:"chat" toml:"chat"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the listen address
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" toml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// WebhookConfig points at the two n8n workflow endpoints
type WebhookConfig struct {
	ChatURL   string        `yaml:"chat_url" toml:"chat_url"`
	ScrapeURL string        `yaml:"scrape_url" toml:"scrape_url"`
	Timeout   time.Duration `yaml:"-" toml:"-"`

	// InitTimeout bounds the session initialization request
	InitTimeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw     string `yaml:"timeout" toml:"timeout"`
	InitTimeoutRaw string `yaml:"init_timeout" toml:"init_timeout"`
}

// ProxyConfig is one entry of the scraper's proxy chain
type ProxyConfig struct {
	// URL contains a {url} placeholder replaced by the escaped target
	URL string `yaml:"url" toml:"url"`
	// Kind is "json" (body is {"contents": "..."}) or "raw"
	Kind string `yaml:"kind" toml:"kind"`
}

// ScraperConfig configures the local page preview scraper
type ScraperConfig struct {
	Proxies        []ProxyConfig `yaml:"proxies" toml:"proxies"`
	AttemptTimeout time.Duration `yaml:"-" toml:"-"`
	MaxContent     int           `yaml:"max_content" toml:"max_content"`
	UserAgent      string        `yaml:"user_agent" toml:"user_agent"`

	AttemptTimeoutRaw string `yaml:"attempt_timeout" toml:"attempt_timeout"`
}

// StorageConfig holds S3-compatible object storage settings.
// Storage is disabled when Endpoint is empty.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint" toml:"endpoint"`
	Region    string `yaml:"region" toml:"region"`
	Bucket    string `yaml:"bucket" toml:"bucket"`
	AccessKey string `yaml:"access_key" toml:"access_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	PublicURL string `yaml:"public_url" toml:"public_url"`
}

// Enabled reports whether object storage is configured
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

// HistoryConfig selects where chat transcripts live. Redis is used when
// RedisURL is set, otherwise the SQLite store.
type HistoryConfig struct {
	RedisURL    string        `yaml:"redis_url" toml:"redis_url"`
	TTL         time.Duration `yaml:"-" toml:"-"`
	MaxMessages int           `yaml:"max_messages" toml:"max_messages"`

	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// AdminConfig holds the single admin credential and session settings
type AdminConfig struct {
	Email        string        `yaml:"email" toml:"email"`
	PasswordHash string        `yaml:"password_hash" toml:"password_hash"`
	JWTSecret    string        `yaml:"jwt_secret" toml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"-" toml:"-"`

	SessionTTLRaw string `yaml:"session_ttl" toml:"session_ttl"`
}

// Enabled reports whether the admin API should be mounted
func (a AdminConfig) Enabled() bool {
	return a.Email != "" && a.PasswordHash != ""
}

// ChatConfig configures the chat widget endpoints
type ChatConfig struct {
	IdleTimeout    time.Duration `yaml:"-" toml:"-"`
	AllowedOrigins []string      `yaml:"allowed_origins" toml:"allowed_origins"`

	IdleTimeoutRaw string `yaml:"idle_timeout" toml:"idle_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Defaults applied when a field is left empty.
const (
	DefaultHTTPAddr        = "127.0.0.1:8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultWebhookTimeout  = 60 * time.Second
	DefaultInitTimeout     = 15 * time.Second
	DefaultAttemptTimeout  = 10 * time.Second
	DefaultMaxContent      = 2000
	DefaultUserAgent       = "merti-gateway/1.0"
	DefaultBucket          = "test_images"
	DefaultRegion          = "us-east-1"
	DefaultHistoryTTL      = 24 * time.Hour
	DefaultMaxMessages     = 200
	DefaultSessionTTL      = 12 * time.Hour
	DefaultIdleTimeout     = 30 * time.Minute
)

// DefaultProxies is the chain used when scraper.proxies is empty.
var DefaultProxies = []ProxyConfig{
	{URL: "https://api.allorigins.win/get?url={url}", Kind: "json"},
	{URL: "https://corsproxy.io/?{url}", Kind: "raw"},
	{URL: "https://api.codetabs.com/v1/proxy?quest={url}", Kind: "raw"},
}

// DefaultPath returns the config file location.
// Priority: MERTI_CONFIG env var > XDG_CONFIG_HOME/merti/gateway.yaml > ~/.config/merti/gateway.yaml
func DefaultPath() string {
	if envPath := os.Getenv("MERTI_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "merti", "gateway.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish parses durations, fills defaults and validates.
func (c *Config) finish() error {
	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = DefaultWebhookTimeout
	}
	if c.Webhook.InitTimeout == 0 {
		c.Webhook.InitTimeout = DefaultInitTimeout
	}
	if len(c.Scraper.Proxies) == 0 {
		c.Scraper.Proxies = append([]ProxyConfig(nil), DefaultProxies...)
	}
	for i := range c.Scraper.Proxies {
		if c.Scraper.Proxies[i].Kind == "" {
			c.Scraper.Proxies[i].Kind = "raw"
		}
	}
	if c.Scraper.AttemptTimeout == 0 {
		c.Scraper.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.Scraper.MaxContent == 0 {
		c.Scraper.MaxContent = DefaultMaxContent
	}
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = DefaultUserAgent
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = DefaultBucket
	}
	if c.Storage.Region == "" {
		c.Storage.Region = DefaultRegion
	}
	if c.Storage.PublicURL == "" {
		c.Storage.PublicURL = c.Storage.Endpoint
	}
	if c.History.TTL == 0 {
		c.History.TTL = DefaultHistoryTTL
	}
	if c.History.MaxMessages == 0 {
		c.History.MaxMessages = DefaultMaxMessages
	}
	if c.Admin.SessionTTL == 0 {
		c.Admin.SessionTTL = DefaultSessionTTL
	}
	if c.Chat.IdleTimeout == 0 {
		c.Chat.IdleTimeout = DefaultIdleTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if err := validateHTTPURL("webhook.chat_url", c.Webhook.ChatURL); err != nil {
		return err
	}
	if err := validateHTTPURL("webhook.scrape_url", c.Webhook.ScrapeURL); err != nil {
		return err
	}

	for i, p := range c.Scraper.Proxies {
		if !strings.Contains(p.URL, "{url}") {
			return fmt.Errorf("scraper.proxies[%d].url must contain {url}", i)
		}
		if p.Kind != "json" && p.Kind != "raw" {
			return fmt.Errorf("scraper.proxies[%d].kind must be json or raw, got %q", i, p.Kind)
		}
	}

	if c.Storage.Enabled() {
		if err := validateHTTPURL("storage.endpoint", c.Storage.Endpoint); err != nil {
			return err
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.access_key and storage.secret_key are required when storage is enabled")
		}
	}

	if c.History.MaxMessages < 0 {
		return fmt.Errorf("history.max_messages must not be negative")
	}

	if c.Admin.Email != "" || c.Admin.PasswordHash != "" {
		if !c.Admin.Enabled() {
			return fmt.Errorf("admin.email and admin.password_hash must be set together")
		}
		if len(c.Admin.JWTSecret) < 32 {
			return fmt.Errorf("admin.jwt_secret must be at least 32 bytes")
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func validateHTTPURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", field)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"webhook.timeout", cfg.Webhook.TimeoutRaw, &cfg.Webhook.Timeout},
		{"webhook.init_timeout", cfg.Webhook.InitTimeoutRaw, &cfg.Webhook.InitTimeout},
		{"scraper.attempt_timeout", cfg.Scraper.AttemptTimeoutRaw, &cfg.Scraper.AttemptTimeout},
		{"history.ttl", cfg.History.TTLRaw, &cfg.History.TTL},
		{"admin.session_ttl", cfg.Admin.SessionTTLRaw, &cfg.Admin.SessionTTL},
		{"chat.idle_timeout", cfg.Chat.IdleTimeoutRaw, &cfg.Chat.IdleTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}
	return nil
}
