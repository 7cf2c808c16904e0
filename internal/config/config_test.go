// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
database:
  path: "./test.db"
webhook:
  chat_url: "https://n8n.example.org/webhook/chat"
  scrape_url: "https://n8n.example.org/webhook/scrape"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "0.0.0.0:9000"
  shutdown_timeout: "5s"
database:
  path: "/var/lib/merti/gateway.db"
webhook:
  chat_url: "https://n8n.example.org/webhook/chat"
  scrape_url: "https://n8n.example.org/webhook/scrape"
  timeout: "30s"
  init_timeout: "3s"
scraper:
  attempt_timeout: "4s"
  max_content: 500
  proxies:
    - url: "https://proxy.example.org/?u={url}"
      kind: json
    - url: "https://raw.example.org/{url}"
storage:
  endpoint: "https://s3.example.org"
  access_key: "ak"
  secret_key: "sk"
history:
  redis_url: "redis://localhost:6379/1"
  ttl: "2h"
  max_messages: 50
admin:
  email: "admin@example.org"
  password_hash: "$2a$10$abcdefghijklmnopqrstuv"
  jwt_secret: "0123456789abcdef0123456789abcdef"
  session_ttl: "1h"
chat:
  idle_timeout: "10m"
  allowed_origins: ["https://council.example.org"]
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/var/lib/merti/gateway.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Webhook.InitTimeout)
	assert.Equal(t, 4*time.Second, cfg.Scraper.AttemptTimeout)
	assert.Equal(t, 500, cfg.Scraper.MaxContent)
	require.Len(t, cfg.Scraper.Proxies, 2)
	assert.Equal(t, "json", cfg.Scraper.Proxies[0].Kind)
	assert.Equal(t, "raw", cfg.Scraper.Proxies[1].Kind)
	assert.True(t, cfg.Storage.Enabled())
	assert.Equal(t, DefaultBucket, cfg.Storage.Bucket)
	assert.Equal(t, "https://s3.example.org", cfg.Storage.PublicURL)
	assert.Equal(t, 2*time.Hour, cfg.History.TTL)
	assert.Equal(t, 50, cfg.History.MaxMessages)
	assert.True(t, cfg.Admin.Enabled())
	assert.Equal(t, time.Hour, cfg.Admin.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.Chat.IdleTimeout)
	assert.Equal(t, []string{"https://council.example.org"}, cfg.Chat.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "gateway.yaml", minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, DefaultWebhookTimeout, cfg.Webhook.Timeout)
	assert.Equal(t, DefaultInitTimeout, cfg.Webhook.InitTimeout)
	assert.Equal(t, DefaultProxies, cfg.Scraper.Proxies)
	assert.Equal(t, DefaultMaxContent, cfg.Scraper.MaxContent)
	assert.False(t, cfg.Storage.Enabled())
	assert.Empty(t, cfg.History.RedisURL)
	assert.Equal(t, DefaultMaxMessages, cfg.History.MaxMessages)
	assert.False(t, cfg.Admin.Enabled())
	assert.Equal(t, DefaultIdleTimeout, cfg.Chat.IdleTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_DefaultProxiesNotShared(t *testing.T) {
	cfg, err := Load(writeConfig(t, "gateway.yaml", minimalYAML))
	require.NoError(t, err)

	cfg.Scraper.Proxies[0].URL = "changed"
	assert.NotEqual(t, "changed", DefaultProxies[0].URL)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "gateway.toml", `
[database]
path = "./test.db"

[webhook]
chat_url = "https://n8n.example.org/webhook/chat"
scrape_url = "https://n8n.example.org/webhook/scrape"
timeout = "45s"

[[scraper.proxies]]
url = "https://proxy.example.org/?u={url}"
kind = "json"

[chat]
allowed_origins = ["http://localhost:5173"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Webhook.Timeout)
	require.Len(t, cfg.Scraper.Proxies, 1)
	assert.Equal(t, "json", cfg.Scraper.Proxies[0].Kind)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Chat.AllowedOrigins)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("MERTI_TEST_CHAT_URL", "https://env.example.org/chat")
	t.Setenv("MERTI_TEST_SECRET", "0123456789abcdef0123456789abcdef")

	path := writeConfig(t, "gateway.yaml", `
database:
  path: "./test.db"
webhook:
  chat_url: "${MERTI_TEST_CHAT_URL}"
  scrape_url: "https://n8n.example.org/webhook/scrape"
admin:
  email: "a@example.org"
  password_hash: "hash"
  jwt_secret: "${MERTI_TEST_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.org/chat", cfg.Webhook.ChatURL)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Admin.JWTSecret)
}

func TestExpandEnvVars_Unset(t *testing.T) {
	assert.Equal(t, "a--b", expandEnvVars("a-${MERTI_DEFINITELY_UNSET_VAR}-b"))
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing database path",
			content: strings.Replace(minimalYAML, `path: "./test.db"`, `path: ""`, 1),
			wantErr: "database.path is required",
		},
		{
			name:    "missing chat url",
			content: strings.Replace(minimalYAML, `chat_url: "https://n8n.example.org/webhook/chat"`, "", 1),
			wantErr: "webhook.chat_url is required",
		},
		{
			name:    "bad scrape scheme",
			content: strings.Replace(minimalYAML, `https://n8n.example.org/webhook/scrape`, `ftp://n8n.example.org/scrape`, 1),
			wantErr: "webhook.scrape_url must use http or https",
		},
		{
			name:    "bad duration",
			content: minimalYAML + "chat:\n  idle_timeout: \"soon\"\n",
			wantErr: "chat.idle_timeout",
		},
		{
			name:    "proxy without placeholder",
			content: minimalYAML + "scraper:\n  proxies:\n    - url: \"https://proxy.example.org/\"\n",
			wantErr: "must contain {url}",
		},
		{
			name:    "proxy bad kind",
			content: minimalYAML + "scraper:\n  proxies:\n    - url: \"https://p/{url}\"\n      kind: xml\n",
			wantErr: "kind must be json or raw",
		},
		{
			name:    "storage without keys",
			content: minimalYAML + "storage:\n  endpoint: \"https://s3.example.org\"\n",
			wantErr: "storage.access_key",
		},
		{
			name:    "admin half configured",
			content: minimalYAML + "admin:\n  email: \"a@example.org\"\n",
			wantErr: "must be set together",
		},
		{
			name:    "admin short secret",
			content: minimalYAML + "admin:\n  email: \"a@example.org\"\n  password_hash: \"h\"\n  jwt_secret: \"short\"\n",
			wantErr: "at least 32 bytes",
		},
		{
			name:    "bad log format",
			content: minimalYAML + "logging:\n  format: xml\n",
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "gateway.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "gateway.yaml", "database: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestDefaultPath(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		t.Setenv("MERTI_CONFIG", "/etc/merti/custom.toml")
		assert.Equal(t, "/etc/merti/custom.toml", DefaultPath())
	})

	t.Run("xdg", func(t *testing.T) {
		t.Setenv("MERTI_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		assert.Equal(t, filepath.Join("/tmp/xdg", "merti", "gateway.yaml"), DefaultPath())
	})
}
