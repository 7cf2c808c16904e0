// ABOUTME: Tests for the gateway binary helpers
// ABOUTME: Covers logger setup, password hashing and generated config

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/merti-gateway/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "chat").WithGroup("req").Info("sent", "visitor", "v1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF sent")
	assert.Contains(t, out, "component=chat")
	assert.Contains(t, out, "req.visitor=v1")
}

func TestJSONLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runHashPassword(strings.NewReader("hunter2\n"), &out))

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))

	assert.Error(t, runHashPassword(strings.NewReader("\n"), &out))
}

func TestRenderConfigLoads(t *testing.T) {
	secret, err := newJWTSecret()
	require.NoError(t, err)
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	yaml := renderConfig(initAnswers{
		HTTPAddr:     "127.0.0.1:9090",
		DBPath:       filepath.Join(dir, "gateway.db"),
		ChatURL:      "https://n8n.example/webhook/chat",
		ScrapeURL:    "https://n8n.example/webhook/scrape",
		RedisURL:     "redis://localhost:6379/0",
		AdminEmail:   "admin@merton.example",
		PasswordHash: string(hash),
		JWTSecret:    secret,
		LogLevel:     "debug",
		LogFormat:    "json",
	})
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "redis://localhost:6379/0", cfg.History.RedisURL)
	assert.True(t, cfg.Admin.Enabled())
	assert.Equal(t, secret, cfg.Admin.JWTSecret)
	assert.False(t, cfg.Storage.Enabled())
}
