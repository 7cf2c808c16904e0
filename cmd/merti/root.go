// ABOUTME: Root cobra command and shared settings for the merti client
// ABOUTME: Webhook URLs come from the gateway config, overridden by flags

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/merti-gateway/internal/config"
	"github.com/2389/merti-gateway/internal/scraper"
	"github.com/2389/merti-gateway/internal/webhook"
)

var (
	configPath string
	chatURL    string
	scrapeURL  string
	verbose    bool
	version    = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "merti",
	Short: "Terminal client for the Merti council assistant",
	Long: `merti talks to the assistant's chat and scrape webhooks.

Quick Start:
  merti chat                              # interactive session
  merti send "When is bin collection?"    # one-off question
  merti upload photo.jpg --text "Is this fly-tipping?"
  merti scrape https://www.merton.gov.uk/rubbish-and-recycling
  merti preview https://www.merton.gov.uk/parking`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "gateway config file (default $MERTI_CONFIG or ~/.config/merti/gateway.yaml)")
	rootCmd.PersistentFlags().StringVar(&chatURL, "chat-url", "", "chat webhook URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&scrapeURL, "scrape-url", "", "scrape webhook URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newChatCmd(), newSendCmd(), newUploadCmd(), newScrapeCmd(), newPreviewCmd())
}

// settings is what the client needs from config and flags.
type settings struct {
	ChatURL   string
	ScrapeURL string
	Timeout   time.Duration
	Scraper   config.ScraperConfig
}

// loadSettings reads the config file when one exists, then applies flag
// overrides. An explicitly named config file must load.
func loadSettings(path, chatOverride, scrapeOverride string) (*settings, error) {
	s := &settings{
		Timeout: config.DefaultWebhookTimeout,
		Scraper: config.ScraperConfig{
			Proxies:        append([]config.ProxyConfig(nil), config.DefaultProxies...),
			AttemptTimeout: config.DefaultAttemptTimeout,
			MaxContent:     config.DefaultMaxContent,
			UserAgent:      config.DefaultUserAgent,
		},
	}

	explicit := path != ""
	if !explicit {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil || explicit {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		s.ChatURL = cfg.Webhook.ChatURL
		s.ScrapeURL = cfg.Webhook.ScrapeURL
		s.Timeout = cfg.Webhook.Timeout
		s.Scraper = cfg.Scraper
	}

	if chatOverride != "" {
		s.ChatURL = chatOverride
	}
	if scrapeOverride != "" {
		s.ScrapeURL = scrapeOverride
	}
	return s, nil
}

var errNoChatURL = errors.New("no chat webhook URL: pass --chat-url or set webhook.chat_url in the config")
var errNoScrapeURL = errors.New("no scrape webhook URL: pass --scrape-url or set webhook.scrape_url in the config")

func currentSettings() (*settings, error) {
	return loadSettings(configPath, chatURL, scrapeURL)
}

func newClient(s *settings) *webhook.Client {
	return webhook.New(webhook.Config{
		ChatURL:    s.ChatURL,
		ScrapeURL:  s.ScrapeURL,
		HTTPClient: &http.Client{Timeout: s.Timeout},
	})
}

func newScraper(cfg config.ScraperConfig) *scraper.Scraper {
	proxies := make([]scraper.Proxy, 0, len(cfg.Proxies))
	for _, p := range cfg.Proxies {
		proxies = append(proxies, scraper.Proxy{Template: p.URL, Kind: scraper.ProxyKind(p.Kind)})
	}
	return scraper.New(scraper.Config{
		Proxies:        proxies,
		AttemptTimeout: cfg.AttemptTimeout,
		MaxContent:     cfg.MaxContent,
		UserAgent:      cfg.UserAgent,
	})
}

// printReply writes an assistant reply.
func printReply(w io.Writer, resp *webhook.NormalizedResponse) {
	fmt.Fprintln(w, assistantStyle.Render("merti ›")+" "+resp.Message)
	if verbose && resp.SessionID != "" {
		fmt.Fprintln(w, dimStyle.Render("session "+resp.SessionID))
	}
}
