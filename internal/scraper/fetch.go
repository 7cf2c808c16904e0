// ABOUTME: Fetches page HTML through an ordered chain of proxies
// ABOUTME: Each attempt has its own timeout; the first success wins

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrAllProxiesFailed is returned when no proxy produced a page.
var ErrAllProxiesFailed = errors.New("all proxies failed")

// ErrInvalidURL is returned for anything but an absolute http or https URL.
var ErrInvalidURL = errors.New("invalid URL")

// ProxyKind says how a proxy returns the page.
type ProxyKind string

const (
	// ProxyJSON wraps the page as {"contents": "<html>"}.
	ProxyJSON ProxyKind = "json"
	// ProxyRaw returns the page body as-is.
	ProxyRaw ProxyKind = "raw"
)

// Proxy is one entry of the fetch chain. Template contains a {url}
// placeholder that receives the query-escaped target.
type Proxy struct {
	Template string
	Kind     ProxyKind
}

// Expand returns the request URL for target.
func (p Proxy) Expand(target string) string {
	return strings.ReplaceAll(p.Template, "{url}", url.QueryEscape(target))
}

const maxPageBytes = 4 << 20

// ValidateURL checks that raw is an absolute http or https URL.
func ValidateURL(raw string) error {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return fmt.Errorf("%w: %q must start with http:// or https://", ErrInvalidURL, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return nil
}

// fetch tries each proxy in order and returns the first page body.
func (s *Scraper) fetch(ctx context.Context, target string) (string, error) {
	errs := []error{ErrAllProxiesFailed}
	for i, p := range s.proxies {
		html, err := s.attempt(ctx, p, target)
		if err == nil {
			return html, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Warn("proxy attempt failed", "proxy", i, "url", target, "error", err)
		errs = append(errs, fmt.Errorf("proxy %d: %w", i, err))
	}
	return "", errors.Join(errs...)
}

func (s *Scraper) attempt(ctx context.Context, p Proxy, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Expand(target), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	if p.Kind == ProxyJSON {
		contents := gjson.GetBytes(body, "contents")
		if contents.Type != gjson.String || contents.Str == "" {
			return "", errors.New("response has no contents")
		}
		return contents.Str, nil
	}

	if len(body) == 0 {
		return "", errors.New("empty body")
	}
	return string(body), nil
}

// Config configures a Scraper.
type Config struct {
	Proxies        []Proxy
	AttemptTimeout time.Duration
	MaxContent     int
	UserAgent      string
	HTTPClient     *http.Client
}

// Scraper previews pages.
type Scraper struct {
	proxies        []Proxy
	attemptTimeout time.Duration
	maxContent     int
	userAgent      string
	http           *http.Client
	logger         *slog.Logger
}

// New creates a Scraper. Zero values fall back to a 10s attempt timeout,
// 2000 characters of content and http.DefaultClient.
func New(cfg Config) *Scraper {
	s := &Scraper{
		proxies:        cfg.Proxies,
		attemptTimeout: cfg.AttemptTimeout,
		maxContent:     cfg.MaxContent,
		userAgent:      cfg.UserAgent,
		http:           cfg.HTTPClient,
		logger:         slog.Default().With("component", "scraper"),
	}
	if s.attemptTimeout <= 0 {
		s.attemptTimeout = 10 * time.Second
	}
	if s.maxContent <= 0 {
		s.maxContent = DefaultMaxContent
	}
	if s.userAgent == "" {
		s.userAgent = "merti-gateway/1.0"
	}
	if s.http == nil {
		s.http = http.DefaultClient
	}
	return s
}

// Scrape validates target, fetches it and extracts a preview.
func (s *Scraper) Scrape(ctx context.Context, target string) (*Result, error) {
	if err := ValidateURL(target); err != nil {
		return nil, err
	}
	if len(s.proxies) == 0 {
		return nil, fmt.Errorf("%w: no proxies configured", ErrAllProxiesFailed)
	}

	s.logger.Info("scraping page", "url", target)
	html, err := s.fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	res, err := Extract(html, target, s.maxContent)
	if err != nil {
		return nil, err
	}
	s.logger.Info("scraped page", "url", target, "links", len(res.Links), "files", len(res.Files))
	return res, nil
}
