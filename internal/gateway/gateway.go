// ABOUTME: Gateway orchestrator that wires chat, knowledge base and admin onto one HTTP server
// ABOUTME: Manages store, history, storage, health endpoints and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/2389/merti-gateway/internal/auth"
	"github.com/2389/merti-gateway/internal/chat"
	"github.com/2389/merti-gateway/internal/config"
	"github.com/2389/merti-gateway/internal/history"
	"github.com/2389/merti-gateway/internal/knowledge"
	"github.com/2389/merti-gateway/internal/scraper"
	"github.com/2389/merti-gateway/internal/storage"
	"github.com/2389/merti-gateway/internal/store"
	"github.com/2389/merti-gateway/internal/webadmin"
	"github.com/2389/merti-gateway/internal/webhook"
)

// redisDialTimeout bounds the startup connection to Redis.
const redisDialTimeout = 5 * time.Second

// Gateway owns every server component and their lifecycle.
type Gateway struct {
	config     *config.Config
	store      store.Store
	redis      *redis.Client
	webhook    *webhook.Client
	hub        *chat.Hub
	chat       *chat.Service
	knowledge  *knowledge.Service
	images     *storage.ImageStore
	webAdmin   *webadmin.Admin
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the SQLite store. MERTI_DB_PATH overrides database.path.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("MERTI_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// initHistory picks Redis when history.redis_url is set, otherwise the store.
func initHistory(cfg *config.Config, s store.Store) (history.History, *redis.Client, error) {
	if cfg.History.RedisURL == "" {
		return history.NewStoreHistory(s, cfg.History.MaxMessages), nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	rdb, err := history.DialRedis(ctx, cfg.History.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return history.NewRedisHistory(rdb, cfg.History.TTL, cfg.History.MaxMessages), rdb, nil
}

// newScraper converts the configured proxy chain.
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

// initImages returns nil when storage is not configured.
func initImages(cfg config.StorageConfig) (*storage.ImageStore, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	images, err := storage.NewImageStore(storage.Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		PublicURL: cfg.PublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing image storage: %w", err)
	}
	return images, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	hist, rdb, err := initHistory(cfg, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	images, err := initImages(cfg.Storage)
	if err != nil {
		_ = s.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}

	client := webhook.New(webhook.Config{
		ChatURL:     cfg.Webhook.ChatURL,
		ScrapeURL:   cfg.Webhook.ScrapeURL,
		HTTPClient:  &http.Client{Timeout: cfg.Webhook.Timeout},
		InitTimeout: cfg.Webhook.InitTimeout,
		Logger:      logger.With("component", "webhook"),
	})

	gw := &Gateway{
		config:  cfg,
		store:   s,
		redis:   rdb,
		webhook: client,
		images:  images,
		logger:  logger.With("component", "gateway"),
	}

	gw.hub = chat.NewHub(client.NewSession, cfg.Chat.IdleTimeout)
	// A nil *ImageStore must not become a non-nil interface.
	var uploader chat.ImageUploader
	if images != nil {
		uploader = images
	}
	gw.chat = chat.NewService(gw.hub, client, hist, uploader)
	gw.knowledge = knowledge.NewService(s, client, newScraper(cfg.Scraper))

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)

	chat.NewHandler(gw.chat, cfg.Chat.AllowedOrigins).RegisterRoutes(mux)

	if err := gw.registerAdmin(mux); err != nil {
		gw.closeComponents()
		return nil, err
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return gw, nil
}

// registerAdmin mounts the admin API when an admin credential is configured.
func (g *Gateway) registerAdmin(mux *http.ServeMux) error {
	if !g.config.Admin.Enabled() {
		g.logger.Warn("admin API disabled - no admin credential configured")
		return nil
	}

	tokens, err := auth.NewJWTVerifier([]byte(g.config.Admin.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating admin session verifier: %w", err)
	}

	var images webadmin.ImageStore
	if g.images != nil {
		images = g.images
	}
	g.webAdmin = webadmin.New(g.store, g.knowledge, images, tokens, webadmin.Config{
		Email:        g.config.Admin.Email,
		PasswordHash: g.config.Admin.PasswordHash,
		SessionTTL:   g.config.Admin.SessionTTL,
	})
	g.webAdmin.RegisterRoutes(mux)
	return nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The caller's context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents stops background work and releases connections.
func (g *Gateway) closeComponents() []error {
	if g.chat != nil {
		g.chat.Close()
	}
	if g.hub != nil {
		g.hub.Close()
	}
	if g.knowledge != nil {
		g.knowledge.Close()
	}

	var errs []error
	if g.redis != nil {
		errs = appendCloseError(errs, "redis close", g.redis.Close())
	}
	return appendCloseError(errs, "store close", g.store.Close())
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if g.httpServer != nil {
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	}
	errs = append(errs, g.closeComponents()...)
	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK when the store, and Redis if used, respond.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "dependency", "store", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	if g.redis != nil {
		if err := g.redis.Ping(ctx).Err(); err != nil {
			g.logger.Warn("readiness check failed", "dependency", "redis", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("history unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
