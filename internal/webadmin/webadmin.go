// ABOUTME: Admin API for merti-gateway management
// ABOUTME: Provides login, session cookies and route registration

package webadmin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/merti-gateway/internal/auth"
	"github.com/2389/merti-gateway/internal/knowledge"
	"github.com/2389/merti-gateway/internal/storage"
	"github.com/2389/merti-gateway/internal/store"
)

// DefaultSessionTTL is how long an admin session lasts.
const DefaultSessionTTL = 12 * time.Hour

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// dummyHash keeps the failed-login path as slow as the successful one.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Config holds the admin credential and session settings
type Config struct {
	Email        string
	PasswordHash string
	SessionTTL   time.Duration
}

// ImageStore is the subset of storage.ImageStore used by the admin API
type ImageStore interface {
	List(ctx context.Context, prefix string) ([]storage.Object, error)
	Delete(ctx context.Context, key string) error
	ImagesForRequest(ctx context.Context, id int64) ([]storage.Object, error)
}

// Admin handles admin API routes and authentication
type Admin struct {
	store  store.Store
	kb     *knowledge.Service
	images ImageStore
	tokens *auth.JWTVerifier
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Admin handler. images may be nil when storage is not
// configured; image routes then answer 503.
func New(s store.Store, kb *knowledge.Service, images ImageStore, tokens *auth.JWTVerifier, cfg Config) *Admin {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	return &Admin{
		store:  s,
		kb:     kb,
		images: images,
		tokens: tokens,
		config: cfg,
		logger: slog.Default().With("component", "admin"),
		now:    time.Now,
	}
}

// RegisterRoutes registers all admin routes on the given mux
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	// Public routes (no auth required)
	mux.HandleFunc("POST /api/admin/login", a.handleLogin)
	mux.HandleFunc("POST /api/admin/logout", a.handleLogout)

	protect := auth.RequireSession(a.tokens, auth.SessionCookieName)
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}

	route("GET /api/admin/me", a.handleMe)

	// Requests and dashboard
	route("GET /api/admin/stats", a.handleStats)
	route("GET /api/admin/requests", a.handleRequestsList)
	route("POST /api/admin/requests", a.handleRequestCreate)
	route("GET /api/admin/requests/{id}", a.handleRequestGet)
	route("PATCH /api/admin/requests/{id}", a.handleRequestUpdate)
	route("DELETE /api/admin/requests/{id}", a.handleRequestDelete)
	route("GET /api/admin/requests/{id}/images", a.handleRequestImages)
	route("GET /api/admin/issues", a.handleIssues)

	// Knowledge base
	route("GET /api/admin/kb/summary", a.handleKBSummary)
	route("GET /api/admin/kb/pages", a.handleKBPages)
	route("POST /api/admin/kb/pages", a.handleKBAddPage)
	route("DELETE /api/admin/kb/pages", a.handleKBDeletePage)
	route("GET /api/admin/kb/files", a.handleKBFiles)
	route("POST /api/admin/kb/files/import", a.handleKBImportFiles)
	route("GET /api/admin/kb/documents", a.handleKBDocuments)
	route("POST /api/admin/kb/preview", a.handleKBPreview)

	// Scraped files
	route("GET /api/admin/files", a.handleFilesList)
	route("POST /api/admin/files", a.handleFilesCreate)
	route("PATCH /api/admin/files/{id}", a.handleFileUpdate)
	route("DELETE /api/admin/files/{id}", a.handleFileDelete)

	// Image storage
	route("GET /api/admin/images", a.handleImagesList)
	route("DELETE /api/admin/images/{key...}", a.handleImageDelete)

	route("GET /api/admin/audit", a.handleAuditList)

	a.logger.Info("admin routes registered")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin checks the configured credential and issues a session cookie
func (a *Admin) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(req.Email))),
		[]byte(strings.ToLower(a.config.Email)),
	) == 1

	hash := a.config.PasswordHash
	if !emailOK || hash == "" {
		// Compare anyway so an unknown email takes as long as a wrong password.
		hash = dummyHash
	}
	passwordOK := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) == nil

	if !emailOK || !passwordOK || a.config.PasswordHash == "" {
		a.logger.Warn("admin login failed", "email", req.Email)
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	expires := a.now().Add(a.config.SessionTTL)
	token, err := a.tokens.Generate(a.config.Email, a.config.SessionTTL)
	if err != nil {
		a.logger.Error("failed to issue session token", "error", err)
		writeError(w, http.StatusInternalServerError, "an error occurred")
		return
	}

	auth.SetSessionCookie(w, r, auth.SessionCookieName, token, expires)
	a.logger.Info("admin login successful", "email", a.config.Email)
	a.audit(r, store.AuditLogin, "session", a.config.Email, map[string]any{"remote_addr": r.RemoteAddr})
	writeJSON(w, http.StatusOK, map[string]any{
		"email":      a.config.Email,
		"expires_at": expires.UTC(),
	})
}

// handleLogout clears the session cookie
func (a *Admin) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, auth.SessionCookieName)
	w.WriteHeader(http.StatusNoContent)
}

func (a *Admin) handleMe(w http.ResponseWriter, r *http.Request) {
	email, _ := auth.SubjectFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"email": email})
}

// decodeJSON reads a JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps store errors to HTTP statuses.
func (a *Admin) writeStoreError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, what+" already exists")
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("store operation failed", "what", what, "error", err)
		writeError(w, http.StatusInternalServerError, "an error occurred")
	}
}
