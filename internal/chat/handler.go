// ABOUTME: HTTP and WebSocket endpoints for the resident chat widget
// ABOUTME: Visitors are identified by a cookie or the WebSocket query string

package chat

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/merti-gateway/internal/webhook"
)

// GenericApology is shown to the visitor when the chat webhook cannot be
// reached or rejects the message.
const GenericApology = "Sorry, I encountered an error. Please try again."

const (
	// VisitorCookieName identifies a chat visitor across requests.
	VisitorCookieName = "merti_visitor"

	visitorCookieMaxAge = 365 * 24 * 60 * 60

	// maxUploadBytes caps a multipart chat message.
	maxUploadBytes = 10 << 20

	wsWriteTimeout = 10 * time.Second
)

// Handler serves the chat API.
type Handler struct {
	svc      *Service
	origins  map[string]bool
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a Handler. An empty allowedOrigins accepts any origin.
func NewHandler(svc *Service, allowedOrigins []string) *Handler {
	h := &Handler{
		svc:     svc,
		origins: make(map[string]bool, len(allowedOrigins)),
		logger:  slog.Default().With("component", "chat.http"),
	}
	for _, o := range allowedOrigins {
		h.origins[strings.TrimRight(o, "/")] = true
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// RegisterRoutes registers the chat routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat/messages", h.handleMessage)
	mux.HandleFunc("POST /api/chat/reset", h.handleReset)
	mux.HandleFunc("GET /api/chat/session", h.handleSession)
	mux.HandleFunc("GET /api/chat/history", h.handleHistory)
	mux.HandleFunc("GET /ws/chat", h.handleWebSocket)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	return h.origins[origin]
}

// visitorID returns the visitor cookie value, issuing a new one if absent.
func visitorID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(VisitorCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   visitorCookieMaxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

type messageRequest struct {
	Text     string `json:"text"`
	ClientID string `json:"client_id"`
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	visitor := visitorID(w, r)
	req := SendRequest{Visitor: visitor}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		req.Text = r.FormValue("text")
		req.ClientID = r.FormValue("client_id")

		img, err := readImage(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Image = img
	} else {
		var body messageRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Text = body.Text
		req.ClientID = body.ClientID
	}

	reply, err := h.svc.Send(r.Context(), req)
	if err != nil {
		status, msg := h.sendErrorStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func readImage(r *http.Request) (*webhook.Image, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New("invalid image upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("reading image upload failed")
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, errors.New("upload must be an image")
	}
	return &webhook.Image{Data: data, Filename: header.Filename, MimeType: mimeType, Size: header.Size}, nil
}

func (h *Handler) sendErrorStatus(err error) (int, string) {
	var se *webhook.StatusError
	switch {
	case errors.Is(err, webhook.ErrEmptyPayload):
		return http.StatusBadRequest, "message needs text or an image"
	case errors.Is(err, ErrDuplicateMessage):
		return http.StatusConflict, "duplicate message"
	case errors.As(err, &se):
		h.logger.Warn("chat webhook rejected message", "status", se.StatusCode)
		return http.StatusBadGateway, GenericApology
	default:
		h.logger.Error("sending chat message failed", "error", err)
		return http.StatusBadGateway, GenericApology
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	id := h.svc.Reset(r.Context(), visitorID(w, r))
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.svc.SessionID(visitorID(w, r))
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "active": ok})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	visitor := visitorID(w, r)
	turns, err := h.svc.History(r.Context(), visitor)
	if err != nil {
		h.logger.Error("loading chat history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	id, _ := h.svc.SessionID(visitor)
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": turns})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
