// ABOUTME: Chat service: sends visitor input through the webhook client
// ABOUTME: Records transcripts, uploads images and renders replies

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/merti-gateway/internal/dedupe"
	"github.com/2389/merti-gateway/internal/history"
	"github.com/2389/merti-gateway/internal/storage"
	"github.com/2389/merti-gateway/internal/store"
	"github.com/2389/merti-gateway/internal/webhook"
)

// ErrDuplicateMessage is returned when a client message id was already seen.
var ErrDuplicateMessage = errors.New("duplicate message")

// duplicateWindow is how long client message ids are remembered.
const duplicateWindow = 5 * time.Minute

// Dispatcher sends a payload within a session.
type Dispatcher interface {
	Send(ctx context.Context, s *webhook.Session, p webhook.Payload) (*webhook.NormalizedResponse, error)
}

// ImageUploader stores an image and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// SendRequest is one visitor message.
type SendRequest struct {
	Visitor  string
	Text     string
	ClientID string
	Image    *webhook.Image
}

// Reply is the assistant's answer to a SendRequest.
type Reply struct {
	Message   string          `json:"message"`
	HTML      string          `json:"html"`
	SessionID string          `json:"session_id"`
	ImageURL  string          `json:"image_url,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Service coordinates visitor chat.
type Service struct {
	hub     *Hub
	client  Dispatcher
	history history.History
	images  ImageUploader
	seen    *dedupe.Cache
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service. images may be nil, in which case uploaded
// images are forwarded to the webhook but not stored.
func NewService(hub *Hub, client Dispatcher, hist history.History, images ImageUploader) *Service {
	return &Service{
		hub:     hub,
		client:  client,
		history: hist,
		images:  images,
		seen:    dedupe.New(duplicateWindow, 10000),
		logger:  slog.Default().With("component", "chat"),
		now:     time.Now,
	}
}

// Close stops background work owned by the service.
func (s *Service) Close() {
	s.seen.Close()
}

// Send forwards a visitor message and returns the assistant reply. The
// webhook entry point is chosen from which of text and image are present.
func (s *Service) Send(ctx context.Context, req SendRequest) (*Reply, error) {
	payload, err := webhook.NewPayload(req.Text, req.Image)
	if err != nil {
		return nil, err
	}

	dedupeKey := ""
	if req.ClientID != "" {
		dedupeKey = req.Visitor + "|" + req.ClientID
		if s.seen.CheckAndMark(dedupeKey) {
			return nil, ErrDuplicateMessage
		}
	}

	session := s.hub.Session(req.Visitor)
	imageURL := s.uploadImage(ctx, req.Image)

	resp, err := s.client.Send(ctx, session, payload)
	if err != nil {
		if dedupeKey != "" {
			s.seen.Forget(dedupeKey)
		}
		return nil, err
	}

	sessionID, ok := session.CurrentID()
	if !ok {
		sessionID = resp.SessionID
	}

	now := s.now().UTC()
	s.record(ctx, sessionID, history.Turn{Role: store.RoleUser, Content: req.Text, ImageURL: imageURL, CreatedAt: now})
	s.record(ctx, sessionID, history.Turn{Role: store.RoleAssistant, Content: resp.Message, CreatedAt: now})

	html, err := Render(resp.Message)
	if err != nil {
		s.logger.Warn("rendering reply failed", "error", err)
	}

	return &Reply{
		Message:   resp.Message,
		HTML:      html,
		SessionID: resp.SessionID,
		ImageURL:  imageURL,
		Metadata:  resp.Metadata,
		CreatedAt: now,
	}, nil
}

func (s *Service) uploadImage(ctx context.Context, img *webhook.Image) string {
	if s.images == nil || img == nil || len(img.Data) == 0 {
		return ""
	}
	key := storage.ChatUploadKey(s.now(), img.Filename)
	url, err := s.images.Upload(ctx, key, img.MimeType, img.Data)
	if err != nil {
		s.logger.Warn("storing chat image failed", "key", key, "error", err)
		return ""
	}
	return url
}

func (s *Service) record(ctx context.Context, sessionID string, turn history.Turn) {
	if s.history == nil || sessionID == "" {
		return
	}
	if err := s.history.Append(ctx, sessionID, turn); err != nil {
		s.logger.Warn("recording chat turn failed", "session_id", sessionID, "role", turn.Role, "error", err)
	}
}

// Reset starts a new conversation for visitor and returns its id.
func (s *Service) Reset(ctx context.Context, visitor string) string {
	id := s.hub.Session(visitor).Reset(ctx)
	s.logger.Info("chat session reset", "session_id", id)
	return id
}

// SessionID returns the visitor's current conversation id, if any.
func (s *Service) SessionID(visitor string) (string, bool) {
	session, ok := s.hub.Peek(visitor)
	if !ok {
		return "", false
	}
	return session.CurrentID()
}

// History returns the transcript of the visitor's current conversation.
func (s *Service) History(ctx context.Context, visitor string) ([]history.Turn, error) {
	id, ok := s.SessionID(visitor)
	if !ok || s.history == nil {
		return []history.Turn{}, nil
	}
	turns, err := s.history.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if turns == nil {
		turns = []history.Turn{}
	}
	return turns, nil
}
