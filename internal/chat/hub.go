// ABOUTME: Per-visitor webhook sessions with idle cleanup
// ABOUTME: Sessions are created lazily and removed after the idle timeout

package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/merti-gateway/internal/webhook"
)

// DefaultIdleTimeout is how long an unused visitor session is kept.
const DefaultIdleTimeout = 30 * time.Minute

type visitorSession struct {
	session  *webhook.Session
	lastUsed time.Time
}

// Hub maps visitor ids to webhook sessions.
type Hub struct {
	mu         sync.Mutex
	sessions   map[string]*visitorSession
	newSession func() *webhook.Session
	idle       time.Duration
	now        func() time.Time
	logger     *slog.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a Hub that builds sessions with newSession and starts the
// cleanup loop. A non-positive idle means DefaultIdleTimeout.
func NewHub(newSession func() *webhook.Session, idle time.Duration) *Hub {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		sessions:   make(map[string]*visitorSession),
		newSession: newSession,
		idle:       idle,
		now:        time.Now,
		logger:     slog.Default().With("component", "chat.hub"),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go h.cleanupLoop(ctx, cleanupInterval(idle))
	return h
}

func cleanupInterval(idle time.Duration) time.Duration {
	if iv := idle / 4; iv < time.Minute {
		return iv
	}
	return time.Minute
}

// Session returns the visitor's session, creating it on first use.
func (h *Hub) Session(visitor string) *webhook.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if vs, ok := h.sessions[visitor]; ok {
		vs.lastUsed = h.now()
		return vs.session
	}

	vs := &visitorSession{session: h.newSession(), lastUsed: h.now()}
	h.sessions[visitor] = vs
	return vs.session
}

// Peek returns the visitor's session without creating one.
func (h *Hub) Peek(visitor string) (*webhook.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	vs, ok := h.sessions[visitor]
	if !ok {
		return nil, false
	}
	vs.lastUsed = h.now()
	return vs.session, true
}

// Remove forgets the visitor's session.
func (h *Hub) Remove(visitor string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, visitor)
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupStale()
		}
	}
}

// cleanupStale removes sessions idle for longer than the idle timeout
func (h *Hub) cleanupStale() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	removed := 0
	for visitor, vs := range h.sessions {
		if now.Sub(vs.lastUsed) > h.idle {
			delete(h.sessions, visitor)
			removed++
		}
	}
	if removed > 0 {
		h.logger.Debug("removed idle chat sessions", "count", removed, "remaining", len(h.sessions))
	}
}

// Close stops the cleanup loop. It is safe to call more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}
