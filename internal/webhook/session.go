// ABOUTME: Conversation session for the chat webhook
// ABOUTME: Obtains an id at most once per generation and masks init failures

package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultInitTimeout bounds the initialization request when the starter
// does not impose its own deadline.
const DefaultInitTimeout = 15 * time.Second

// SessionStarter asks the remote side for a new conversation id.
// An empty id with a nil error means the remote answered without one.
type SessionStarter interface {
	StartSession(ctx context.Context) (string, error)
}

// Session holds the conversation id for one conversation. The zero value is
// not usable; create sessions with NewSession or Client.NewSession.
type Session struct {
	starter     SessionStarter
	initTimeout time.Duration
	logger      *slog.Logger

	mu  sync.Mutex
	id  string
	gen uint64

	inflight singleflight.Group
}

// NewSession creates an empty session that initializes through starter.
func NewSession(starter SessionStarter) *Session {
	return &Session{
		starter:     starter,
		initTimeout: DefaultInitTimeout,
		logger:      slog.Default().With("component", "webhook.session"),
	}
}

// NewSessionWithID creates a session that already carries id and never
// contacts the remote to initialize.
func NewSessionWithID(id string) *Session {
	s := NewSession(nil)
	s.id = id
	return s
}

// CurrentID returns the stored id, if any.
func (s *Session) CurrentID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.id != ""
}

// Adopt stores id when the session has none yet. It never replaces an
// existing id.
func (s *Session) Adopt(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		s.id = id
	}
}

// Initialize returns the session id, obtaining one first if needed.
// Concurrent callers share a single initialization request and observe the
// same id. It never fails: when the remote is unreachable or does not supply
// an id, a local one is synthesized.
func (s *Session) Initialize(ctx context.Context) string {
	s.mu.Lock()
	if s.id != "" {
		id := s.id
		s.mu.Unlock()
		return id
	}
	gen := s.gen
	s.mu.Unlock()

	v, _, _ := s.inflight.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return s.initGeneration(ctx, gen), nil
	})
	return v.(string)
}

// initGeneration runs one initialization for generation gen. A caller that
// read an empty id but reached the flight after an earlier one for the same
// generation finished gets the stored id without a second request.
func (s *Session) initGeneration(ctx context.Context, gen uint64) string {
	s.mu.Lock()
	if s.gen == gen && s.id != "" {
		id := s.id
		s.mu.Unlock()
		return id
	}
	s.mu.Unlock()

	id := s.requestID(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// Reset while we were waiting; the new generation owns s.id.
		return id
	}
	if s.id == "" {
		s.id = id
	}
	return s.id
}

// Reset forgets the current id and initializes a fresh one. The returned id
// always differs from the previous one.
func (s *Session) Reset(ctx context.Context) string {
	s.mu.Lock()
	prev := s.id
	s.id = ""
	s.gen++
	s.mu.Unlock()

	id := s.Initialize(ctx)
	if prev == "" || id != prev {
		return id
	}

	// The remote handed back the id we just discarded.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == prev {
		s.id = newLocalSessionID()
	}
	s.logger.Info("remote reused session id on reset, using local id", "session_id", s.id)
	return s.id
}

func (s *Session) requestID(ctx context.Context) string {
	if s.starter != nil {
		// A caller giving up must not poison the id shared with other callers.
		initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.initTimeout)
		defer cancel()

		id, err := s.starter.StartSession(initCtx)
		switch {
		case err != nil:
			s.logger.Warn("session initialization failed, using local id", "error", err)
		case id != "":
			s.logger.Info("session initialized", "session_id", id)
			return id
		}
	}

	id := newLocalSessionID()
	s.logger.Info("generated local session id", "session_id", id)
	return id
}

// newLocalSessionID returns session_<unix-ms>_<9 random chars>.
func newLocalSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}
