// ABOUTME: History backed by the SQLite threads and messages tables
// ABOUTME: One thread per session id, created on first append

package history

import (
	"context"
	"fmt"

	"github.com/2389/merti-gateway/internal/store"
)

// StoreHistory persists turns through a store.Store.
type StoreHistory struct {
	store store.Store
	limit int
}

// NewStoreHistory creates a StoreHistory. List returns at most limit turns;
// zero means all.
func NewStoreHistory(s store.Store, limit int) *StoreHistory {
	return &StoreHistory{store: s, limit: limit}
}

// Append records turn under sessionID.
func (h *StoreHistory) Append(ctx context.Context, sessionID string, turn Turn) error {
	thread, err := h.store.GetOrCreateThread(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading thread: %w", err)
	}

	msg := &store.Message{
		ThreadID:  thread.ID,
		Role:      turn.Role,
		Content:   turn.Content,
		ImageURL:  turn.ImageURL,
		CreatedAt: turn.CreatedAt,
	}
	if err := h.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("saving turn: %w", err)
	}
	return nil
}

// List returns the turns for sessionID, oldest first.
func (h *StoreHistory) List(ctx context.Context, sessionID string) ([]Turn, error) {
	thread, err := h.store.GetOrCreateThread(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading thread: %w", err)
	}

	msgs, err := h.store.GetThreadMessages(ctx, thread.ID, h.limit)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}

	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{
			Role:      m.Role,
			Content:   m.Content,
			ImageURL:  m.ImageURL,
			CreatedAt: m.CreatedAt,
		})
	}
	return turns, nil
}
