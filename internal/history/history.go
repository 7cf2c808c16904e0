// ABOUTME: Transcript interface shared by the chat service and its backends
// ABOUTME: Turns are appended per session id and listed oldest first

package history

import (
	"context"
	"time"
)

// Turn is one side of a chat exchange.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// History stores chat turns keyed by session id.
type History interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	List(ctx context.Context, sessionID string) ([]Turn, error)
}
