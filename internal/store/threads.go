// ABOUTME: Chat transcript persistence keyed by webhook session id
// ABOUTME: One thread per session; messages returned oldest first

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateThread returns the thread for sessionID, creating it on first use
func (s *SQLiteStore) GetOrCreateThread(ctx context.Context, sessionID string) (*Thread, error) {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`, uuid.NewString(), sessionID, now, now)
	if err != nil {
		return nil, fmt.Errorf("upserting thread: %w", err)
	}

	var t Thread
	var createdAt, updatedAt string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, session_id, created_at, updated_at FROM threads WHERE session_id = ?`, sessionID,
	).Scan(&t.ID, &t.SessionID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}

	if t.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveMessage saves a message and bumps its thread's updated_at
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, role, content, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ThreadID, msg.Role, msg.Content, nullString(msg.ImageURL), formatTime(msg.CreatedAt))
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: message role %q", ErrInvalid, msg.Role)
		}
		return fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`, formatTime(msg.CreatedAt), msg.ThreadID); err != nil {
		return fmt.Errorf("touching thread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("saved message", "id", msg.ID, "thread_id", msg.ThreadID, "role", msg.Role)
	return nil
}

// GetThreadMessages retrieves messages for a thread, limited to the most recent `limit` messages.
// Messages are returned in chronological order (oldest first).
// If limit is 0 or negative, all messages are returned.
func (s *SQLiteStore) GetThreadMessages(ctx context.Context, threadID string, limit int) ([]*Message, error) {
	var query string
	var args []any

	if limit > 0 {
		query = `
			SELECT id, thread_id, role, content, image_url, created_at
			FROM (
				SELECT rowid AS seq, id, thread_id, role, content, image_url, created_at
				FROM messages
				WHERE thread_id = ?
				ORDER BY created_at DESC, rowid DESC
				LIMIT ?
			)
			ORDER BY created_at ASC, seq ASC
		`
		args = []any{threadID, limit}
	} else {
		query = `
			SELECT id, thread_id, role, content, image_url, created_at
			FROM messages
			WHERE thread_id = ?
			ORDER BY created_at ASC, rowid ASC
		`
		args = []any{threadID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var createdAt string
		var imageURL sql.NullString

		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.Role, &msg.Content, &imageURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msg.ImageURL = imageURL.String
		if msg.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}
