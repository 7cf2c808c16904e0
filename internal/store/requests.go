// ABOUTME: Persistence for resident requests logged by the assistant
// ABOUTME: CRUD plus filtered listing for the admin dashboard

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const requestColumns = `id, type, title, description, addedby, status, created_at`

// ListRequests returns requests matching f, newest first
func (s *SQLiteStore) ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	var where []string
	var args []any
	if f.Type != "" {
		where, args = append(where, "type = ?"), append(args, string(f.Type))
	}
	if f.AddedBy != "" {
		where, args = append(where, "addedby = ?"), append(args, f.AddedBy)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating request rows: %w", err)
	}
	return out, nil
}

// GetRequest returns the request with id
func (s *SQLiteStore) GetRequest(ctx context.Context, id int64) (*Request, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// CreateRequest inserts r and sets its ID and CreatedAt
func (s *SQLiteStore) CreateRequest(ctx context.Context, r *Request) error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: request type %q", ErrInvalid, r.Type)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	if r.Status == "" {
		r.Status = "open"
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (type, title, description, addedby, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(r.Type), r.Title, nullString(r.Description), r.AddedBy, r.Status, formatTime(r.CreatedAt))
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return fmt.Errorf("inserting request: %w", err)
	}

	r.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading request id: %w", err)
	}
	s.logger.Debug("created request", "id", r.ID, "type", r.Type)
	return nil
}

// UpdateRequest applies u to the request with id and returns the result
func (s *SQLiteStore) UpdateRequest(ctx context.Context, id int64, u RequestUpdate) (*Request, error) {
	var sets []string
	var args []any
	if u.Type != nil {
		if !u.Type.Valid() {
			return nil, fmt.Errorf("%w: request type %q", ErrInvalid, *u.Type)
		}
		sets, args = append(sets, "type = ?"), append(args, string(*u.Type))
	}
	if u.Title != nil {
		sets, args = append(sets, "title = ?"), append(args, *u.Title)
	}
	if u.Description != nil {
		sets, args = append(sets, "description = ?"), append(args, nullString(*u.Description))
	}
	if u.AddedBy != nil {
		sets, args = append(sets, "addedby = ?"), append(args, *u.AddedBy)
	}
	if u.Status != nil {
		sets, args = append(sets, "status = ?"), append(args, *u.Status)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			`UPDATE requests SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("updating request: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return nil, fmt.Errorf("getting rows affected: %w", err)
		} else if n == 0 {
			return nil, ErrNotFound
		}
	}

	return s.GetRequest(ctx, id)
}

// DeleteRequest removes the request with id
func (s *SQLiteStore) DeleteRequest(ctx context.Context, id int64) error {
	return s.deleteOne(ctx, `DELETE FROM requests WHERE id = ?`, id)
}

func scanRequest(row rowScanner) (*Request, error) {
	var r Request
	var reqType, createdAt string
	var desc sql.NullString
	if err := row.Scan(&r.ID, &reqType, &r.Title, &desc, &r.AddedBy, &r.Status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning request row: %w", err)
	}
	r.Type = RequestType(reqType)
	r.Description = desc.String

	var err error
	if r.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}
