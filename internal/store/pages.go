// ABOUTME: Persistence for web pages registered in the knowledge base
// ABOUTME: Keyed by URL; records whether the scrape webhook accepted the page

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AddPage records p. Returns ErrDuplicate if the URL is already registered.
func (s *SQLiteStore) AddPage(ctx context.Context, p *Page) error {
	if p.Status != PageStatusScraped && p.Status != PageStatusLocal {
		return fmt.Errorf("%w: page status %q", ErrInvalid, p.Status)
	}
	if p.AddedAt.IsZero() {
		p.AddedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pages (url, title, status, added_at) VALUES (?, ?, ?, ?)`,
		p.URL, p.Title, string(p.Status), formatTime(p.AddedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("page %s: %w", p.URL, ErrDuplicate)
		}
		return fmt.Errorf("inserting page: %w", err)
	}

	s.logger.Debug("added page", "url", p.URL, "status", p.Status)
	return nil
}

// GetPage returns the page registered under url
func (s *SQLiteStore) GetPage(ctx context.Context, url string) (*Page, error) {
	p, err := scanPage(s.db.QueryRowContext(ctx,
		`SELECT url, title, status, added_at FROM pages WHERE url = ?`, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListPages returns all pages, most recently added first
func (s *SQLiteStore) ListPages(ctx context.Context) ([]*Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, title, status, added_at FROM pages ORDER BY added_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating page rows: %w", err)
	}
	return pages, nil
}

// DeletePage removes the page registered under url
func (s *SQLiteStore) DeletePage(ctx context.Context, url string) error {
	return s.deleteOne(ctx, `DELETE FROM pages WHERE url = ?`, url)
}

func scanPage(row rowScanner) (*Page, error) {
	var p Page
	var status, addedAt string
	if err := row.Scan(&p.URL, &p.Title, &status, &addedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning page row: %w", err)
	}
	p.Status = PageStatus(status)

	var err error
	if p.AddedAt, err = parseTime("added_at", addedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
