// ABOUTME: Document persistence for ingested knowledge base chunks
// ABOUTME: Documents are grouped by the link recorded in their metadata

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const documentColumns = `id, content, metadata_json, created_at`

// ListDocuments returns every document, newest first
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	return s.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY id DESC`)
}

// ListDocumentsByLink returns documents whose metadata.link equals link, newest first
func (s *SQLiteStore) ListDocumentsByLink(ctx context.Context, link string) ([]*Document, error) {
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE json_extract(metadata_json, '$.link') = ?
		ORDER BY id DESC
	`, link)
}

// CreateDocument inserts doc and sets its ID and CreatedAt
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *Document) error {
	meta := doc.Metadata
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	if !json.Valid(meta) {
		return fmt.Errorf("%w: metadata is not valid JSON", ErrInvalid)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (content, metadata_json, created_at) VALUES (?, ?, ?)`,
		doc.Content, string(meta), formatTime(doc.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	doc.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading document id: %w", err)
	}
	doc.Metadata = meta
	return nil
}

// DeleteDocumentsByLink removes every document for link and returns how many went
func (s *SQLiteStore) DeleteDocumentsByLink(ctx context.Context, link string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE json_extract(metadata_json, '$.link') = ?`, link)
	if err != nil {
		return 0, fmt.Errorf("deleting documents: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	s.logger.Debug("deleted documents", "link", link, "count", n)
	return n, nil
}

func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var doc Document
		var meta, createdAt string
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		doc.Metadata = json.RawMessage(meta)
		if doc.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}
