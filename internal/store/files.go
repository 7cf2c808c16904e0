// ABOUTME: Persistence for file links discovered while scraping
// ABOUTME: One row per unique file URL, typed pdf, csv or xlsx

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const scrapedFileColumns = `id, url, filename, type, source_url, created_at`

// ListScrapedFiles returns every scraped file, newest first
func (s *SQLiteStore) ListScrapedFiles(ctx context.Context) ([]*ScrapedFile, error) {
	return s.queryScrapedFiles(ctx, `SELECT `+scrapedFileColumns+` FROM scraped_files ORDER BY created_at DESC, id DESC`)
}

// ListScrapedFilesBySource returns files found on sourceURL, newest first
func (s *SQLiteStore) ListScrapedFilesBySource(ctx context.Context, sourceURL string) ([]*ScrapedFile, error) {
	return s.queryScrapedFiles(ctx, `
		SELECT `+scrapedFileColumns+`
		FROM scraped_files
		WHERE source_url = ?
		ORDER BY created_at DESC, id DESC
	`, sourceURL)
}

// ListScrapedFilesByType returns files of type t, newest first
func (s *SQLiteStore) ListScrapedFilesByType(ctx context.Context, t FileType) ([]*ScrapedFile, error) {
	return s.queryScrapedFiles(ctx, `
		SELECT `+scrapedFileColumns+`
		FROM scraped_files
		WHERE type = ?
		ORDER BY created_at DESC, id DESC
	`, string(t))
}

// AddScrapedFile inserts f and sets its ID and CreatedAt.
// Returns ErrDuplicate if the URL is already recorded.
func (s *SQLiteStore) AddScrapedFile(ctx context.Context, f *ScrapedFile) error {
	return insertScrapedFile(ctx, s.db, f)
}

// AddScrapedFiles inserts all files in one transaction. Nothing is written
// if any insert fails.
func (s *SQLiteStore) AddScrapedFiles(ctx context.Context, files []*ScrapedFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, f := range files {
		if err := insertScrapedFile(ctx, tx, f); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing scraped files: %w", err)
	}
	s.logger.Debug("added scraped files", "count", len(files))
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertScrapedFile(ctx context.Context, db execer, f *ScrapedFile) error {
	if !f.Type.Valid() {
		return fmt.Errorf("%w: file type %q", ErrInvalid, f.Type)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO scraped_files (url, filename, type, source_url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, f.URL, f.Filename, string(f.Type), nullString(f.SourceURL), formatTime(f.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("scraped file %s: %w", f.URL, ErrDuplicate)
		}
		return fmt.Errorf("inserting scraped file: %w", err)
	}

	f.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading scraped file id: %w", err)
	}
	return nil
}

// UpdateScrapedFile applies u to the file with id and returns the result
func (s *SQLiteStore) UpdateScrapedFile(ctx context.Context, id int64, u ScrapedFileUpdate) (*ScrapedFile, error) {
	var sets []string
	var args []any
	if u.URL != nil {
		sets, args = append(sets, "url = ?"), append(args, *u.URL)
	}
	if u.Filename != nil {
		sets, args = append(sets, "filename = ?"), append(args, *u.Filename)
	}
	if u.Type != nil {
		if !u.Type.Valid() {
			return nil, fmt.Errorf("%w: file type %q", ErrInvalid, *u.Type)
		}
		sets, args = append(sets, "type = ?"), append(args, string(*u.Type))
	}
	if u.SourceURL != nil {
		sets, args = append(sets, "source_url = ?"), append(args, nullString(*u.SourceURL))
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			`UPDATE scraped_files SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("scraped file url: %w", ErrDuplicate)
			}
			return nil, fmt.Errorf("updating scraped file: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return nil, fmt.Errorf("getting rows affected: %w", err)
		} else if n == 0 {
			return nil, ErrNotFound
		}
	}

	f, err := scanScrapedFile(s.db.QueryRowContext(ctx,
		`SELECT `+scrapedFileColumns+` FROM scraped_files WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// DeleteScrapedFile removes the file with id
func (s *SQLiteStore) DeleteScrapedFile(ctx context.Context, id int64) error {
	return s.deleteOne(ctx, `DELETE FROM scraped_files WHERE id = ?`, id)
}

// DeleteScrapedFileByURL removes the file with url
func (s *SQLiteStore) DeleteScrapedFileByURL(ctx context.Context, url string) error {
	return s.deleteOne(ctx, `DELETE FROM scraped_files WHERE url = ?`, url)
}

// ScrapedFileExists reports whether url is already recorded
func (s *SQLiteStore) ScrapedFileExists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM scraped_files WHERE url = ?`, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking scraped file: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) deleteOne(ctx context.Context, query string, arg any) error {
	res, err := s.db.ExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("deleting: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) queryScrapedFiles(ctx context.Context, query string, args ...any) ([]*ScrapedFile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scraped files: %w", err)
	}
	defer rows.Close()

	var files []*ScrapedFile
	for rows.Next() {
		f, err := scanScrapedFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scraped file rows: %w", err)
	}
	return files, nil
}

func scanScrapedFile(row rowScanner) (*ScrapedFile, error) {
	var f ScrapedFile
	var fileType, createdAt string
	var source sql.NullString
	if err := row.Scan(&f.ID, &f.URL, &f.Filename, &fileType, &source, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning scraped file row: %w", err)
	}
	f.Type = FileType(fileType)
	f.SourceURL = source.String

	var err error
	if f.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	return &f, nil
}
