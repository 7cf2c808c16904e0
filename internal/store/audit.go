// ABOUTME: Audit log entity and store methods for tracking administrative actions
// ABOUTME: Records which admin changed which page, file, request or image

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditLogin         AuditAction = "login"
	AuditAddPage       AuditAction = "add_page"
	AuditDeletePage    AuditAction = "delete_page"
	AuditImportFiles   AuditAction = "import_files"
	AuditCreateFiles   AuditAction = "create_files"
	AuditUpdateFile    AuditAction = "update_file"
	AuditDeleteFile    AuditAction = "delete_file"
	AuditCreateRequest AuditAction = "create_request"
	AuditUpdateRequest AuditAction = "update_request"
	AuditDeleteRequest AuditAction = "delete_request"
	AuditDeleteImage   AuditAction = "delete_image"
)

// ValidAuditActions lists all valid audit actions.
var ValidAuditActions = []AuditAction{
	AuditLogin,
	AuditAddPage,
	AuditDeletePage,
	AuditImportFiles,
	AuditCreateFiles,
	AuditUpdateFile,
	AuditDeleteFile,
	AuditCreateRequest,
	AuditUpdateRequest,
	AuditDeleteRequest,
	AuditDeleteImage,
}

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	for _, v := range ValidAuditActions {
		if a == v {
			return true
		}
	}
	return false
}

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"` // admin email
	Action     AuditAction    `json:"action"`
	TargetType string         `json:"target_type"` // "page", "file", "request", "image", "session"
	TargetID   string         `json:"target_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since      *time.Time
	Action     AuditAction
	TargetType string
	TargetID   string
	Limit      int // default 100, max 1000
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// matches reports whether e passes every set field of f.
func (f AuditFilter) matches(e *AuditEntry) bool {
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.TargetType != "" && e.TargetType != f.TargetType {
		return false
	}
	if f.TargetID != "" && e.TargetID != f.TargetID {
		return false
	}
	return true
}

// prepareAuditEntry validates e and fills ID and Timestamp when unset.
func prepareAuditEntry(e *AuditEntry) error {
	if !e.Action.Valid() {
		return fmt.Errorf("%w: audit action %q", ErrInvalid, e.Action)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return nil
}

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if err := prepareAuditEntry(e); err != nil {
		return err
	}

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, actor, action, target_type, target_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Actor,
		e.Action,
		e.TargetType,
		e.TargetID,
		formatTime(e.Timestamp),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"actor", e.Actor,
		"action", e.Action,
		"target", e.TargetType+"/"+e.TargetID,
	)
	return nil
}

const auditLogQuery = `
	SELECT audit_id, actor, action, target_type, target_id, ts, detail_json
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? = '' OR action = ?)
	  AND (? = '' OR target_type = ?)
	  AND (? = '' OR target_id = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter criteria,
// newest first.
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var since *string
	if f.Since != nil {
		v := formatTime(*f.Since)
		since = &v
	}
	action := string(f.Action)

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		since, since,
		action, action,
		f.TargetType, f.TargetType,
		f.TargetID, f.TargetID,
		normalizeAuditLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []AuditEntry{}
	for rows.Next() {
		var (
			e          AuditEntry
			ts         string
			detailJSON *string
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.TargetType, &e.TargetID, &ts, &detailJSON); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if e.Timestamp, err = parseTime("ts", ts); err != nil {
			return nil, err
		}
		if detailJSON != nil {
			if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshaling detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}
