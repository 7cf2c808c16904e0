// ABOUTME: Tests for audit log store operations
// ABOUTME: Runs the same Append and List checks against SQLite and MockStore

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditStore interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

func auditBackends(t *testing.T) map[string]auditStore {
	return map[string]auditStore{
		"sqlite": setupTestStore(t),
		"mock":   NewMockStore(),
	}
}

func TestAuditStore_Append(t *testing.T) {
	for name, s := range auditBackends(t) {
		t.Run(name, func(t *testing.T) {
			entry := &AuditEntry{
				Actor:      "admin@merton.example",
				Action:     AuditAddPage,
				TargetType: "page",
				TargetID:   "https://www.merton.gov.uk/bins",
				Detail:     map[string]any{"status": "scraped"},
			}
			require.NoError(t, s.AppendAuditLog(context.Background(), entry))

			assert.NotEmpty(t, entry.ID)
			assert.False(t, entry.Timestamp.IsZero())

			entries, err := s.ListAuditLog(context.Background(), AuditFilter{})
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "admin@merton.example", entries[0].Actor)
			assert.Equal(t, "scraped", entries[0].Detail["status"])
		})
	}
}

func TestAuditStore_RejectsUnknownAction(t *testing.T) {
	for name, s := range auditBackends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.AppendAuditLog(context.Background(), &AuditEntry{Action: "format_disk"})
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestAuditStore_ListFilters(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	seed := []AuditEntry{
		{Action: AuditLogin, TargetType: "session", TargetID: "admin"},
		{Action: AuditAddPage, TargetType: "page", TargetID: "https://a.example"},
		{Action: AuditDeleteFile, TargetType: "file", TargetID: "7"},
		{Action: AuditDeletePage, TargetType: "page", TargetID: "https://a.example"},
	}

	for name, s := range auditBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, e := range seed {
				e := e
				e.Actor = "admin@merton.example"
				e.Timestamp = base.Add(time.Duration(i) * time.Minute)
				require.NoError(t, s.AppendAuditLog(ctx, &e))
			}

			all, err := s.ListAuditLog(ctx, AuditFilter{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, AuditDeletePage, all[0].Action, "newest first")

			pages, err := s.ListAuditLog(ctx, AuditFilter{TargetType: "page", TargetID: "https://a.example"})
			require.NoError(t, err)
			assert.Len(t, pages, 2)

			logins, err := s.ListAuditLog(ctx, AuditFilter{Action: AuditLogin})
			require.NoError(t, err)
			assert.Len(t, logins, 1)

			since := base.Add(2 * time.Minute)
			recent, err := s.ListAuditLog(ctx, AuditFilter{Since: &since})
			require.NoError(t, err)
			assert.Len(t, recent, 2)

			limited, err := s.ListAuditLog(ctx, AuditFilter{Limit: 1})
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})
	}
}

func TestNormalizeAuditLimit(t *testing.T) {
	tests := []struct{ in, want int }{{0, 100}, {-5, 100}, {50, 50}, {5000, 1000}}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAuditLimit(tt.in))
		})
	}
}
