// ABOUTME: Audit trail helpers and the audit log listing route
// ABOUTME: Every state-changing admin call records who did it and to what

package webadmin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/2389/merti-gateway/internal/auth"
	"github.com/2389/merti-gateway/internal/store"
)

// audit records an admin action. A failed write is logged, never surfaced:
// the action it describes has already happened.
func (a *Admin) audit(r *http.Request, action store.AuditAction, targetType, targetID string, detail map[string]any) {
	actor, _ := auth.SubjectFromContext(r.Context())
	if actor == "" {
		actor = a.config.Email
	}
	e := &store.AuditEntry{
		Actor:      actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Timestamp:  a.now().UTC(),
		Detail:     detail,
	}
	if err := a.store.AppendAuditLog(r.Context(), e); err != nil {
		a.logger.Error("failed to write audit entry", "action", action, "target", targetType+"/"+targetID, "error", err)
	}
}

func (a *Admin) handleAuditList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.AuditFilter{
		Action:     store.AuditAction(q.Get("action")),
		TargetType: q.Get("target_type"),
		TargetID:   q.Get("target_id"),
	}
	if f.Action != "" && !f.Action.Valid() {
		writeError(w, http.StatusBadRequest, "invalid action")
		return
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		f.Since = &since
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	entries, err := a.store.ListAuditLog(r.Context(), f)
	if err != nil {
		a.writeStoreError(w, err, "audit log")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
