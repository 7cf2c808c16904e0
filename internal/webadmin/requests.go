// ABOUTME: Admin handlers for resident requests and dashboard statistics
// ABOUTME: Requests are read and edited through the store; photos come from storage

package webadmin

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/merti-gateway/internal/storage"
	"github.com/2389/merti-gateway/internal/store"
)

// pathID parses the {id} path value, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (a *Admin) handleStats(w http.ResponseWriter, r *http.Request) {
	reqs, err := a.store.ListRequests(r.Context(), store.RequestFilter{})
	if err != nil {
		a.writeStoreError(w, err, "requests")
		return
	}
	writeJSON(w, http.StatusOK, store.ComputeDashboardStats(reqs))
}

func (a *Admin) handleRequestsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RequestFilter{
		Type:    store.RequestType(q.Get("type")),
		AddedBy: q.Get("addedby"),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(w, http.StatusBadRequest, "invalid request type")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	a.listRequests(w, r, filter)
}

func (a *Admin) handleIssues(w http.ResponseWriter, r *http.Request) {
	a.listRequests(w, r, store.RequestFilter{Type: store.RequestTypeIssues})
}

func (a *Admin) listRequests(w http.ResponseWriter, r *http.Request, filter store.RequestFilter) {
	reqs, err := a.store.ListRequests(r.Context(), filter)
	if err != nil {
		a.writeStoreError(w, err, "requests")
		return
	}
	if reqs == nil {
		reqs = []*store.Request{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (a *Admin) handleRequestCreate(w http.ResponseWriter, r *http.Request) {
	var req store.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = 0
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, "invalid request type")
		return
	}

	if err := a.store.CreateRequest(r.Context(), &req); err != nil {
		a.writeStoreError(w, err, "request")
		return
	}
	a.logger.Info("request created", "id", req.ID, "type", req.Type)
	a.audit(r, store.AuditCreateRequest, "request", strconv.FormatInt(req.ID, 10), map[string]any{"type": string(req.Type)})
	writeJSON(w, http.StatusCreated, req)
}

func (a *Admin) handleRequestGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := a.store.GetRequest(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err, "request")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (a *Admin) handleRequestUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var u store.RequestUpdate
	if !decodeJSON(w, r, &u) {
		return
	}
	if u.Type != nil && !u.Type.Valid() {
		writeError(w, http.StatusBadRequest, "invalid request type")
		return
	}

	req, err := a.store.UpdateRequest(r.Context(), id, u)
	if err != nil {
		a.writeStoreError(w, err, "request")
		return
	}
	a.audit(r, store.AuditUpdateRequest, "request", strconv.FormatInt(id, 10), nil)
	writeJSON(w, http.StatusOK, req)
}

func (a *Admin) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.store.DeleteRequest(r.Context(), id); err != nil {
		a.writeStoreError(w, err, "request")
		return
	}
	a.logger.Info("request deleted", "id", id)
	a.audit(r, store.AuditDeleteRequest, "request", strconv.FormatInt(id, 10), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *Admin) handleRequestImages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if a.images == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}
	objs, err := a.images.ImagesForRequest(r.Context(), id)
	if err != nil {
		a.logger.Error("listing request images failed", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "image storage unavailable")
		return
	}
	if objs == nil {
		objs = []storage.Object{}
	}
	writeJSON(w, http.StatusOK, objs)
}
