// ABOUTME: Admin handlers for the knowledge base
// ABOUTME: Pages, documents, files and local page previews

package webadmin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/2389/merti-gateway/internal/knowledge"
	"github.com/2389/merti-gateway/internal/scraper"
	"github.com/2389/merti-gateway/internal/store"
)

type pageRequest struct {
	URL        string `json:"url"`
	AllowLocal bool   `json:"allow_local"`
}

// writeKBError maps knowledge base errors to HTTP statuses
func (a *Admin) writeKBError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scraper.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, knowledge.ErrDuplicateLink), errors.Is(err, knowledge.ErrInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, knowledge.ErrIngestFailed), errors.Is(err, scraper.ErrAllProxiesFailed):
		a.logger.Warn("knowledge base upstream failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, knowledge.ErrPreviewUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		a.writeStoreError(w, err, "page")
	}
}

func (a *Admin) handleKBSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := a.kb.Summary(r.Context())
	if err != nil {
		a.writeKBError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *Admin) handleKBPages(w http.ResponseWriter, r *http.Request) {
	pages, err := a.kb.Pages(r.Context())
	if err != nil {
		a.writeKBError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (a *Admin) handleKBAddPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.kb.AddPage(r.Context(), req.URL, knowledge.AddOptions{AllowLocal: req.AllowLocal})
	if err != nil {
		a.writeKBError(w, err)
		return
	}
	a.audit(r, store.AuditAddPage, "page", req.URL, map[string]any{"status": string(res.Page.Status)})
	writeJSON(w, http.StatusCreated, res)
}

func (a *Admin) handleKBDeletePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	link := q.Get("url")
	if link == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	force, _ := strconv.ParseBool(q.Get("force"))

	res, err := a.kb.DeletePage(r.Context(), link, force)
	if err != nil {
		a.writeKBError(w, err)
		return
	}
	a.audit(r, store.AuditDeletePage, "page", link, map[string]any{"documents_deleted": res.Documents, "force": force})
	writeJSON(w, http.StatusOK, res)
}

func (a *Admin) handleKBFiles(w http.ResponseWriter, r *http.Request) {
	files, err := a.kb.Files(r.Context())
	if err != nil {
		a.writeKBError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (a *Admin) handleKBImportFiles(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	files, err := a.kb.ImportFiles(r.Context(), req.URL)
	if err != nil {
		a.writeKBError(w, err)
		return
	}
	a.audit(r, store.AuditImportFiles, "page", req.URL, map[string]any{"files": len(files)})
	writeJSON(w, http.StatusOK, files)
}

func (a *Admin) handleKBDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := a.kb.Documents(r.Context())
	if err != nil {
		a.writeKBError(w, err)
		return
	}
	if docs == nil {
		docs = []store.PageLink{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (a *Admin) handleKBPreview(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.kb.Preview(r.Context(), req.URL)
	if err != nil {
		a.writeKBError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
