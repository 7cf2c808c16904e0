// ABOUTME: Admin handlers for scraped files and image storage
// ABOUTME: Files live in the store; images live in the storage bucket

package webadmin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/merti-gateway/internal/storage"
	"github.com/2389/merti-gateway/internal/store"
)

func (a *Admin) handleFilesList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		files []*store.ScrapedFile
		err   error
	)
	switch {
	case q.Get("type") != "":
		t := store.FileType(q.Get("type"))
		if !t.Valid() {
			writeError(w, http.StatusBadRequest, "invalid file type")
			return
		}
		files, err = a.store.ListScrapedFilesByType(r.Context(), t)
	case q.Get("source") != "":
		files, err = a.store.ListScrapedFilesBySource(r.Context(), q.Get("source"))
	default:
		files, err = a.store.ListScrapedFiles(r.Context())
	}
	if err != nil {
		a.writeStoreError(w, err, "files")
		return
	}
	if files == nil {
		files = []*store.ScrapedFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

// handleFilesCreate accepts a single file object or an array of them.
// An array is stored all-or-nothing.
func (a *Admin) handleFilesCreate(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decodeJSON(w, r, &raw) {
		return
	}

	var files []*store.ScrapedFile
	var err error
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &files)
	} else {
		var f store.ScrapedFile
		err = json.Unmarshal(raw, &f)
		files = []*store.ScrapedFile{&f}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files given")
		return
	}

	for _, f := range files {
		if f == nil {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		f.ID = 0
		f.URL = strings.TrimSpace(f.URL)
		if f.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		if f.Type == "" {
			if t, ok := store.FileTypeOf(f.URL); ok {
				f.Type = t
			}
		}
		if f.Filename == "" {
			f.Filename = f.URL[strings.LastIndex(f.URL, "/")+1:]
		}
	}

	if err := a.store.AddScrapedFiles(r.Context(), files); err != nil {
		a.writeStoreError(w, err, "file")
		return
	}
	urls := make([]string, 0, len(files))
	for _, f := range files {
		urls = append(urls, f.URL)
	}
	a.audit(r, store.AuditCreateFiles, "file", strconv.FormatInt(files[0].ID, 10), map[string]any{"urls": urls})
	writeJSON(w, http.StatusCreated, files)
}

func (a *Admin) handleFileUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var u store.ScrapedFileUpdate
	if !decodeJSON(w, r, &u) {
		return
	}
	f, err := a.store.UpdateScrapedFile(r.Context(), id, u)
	if err != nil {
		a.writeStoreError(w, err, "file")
		return
	}
	a.audit(r, store.AuditUpdateFile, "file", strconv.FormatInt(id, 10), nil)
	writeJSON(w, http.StatusOK, f)
}

func (a *Admin) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.store.DeleteScrapedFile(r.Context(), id); err != nil {
		a.writeStoreError(w, err, "file")
		return
	}
	a.audit(r, store.AuditDeleteFile, "file", strconv.FormatInt(id, 10), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *Admin) handleImagesList(w http.ResponseWriter, r *http.Request) {
	if a.images == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}
	objs, err := a.images.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		a.logger.Error("listing images failed", "error", err)
		writeError(w, http.StatusBadGateway, "image storage unavailable")
		return
	}
	if objs == nil {
		objs = []storage.Object{}
	}
	writeJSON(w, http.StatusOK, objs)
}

func (a *Admin) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	if a.images == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if err := a.images.Delete(r.Context(), key); err != nil {
		a.logger.Error("deleting image failed", "key", key, "error", err)
		writeError(w, http.StatusBadGateway, "image storage unavailable")
		return
	}
	a.logger.Info("image deleted", "key", key)
	a.audit(r, store.AuditDeleteImage, "image", key, nil)
	w.WriteHeader(http.StatusNoContent)
}
