// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
// Set Err to make every call fail with it.
type MockStore struct {
	mu        sync.RWMutex
	documents []*Document
	files     []*ScrapedFile
	pages     map[string]*Page
	requests  []*Request
	threads   map[string]*Thread    // keyed by session id
	messages  map[string][]*Message // keyed by thread id
	audit     []AuditEntry
	nextID    int64

	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		pages:    make(map[string]*Page),
		threads:  make(map[string]*Thread),
		messages: make(map[string][]*Message),
	}
}

func (m *MockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// ListDocuments returns all documents, newest first.
func (m *MockStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]*Document, 0, len(m.documents))
	for i := len(m.documents) - 1; i >= 0; i-- {
		d := *m.documents[i]
		out = append(out, &d)
	}
	return out, nil
}

// ListDocumentsByLink returns documents for link, newest first.
func (m *MockStore) ListDocumentsByLink(ctx context.Context, link string) ([]*Document, error) {
	all, err := m.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Document
	for _, d := range all {
		if d.Link() == link {
			out = append(out, d)
		}
	}
	return out, nil
}

// CreateDocument stores a document.
func (m *MockStore) CreateDocument(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if len(doc.Metadata) == 0 {
		doc.Metadata = json.RawMessage(`{}`)
	}
	if !json.Valid(doc.Metadata) {
		return fmt.Errorf("%w: metadata is not valid JSON", ErrInvalid)
	}
	doc.ID = m.id()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	d := *doc
	m.documents = append(m.documents, &d)
	return nil
}

// DeleteDocumentsByLink removes documents for link.
func (m *MockStore) DeleteDocumentsByLink(ctx context.Context, link string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	kept := m.documents[:0]
	var n int64
	for _, d := range m.documents {
		if d.Link() == link {
			n++
			continue
		}
		kept = append(kept, d)
	}
	m.documents = kept
	return n, nil
}

// ListScrapedFiles returns all files, newest first.
func (m *MockStore) ListScrapedFiles(ctx context.Context) ([]*ScrapedFile, error) {
	return m.filterFiles(func(*ScrapedFile) bool { return true })
}

// ListScrapedFilesBySource returns files found on sourceURL.
func (m *MockStore) ListScrapedFilesBySource(ctx context.Context, sourceURL string) ([]*ScrapedFile, error) {
	return m.filterFiles(func(f *ScrapedFile) bool { return f.SourceURL == sourceURL })
}

// ListScrapedFilesByType returns files of type t.
func (m *MockStore) ListScrapedFilesByType(ctx context.Context, t FileType) ([]*ScrapedFile, error) {
	return m.filterFiles(func(f *ScrapedFile) bool { return f.Type == t })
}

func (m *MockStore) filterFiles(keep func(*ScrapedFile) bool) ([]*ScrapedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*ScrapedFile
	for i := len(m.files) - 1; i >= 0; i-- {
		if keep(m.files[i]) {
			f := *m.files[i]
			out = append(out, &f)
		}
	}
	return out, nil
}

// AddScrapedFile stores a file.
func (m *MockStore) AddScrapedFile(ctx context.Context, f *ScrapedFile) error {
	return m.AddScrapedFiles(ctx, []*ScrapedFile{f})
}

// AddScrapedFiles stores all files or none.
func (m *MockStore) AddScrapedFiles(ctx context.Context, files []*ScrapedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	seen := make(map[string]bool)
	for _, f := range m.files {
		seen[f.URL] = true
	}
	for _, f := range files {
		if !f.Type.Valid() {
			return fmt.Errorf("%w: file type %q", ErrInvalid, f.Type)
		}
		if seen[f.URL] {
			return fmt.Errorf("scraped file %s: %w", f.URL, ErrDuplicate)
		}
		seen[f.URL] = true
	}

	for _, f := range files {
		f.ID = m.id()
		if f.CreatedAt.IsZero() {
			f.CreatedAt = time.Now().UTC().Truncate(time.Second)
		}
		c := *f
		m.files = append(m.files, &c)
	}
	return nil
}

// UpdateScrapedFile applies u to the file with id.
func (m *MockStore) UpdateScrapedFile(ctx context.Context, id int64, u ScrapedFileUpdate) (*ScrapedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, f := range m.files {
		if f.ID != id {
			continue
		}
		if u.Type != nil && !u.Type.Valid() {
			return nil, fmt.Errorf("%w: file type %q", ErrInvalid, *u.Type)
		}
		if u.URL != nil {
			f.URL = *u.URL
		}
		if u.Filename != nil {
			f.Filename = *u.Filename
		}
		if u.Type != nil {
			f.Type = *u.Type
		}
		if u.SourceURL != nil {
			f.SourceURL = *u.SourceURL
		}
		c := *f
		return &c, nil
	}
	return nil, ErrNotFound
}

// DeleteScrapedFile removes the file with id.
func (m *MockStore) DeleteScrapedFile(ctx context.Context, id int64) error {
	return m.deleteFile(func(f *ScrapedFile) bool { return f.ID == id })
}

// DeleteScrapedFileByURL removes the file with url.
func (m *MockStore) DeleteScrapedFileByURL(ctx context.Context, url string) error {
	return m.deleteFile(func(f *ScrapedFile) bool { return f.URL == url })
}

func (m *MockStore) deleteFile(match func(*ScrapedFile) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i, f := range m.files {
		if match(f) {
			m.files = append(m.files[:i], m.files[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ScrapedFileExists reports whether url is stored.
func (m *MockStore) ScrapedFileExists(ctx context.Context, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return false, m.Err
	}
	for _, f := range m.files {
		if f.URL == url {
			return true, nil
		}
	}
	return false, nil
}

// AddPage stores a page.
func (m *MockStore) AddPage(ctx context.Context, p *Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if p.Status != PageStatusScraped && p.Status != PageStatusLocal {
		return fmt.Errorf("%w: page status %q", ErrInvalid, p.Status)
	}
	if _, ok := m.pages[p.URL]; ok {
		return fmt.Errorf("page %s: %w", p.URL, ErrDuplicate)
	}
	if p.AddedAt.IsZero() {
		p.AddedAt = time.Now().UTC().Truncate(time.Second)
	}
	c := *p
	m.pages[p.URL] = &c
	return nil
}

// GetPage returns the page under url.
func (m *MockStore) GetPage(ctx context.Context, url string) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.pages[url]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

// ListPages returns pages, most recently added first.
func (m *MockStore) ListPages(ctx context.Context) ([]*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]*Page, 0, len(m.pages))
	for _, p := range m.pages {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].URL < out[j].URL
	})
	return out, nil
}

// DeletePage removes the page under url.
func (m *MockStore) DeletePage(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.pages[url]; !ok {
		return ErrNotFound
	}
	delete(m.pages, url)
	return nil
}

// ListRequests returns matching requests, newest first.
func (m *MockStore) ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*Request
	for i := len(m.requests) - 1; i >= 0; i-- {
		r := m.requests[i]
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if f.AddedBy != "" && r.AddedBy != f.AddedBy {
			continue
		}
		c := *r
		out = append(out, &c)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetRequest returns the request with id.
func (m *MockStore) GetRequest(ctx context.Context, id int64) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, r := range m.requests {
		if r.ID == id {
			c := *r
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// CreateRequest stores a request.
func (m *MockStore) CreateRequest(ctx context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: request type %q", ErrInvalid, r.Type)
	}
	r.ID = m.id()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	if r.Status == "" {
		r.Status = "open"
	}
	c := *r
	m.requests = append(m.requests, &c)
	return nil
}

// UpdateRequest applies u to the request with id.
func (m *MockStore) UpdateRequest(ctx context.Context, id int64, u RequestUpdate) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, r := range m.requests {
		if r.ID != id {
			continue
		}
		if u.Type != nil {
			if !u.Type.Valid() {
				return nil, fmt.Errorf("%w: request type %q", ErrInvalid, *u.Type)
			}
			r.Type = *u.Type
		}
		if u.Title != nil {
			r.Title = *u.Title
		}
		if u.Description != nil {
			r.Description = *u.Description
		}
		if u.AddedBy != nil {
			r.AddedBy = *u.AddedBy
		}
		if u.Status != nil {
			r.Status = *u.Status
		}
		c := *r
		return &c, nil
	}
	return nil, ErrNotFound
}

// DeleteRequest removes the request with id.
func (m *MockStore) DeleteRequest(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i, r := range m.requests {
		if r.ID == id {
			m.requests = append(m.requests[:i], m.requests[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// GetOrCreateThread returns the thread for sessionID.
func (m *MockStore) GetOrCreateThread(ctx context.Context, sessionID string) (*Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.threads[sessionID]
	if !ok {
		now := time.Now().UTC().Truncate(time.Second)
		t = &Thread{ID: uuid.NewString(), SessionID: sessionID, CreatedAt: now, UpdatedAt: now}
		m.threads[sessionID] = t
	}
	c := *t
	return &c, nil
}

// SaveMessage appends a message to its thread.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if msg.Role != RoleUser && msg.Role != RoleAssistant {
		return fmt.Errorf("%w: message role %q", ErrInvalid, msg.Role)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	c := *msg
	m.messages[msg.ThreadID] = append(m.messages[msg.ThreadID], &c)
	return nil
}

// GetThreadMessages returns the last limit messages, oldest first.
func (m *MockStore) GetThreadMessages(ctx context.Context, threadID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	msgs := m.messages[threadID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		c := *msg
		out = append(out, &c)
	}
	return out, nil
}

// AppendAuditLog records e in memory.
func (m *MockStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if err := prepareAuditEntry(e); err != nil {
		return err
	}
	m.audit = append(m.audit, *e)
	return nil
}

// ListAuditLog returns matching entries, newest first.
func (m *MockStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	limit := normalizeAuditLimit(f.Limit)
	out := []AuditEntry{}
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if f.matches(&m.audit[i]) {
			out = append(out, m.audit[i])
		}
	}
	return out, nil
}

// Ping returns Err.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Err
}

// Close does nothing.
func (m *MockStore) Close() error {
	return nil
}

var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
