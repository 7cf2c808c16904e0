// ABOUTME: Store interface and data types for merti-gateway persistence
// ABOUTME: Knowledge base documents, scraped files, pages, requests and chat transcripts

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique column already holds the value
var ErrDuplicate = errors.New("already exists")

// ErrInvalid is returned when a value violates a column constraint
var ErrInvalid = errors.New("invalid value")

// FileType is a downloadable file type tracked by the knowledge base
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeCSV  FileType = "csv"
	FileTypeXLSX FileType = "xlsx"
)

// Valid reports whether t is one of the known file types
func (t FileType) Valid() bool {
	switch t {
	case FileTypePDF, FileTypeCSV, FileTypeXLSX:
		return true
	}
	return false
}

// Document is one chunk of ingested knowledge. Metadata is whatever the
// ingestion workflow wrote; the link field names the source page or file.
type Document struct {
	ID        int64           `json:"id"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// Link returns metadata.link when it is a non-empty string
func (d *Document) Link() string {
	link := gjson.GetBytes(d.Metadata, "link")
	if link.Type != gjson.String {
		return ""
	}
	return link.Str
}

// ScrapedFile is a file link discovered while scraping a page
type ScrapedFile struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	Type      FileType  `json:"type"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ScrapedFileUpdate holds the fields to change; nil means unchanged
type ScrapedFileUpdate struct {
	URL       *string   `json:"url,omitempty"`
	Filename  *string   `json:"filename,omitempty"`
	Type      *FileType `json:"type,omitempty"`
	SourceURL *string   `json:"source_url,omitempty"`
}

// PageStatus records how a knowledge base page was added
type PageStatus string

const (
	// PageStatusScraped means the scrape webhook accepted the page
	PageStatusScraped PageStatus = "scraped"
	// PageStatusLocal means the page was recorded without the webhook
	PageStatusLocal PageStatus = "local"
)

// Page is a web page registered in the knowledge base
type Page struct {
	URL     string     `json:"url"`
	Title   string     `json:"title"`
	Status  PageStatus `json:"status"`
	AddedAt time.Time  `json:"added_at"`
}

// RequestType is the category of a resident request
type RequestType string

const (
	RequestTypeForms    RequestType = "forms"
	RequestTypeIssues   RequestType = "issues"
	RequestTypeServices RequestType = "services"
)

// Valid reports whether t is one of the known request types
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeForms, RequestTypeIssues, RequestTypeServices:
		return true
	}
	return false
}

// Request is a resident request logged by the assistant workflow
type Request struct {
	ID          int64       `json:"id"`
	Type        RequestType `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	AddedBy     string      `json:"addedby"`
	Status      string      `json:"status,omitempty"`
	CreatedAt   time.Time   `json:"createdat"`
}

// RequestFilter narrows ListRequests. Zero values mean no filter.
type RequestFilter struct {
	Type    RequestType
	AddedBy string
	Limit   int
}

// RequestUpdate holds the fields to change; nil means unchanged
type RequestUpdate struct {
	Type        *RequestType `json:"type,omitempty"`
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	AddedBy     *string      `json:"addedby,omitempty"`
	Status      *string      `json:"status,omitempty"`
}

// Thread is the chat transcript for one webhook session id
type Thread struct {
	ID        string
	SessionID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn within a thread
type Message struct {
	ID        string
	ThreadID  string
	Role      string
	Content   string
	ImageURL  string
	CreatedAt time.Time
}

// Store defines the persistence operations used by the gateway
type Store interface {
	// Documents
	ListDocuments(ctx context.Context) ([]*Document, error)
	ListDocumentsByLink(ctx context.Context, link string) ([]*Document, error)
	CreateDocument(ctx context.Context, doc *Document) error
	DeleteDocumentsByLink(ctx context.Context, link string) (int64, error)

	// Scraped files
	ListScrapedFiles(ctx context.Context) ([]*ScrapedFile, error)
	ListScrapedFilesBySource(ctx context.Context, sourceURL string) ([]*ScrapedFile, error)
	ListScrapedFilesByType(ctx context.Context, t FileType) ([]*ScrapedFile, error)
	AddScrapedFile(ctx context.Context, f *ScrapedFile) error
	AddScrapedFiles(ctx context.Context, files []*ScrapedFile) error
	UpdateScrapedFile(ctx context.Context, id int64, u ScrapedFileUpdate) (*ScrapedFile, error)
	DeleteScrapedFile(ctx context.Context, id int64) error
	DeleteScrapedFileByURL(ctx context.Context, url string) error
	ScrapedFileExists(ctx context.Context, url string) (bool, error)

	// Knowledge base pages
	AddPage(ctx context.Context, p *Page) error
	GetPage(ctx context.Context, url string) (*Page, error)
	ListPages(ctx context.Context) ([]*Page, error)
	DeletePage(ctx context.Context, url string) error

	// Requests
	ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error)
	GetRequest(ctx context.Context, id int64) (*Request, error)
	CreateRequest(ctx context.Context, r *Request) error
	UpdateRequest(ctx context.Context, id int64, u RequestUpdate) (*Request, error)
	DeleteRequest(ctx context.Context, id int64) error

	// Chat transcripts
	GetOrCreateThread(ctx context.Context, sessionID string) (*Thread, error)
	SaveMessage(ctx context.Context, msg *Message) error
	GetThreadMessages(ctx context.Context, threadID string, limit int) ([]*Message, error)

	// Admin audit trail
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)

	// Ping checks the database is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
