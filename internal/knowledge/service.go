// ABOUTME: Knowledge base service: add, delete and list pages and files
// ABOUTME: Dispatches page ingestion to the scrape webhook with its own session

package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/2389/merti-gateway/internal/dedupe"
	"github.com/2389/merti-gateway/internal/scraper"
	"github.com/2389/merti-gateway/internal/store"
	"github.com/2389/merti-gateway/internal/webhook"
)

var (
	// ErrDuplicateLink is returned when the URL is already in the knowledge base.
	ErrDuplicateLink = errors.New("url is already in the knowledge base")

	// ErrInProgress is returned while another request is adding the same URL.
	ErrInProgress = errors.New("url is already being added")

	// ErrIngestFailed wraps a scrape webhook failure when local fallback
	// was not requested.
	ErrIngestFailed = errors.New("scrape webhook failed")
)

// inFlightTTL bounds how long a crashed AddPage can block a URL.
const inFlightTTL = 5 * time.Minute

// Ingester submits a URL to the remote ingestion workflow.
type Ingester interface {
	Scrape(ctx context.Context, s *webhook.Session, url string) (*webhook.NormalizedResponse, error)
}

// Previewer scrapes a page locally.
type Previewer interface {
	Scrape(ctx context.Context, url string) (*scraper.Result, error)
}

// Service implements the knowledge base operations.
type Service struct {
	store    store.Store
	ingest   Ingester
	preview  Previewer
	inflight *dedupe.Cache
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a Service. preview may be nil, in which case Preview
// and ImportFiles are unavailable.
func NewService(s store.Store, ingest Ingester, preview Previewer) *Service {
	return &Service{
		store:    s,
		ingest:   ingest,
		preview:  preview,
		inflight: dedupe.New(inFlightTTL, 1000),
		logger:   slog.Default().With("component", "knowledge"),
		now:      time.Now,
	}
}

// Close stops background cleanup.
func (s *Service) Close() {
	s.inflight.Close()
}

// AddOptions tunes AddPage.
type AddOptions struct {
	// AllowLocal records the page with status "local" when the webhook fails.
	AllowLocal bool
}

// AddResult describes a page that was added.
type AddResult struct {
	Page    *store.Page `json:"page"`
	Message string      `json:"message"`
	// IngestError is set when the page was recorded locally after the
	// webhook failed.
	IngestError string `json:"ingest_error,omitempty"`
}

// AddPage submits rawURL for ingestion and records it.
func (s *Service) AddPage(ctx context.Context, rawURL string, opts AddOptions) (*AddResult, error) {
	link := strings.TrimSpace(rawURL)
	if err := scraper.ValidateURL(link); err != nil {
		return nil, err
	}

	if err := s.checkNotPresent(ctx, link); err != nil {
		return nil, err
	}

	if s.inflight.CheckAndMark(link) {
		return nil, ErrInProgress
	}
	defer s.inflight.Forget(link)

	session := webhook.NewSessionWithID(fmt.Sprintf("scrape_%d", s.now().UnixMilli()))
	page := &store.Page{URL: link, Title: link, Status: store.PageStatusScraped}
	res := &AddResult{Page: page}

	resp, err := s.ingest.Scrape(ctx, session, link)
	if err != nil {
		if !opts.AllowLocal {
			return nil, fmt.Errorf("%w: %w", ErrIngestFailed, err)
		}
		s.logger.Warn("scrape webhook failed, recording page locally", "url", link, "error", err)
		page.Status = store.PageStatusLocal
		res.IngestError = err.Error()
		res.Message = "Page added locally; ingestion did not start."
	} else {
		res.Message = resp.Message
	}

	if err := s.store.AddPage(ctx, page); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateLink
		}
		return nil, fmt.Errorf("recording page: %w", err)
	}

	s.logger.Info("page added", "url", link, "status", page.Status)
	return res, nil
}

func (s *Service) checkNotPresent(ctx context.Context, link string) error {
	_, err := s.store.GetPage(ctx, link)
	switch {
	case err == nil:
		return ErrDuplicateLink
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("looking up page: %w", err)
	}

	docs, err := s.store.ListDocumentsByLink(ctx, link)
	if err != nil {
		return fmt.Errorf("looking up documents: %w", err)
	}
	if len(docs) > 0 {
		return ErrDuplicateLink
	}
	return nil
}

// DeleteResult reports what DeletePage removed.
type DeleteResult struct {
	Documents int64 `json:"documents_deleted"`
	// LocalOnly is set when documents could not be deleted and the page
	// row was removed anyway.
	LocalOnly bool   `json:"local_only"`
	Error     string `json:"error,omitempty"`
}

// DeletePage removes the documents ingested from link and the page row.
// When document deletion fails the page row is kept unless force is set.
func (s *Service) DeletePage(ctx context.Context, link string, force bool) (*DeleteResult, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, scraper.ErrInvalidURL
	}

	res := &DeleteResult{}
	n, err := s.store.DeleteDocumentsByLink(ctx, link)
	if err != nil {
		if !force {
			return nil, fmt.Errorf("deleting documents: %w", err)
		}
		s.logger.Warn("document deletion failed, removing page anyway", "url", link, "error", err)
		res.LocalOnly = true
		res.Error = err.Error()
	}
	res.Documents = n

	if err := s.store.DeletePage(ctx, link); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("deleting page: %w", err)
		}
		if n == 0 && !res.LocalOnly {
			return nil, store.ErrNotFound
		}
	}

	s.logger.Info("page deleted", "url", link, "documents", n, "local_only", res.LocalOnly)
	return res, nil
}

// Pages lists the registered pages, newest first.
func (s *Service) Pages(ctx context.Context) ([]*store.Page, error) {
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []*store.Page{}
	}
	return pages, nil
}

// Documents lists the ingested documents as page links.
func (s *Service) Documents(ctx context.Context) ([]store.PageLink, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return store.PageLinks(docs), nil
}

// Files lists downloadable files known to the knowledge base: file links
// found in ingested documents followed by scraped files not already listed.
func (s *Service) Files(ctx context.Context) ([]store.FileLink, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	files := store.FileLinks(docs)

	scraped, err := s.store.ListScrapedFiles(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.URL] = true
	}
	for _, f := range scraped {
		if seen[f.URL] {
			continue
		}
		seen[f.URL] = true
		files = append(files, store.FileLink{URL: f.URL, Filename: f.Filename, Type: f.Type})
	}
	if files == nil {
		files = []store.FileLink{}
	}
	return files, nil
}

// Summary counts the knowledge base contents.
type Summary struct {
	Pages     int `json:"pages"`
	Files     int `json:"files"`
	Documents int `json:"documents"`
}

// Summary returns page, file and document counts.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	files, err := s.Files(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{Pages: len(pages), Files: len(files), Documents: len(docs)}, nil
}

// ErrPreviewUnavailable is returned when no scraper is configured.
var ErrPreviewUnavailable = errors.New("page preview is not configured")

// Preview scrapes link locally without ingesting it.
func (s *Service) Preview(ctx context.Context, link string) (*scraper.Result, error) {
	if s.preview == nil {
		return nil, ErrPreviewUnavailable
	}
	return s.preview.Scrape(ctx, strings.TrimSpace(link))
}

// ImportFiles previews link and records every file it links to as a
// scraped file. Files already recorded are skipped. It returns the files
// that were added.
func (s *Service) ImportFiles(ctx context.Context, link string) ([]*store.ScrapedFile, error) {
	res, err := s.Preview(ctx, link)
	if err != nil {
		return nil, err
	}

	var files []*store.ScrapedFile
	for _, f := range res.Files {
		exists, err := s.store.ScrapedFileExists(ctx, f.URL)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		files = append(files, &store.ScrapedFile{
			URL:       f.URL,
			Filename:  filenameOf(f.URL),
			Type:      f.FileType,
			SourceURL: res.MainURL,
		})
	}

	if len(files) == 0 {
		return []*store.ScrapedFile{}, nil
	}
	if err := s.store.AddScrapedFiles(ctx, files); err != nil {
		return nil, fmt.Errorf("recording files: %w", err)
	}
	s.logger.Info("imported files", "url", res.MainURL, "count", len(files))
	return files, nil
}

func filenameOf(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return raw
}
