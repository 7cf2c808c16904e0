// ABOUTME: Pure helpers deriving knowledge base views from documents
// ABOUTME: Unique links, file links and page links, each first occurrence wins

package store

import (
	"strings"
)

// FileLink is a document link that points at a downloadable file
type FileLink struct {
	URL      string   `json:"url"`
	Filename string   `json:"filename"`
	Type     FileType `json:"type"`
}

// PageLink is a document link that points at an ordinary web page
type PageLink struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// pageContentPlaceholder stands in for a document with no content
const pageContentPlaceholder = "Content from database"

// FileTypeOf classifies url by the text after its last dot, ignoring any
// query string. It returns false for anything but pdf, csv and xlsx.
func FileTypeOf(url string) (FileType, bool) {
	lower := strings.ToLower(url)
	ext := lower[strings.LastIndex(lower, ".")+1:]
	if i := strings.IndexByte(ext, '?'); i >= 0 {
		ext = ext[:i]
	}
	t := FileType(ext)
	return t, t.Valid()
}

// lastSegment returns the text after the final slash
func lastSegment(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

// UniqueLinks returns the distinct metadata links of docs in first-seen order
func UniqueLinks(docs []*Document) []string {
	seen := make(map[string]bool)
	var links []string
	for _, d := range docs {
		link := d.Link()
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links
}

// FileLinks returns the distinct links of docs that point at known file types
func FileLinks(docs []*Document) []FileLink {
	seen := make(map[string]bool)
	var out []FileLink
	for _, d := range docs {
		link := d.Link()
		if link == "" || seen[link] {
			continue
		}
		t, ok := FileTypeOf(link)
		if !ok {
			continue
		}
		seen[link] = true

		name := lastSegment(link)
		if name == "" {
			name = "Unknown"
		}
		out = append(out, FileLink{URL: link, Filename: name, Type: t})
	}
	return out
}

// PageLinks returns the distinct links of docs that are not files. Content is
// taken from the first document seen for each link.
func PageLinks(docs []*Document) []PageLink {
	seen := make(map[string]bool)
	var out []PageLink
	for _, d := range docs {
		link := d.Link()
		if link == "" || seen[link] {
			continue
		}
		if _, ok := FileTypeOf(link); ok {
			continue
		}
		seen[link] = true

		title := lastSegment(link)
		if title == "" {
			title = link
		}
		content := d.Content
		if content == "" {
			content = pageContentPlaceholder
		}
		out = append(out, PageLink{URL: link, Title: title, Content: content})
	}
	return out
}
