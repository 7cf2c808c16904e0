// ABOUTME: Extracts title, readable text and links from page HTML
// ABOUTME: Uses goquery for the DOM and xurls for file URLs in plain text

package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mvdan/xurls"

	"github.com/2389/merti-gateway/internal/store"
)

// DefaultMaxContent caps Result.Content in characters.
const DefaultMaxContent = 2000

// EmptyContent replaces the content of a page with no substantial text.
const EmptyContent = "Content extracted successfully. Click to view the page."

// minTextLen is the shortest element text kept as content.
const minTextLen = 10

const contentSelector = "p, h1, h2, h3, h4, h5, h6, div, span, article, section"

var whitespace = regexp.MustCompile(`\s+`)

// Link is an outbound link found on a page.
type Link struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	IsFile   bool           `json:"isFile"`
	FileType store.FileType `json:"fileType,omitempty"`
}

// Result is the preview of one page.
type Result struct {
	MainURL string `json:"mainUrl"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Links   []Link `json:"links"`
	Files   []Link `json:"files"`
}

// Extract parses html fetched from pageURL.
func Extract(html, pageURL string, maxContent int) (*Result, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	res := &Result{
		MainURL: pageURL,
		Title:   pageTitle(doc, pageURL),
		Content: pageContent(doc, maxContent),
	}

	var links []Link
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs, err := base.Parse(strings.TrimSpace(href))
		if err != nil || (abs.Scheme != "http" && abs.Scheme != "https") {
			return
		}
		links = append(links, newLink(abs.String(), strings.TrimSpace(a.Text())))
	})

	// File URLs written out in the page text rather than linked.
	for _, raw := range xurls.Strict.FindAllString(doc.Text(), -1) {
		if _, ok := store.FileTypeOf(raw); ok {
			links = append(links, newLink(raw, ""))
		}
	}

	res.Links = dedupe(links)
	res.Files = []Link{}
	for _, l := range res.Links {
		if l.IsFile {
			res.Files = append(res.Files, l)
		}
	}
	return res, nil
}

func newLink(u, title string) Link {
	if title == "" {
		title = u
	}
	ft, isFile := store.FileTypeOf(u)
	l := Link{
		URL:     u,
		Title:   title,
		Content: "Link to: " + title,
		IsFile:  isFile,
	}
	if isFile {
		l.FileType = ft
	}
	return l
}

func pageTitle(doc *goquery.Document, pageURL string) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if seg := pageURL[strings.LastIndex(pageURL, "/")+1:]; seg != "" {
		return seg
	}
	return "Untitled"
}

func pageContent(doc *goquery.Document, maxContent int) string {
	var b strings.Builder
	doc.Find(contentSelector).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len([]rune(text)) > minTextLen {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	})

	content := strings.TrimSpace(whitespace.ReplaceAllString(b.String(), " "))
	if r := []rune(content); len(r) > maxContent {
		content = strings.TrimSpace(string(r[:maxContent]))
	}
	if content == "" {
		return EmptyContent
	}
	return content
}

// dedupe keeps the first link for each URL.
func dedupe(links []Link) []Link {
	seen := make(map[string]bool, len(links))
	out := make([]Link, 0, len(links))
	for _, l := range links {
		if seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		out = append(out, l)
	}
	return out
}
