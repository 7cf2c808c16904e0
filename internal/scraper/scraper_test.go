// ABOUTME: Tests for the proxy chain and page extraction
// ABOUTME: Proxies are httptest servers; pages are inline HTML

package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/merti-gateway/internal/store"
)

const samplePage = `<!doctype html>
<html>
<head><title> Waste Collection </title><script>var ignored = "script text that is long";</script></head>
<body>
<h1>Bins</h1>
<p>Black bins are collected every Tuesday morning.</p>
<p>short</p>
<a href="/guides/recycling">Recycling guide</a>
<a href="https://example.org/calendar.pdf">Calendar</a>
<a href="/data/rounds.csv?v=2"></a>
<a href="mailto:council@example.org">Email us</a>
<a href="/guides/recycling">Duplicate</a>
<p>Full schedule also at https://files.example.org/schedule.xlsx for download.</p>
</body>
</html>`

func TestExtract(t *testing.T) {
	res, err := Extract(samplePage, "https://example.org/waste/bins", DefaultMaxContent)
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/waste/bins", res.MainURL)
	assert.Equal(t, "Waste Collection", res.Title)
	assert.Contains(t, res.Content, "Black bins are collected every Tuesday morning.")
	assert.NotContains(t, res.Content, "script text")
	assert.NotContains(t, res.Content, "\n")

	urls := make([]string, 0, len(res.Links))
	for _, l := range res.Links {
		urls = append(urls, l.URL)
	}
	assert.Equal(t, []string{
		"https://example.org/guides/recycling",
		"https://example.org/calendar.pdf",
		"https://example.org/data/rounds.csv?v=2",
		"https://files.example.org/schedule.xlsx",
	}, urls)

	assert.Equal(t, "Recycling guide", res.Links[0].Title)
	assert.Equal(t, "Link to: Recycling guide", res.Links[0].Content)
	assert.False(t, res.Links[0].IsFile)

	require.Len(t, res.Files, 3)
	assert.Equal(t, store.FileTypePDF, res.Files[0].FileType)
	assert.Equal(t, store.FileTypeCSV, res.Files[1].FileType)
	assert.Equal(t, "https://example.org/data/rounds.csv?v=2", res.Files[1].Title)
	assert.Equal(t, store.FileTypeXLSX, res.Files[2].FileType)
}

func TestExtract_TitleFallbacks(t *testing.T) {
	tests := []struct {
		name string
		html string
		url  string
		want string
	}{
		{"h1", `<h1>Heading</h1>`, "https://example.org/a", "Heading"},
		{"path segment", `<p>nothing</p>`, "https://example.org/about-us", "about-us"},
		{"untitled", `<p>nothing</p>`, "https://example.org/", "Untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Extract(tt.html, tt.url, DefaultMaxContent)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Title)
		})
	}
}

func TestExtract_EmptyContent(t *testing.T) {
	res, err := Extract(`<html><body><p>tiny</p></body></html>`, "https://example.org/x", DefaultMaxContent)
	require.NoError(t, err)
	assert.Equal(t, EmptyContent, res.Content)
	assert.Empty(t, res.Links)
	assert.NotNil(t, res.Files)
}

func TestExtract_Truncates(t *testing.T) {
	html := "<p>" + strings.Repeat("é", 50) + "</p>"
	res, err := Extract(html, "https://example.org/x", 20)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 20), res.Content)
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://example.org/page"))
	assert.NoError(t, ValidateURL("http://example.org"))
	for _, bad := range []string{"", "example.org", "ftp://example.org", "https://", "javascript:alert(1)"} {
		assert.ErrorIs(t, ValidateURL(bad), ErrInvalidURL, bad)
	}
}

func TestProxy_Expand(t *testing.T) {
	p := Proxy{Template: "https://proxy.test/get?url={url}", Kind: ProxyJSON}
	assert.Equal(t, "https://proxy.test/get?url=https%3A%2F%2Fexample.org%2Fa%3Fb%3Dc", p.Expand("https://example.org/a?b=c"))
}

func TestScrape_FallsThroughProxies(t *testing.T) {
	var failed, jsonHits, rawHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			failed.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		case "/json":
			jsonHits.Add(1)
			assert.Equal(t, "https://example.org/waste/bins", r.URL.Query().Get("url"))
			_ = json.NewEncoder(w).Encode(map[string]string{"contents": samplePage})
		case "/raw":
			rawHits.Add(1)
			_, _ = w.Write([]byte(samplePage))
		}
	}))
	defer srv.Close()

	s := New(Config{Proxies: []Proxy{
		{Template: srv.URL + "/broken?url={url}", Kind: ProxyRaw},
		{Template: srv.URL + "/json?url={url}", Kind: ProxyJSON},
		{Template: srv.URL + "/raw?url={url}", Kind: ProxyRaw},
	}})

	res, err := s.Scrape(context.Background(), "https://example.org/waste/bins")
	require.NoError(t, err)
	assert.Equal(t, "Waste Collection", res.Title)
	assert.EqualValues(t, 1, failed.Load())
	assert.EqualValues(t, 1, jsonHits.Load())
	assert.EqualValues(t, 0, rawHits.Load())
}

func TestScrape_AllProxiesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/json" {
			_, _ = w.Write([]byte(`{"status":"no contents"}`))
			return
		}
		if r.URL.Path == "/slow" {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(Config{
		AttemptTimeout: 50 * time.Millisecond,
		Proxies: []Proxy{
			{Template: srv.URL + "/json?url={url}", Kind: ProxyJSON},
			{Template: srv.URL + "/slow?url={url}", Kind: ProxyRaw},
			{Template: srv.URL + "/missing?url={url}", Kind: ProxyRaw},
		},
	})

	_, err := s.Scrape(context.Background(), "https://example.org/")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProxiesFailed)
	assert.Contains(t, err.Error(), "proxy 0")
	assert.Contains(t, err.Error(), "proxy 2")
}

func TestScrape_RejectsInvalidURL(t *testing.T) {
	s := New(Config{Proxies: []Proxy{{Template: "http://unused/{url}", Kind: ProxyRaw}}})
	_, err := s.Scrape(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestScrape_NoProxies(t *testing.T) {
	_, err := New(Config{}).Scrape(context.Background(), "https://example.org")
	assert.ErrorIs(t, err, ErrAllProxiesFailed)
}
