// ABOUTME: Normalizes heterogeneous webhook response bodies into one message
// ABOUTME: Handles single JSON, NDJSON streams and garbage via ordered rule tables

package webhook

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
)

// NormalizedResponse is the display-ready result of a webhook call.
type NormalizedResponse struct {
	Message   string          `json:"message"`
	SessionID string          `json:"sessionId,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Rule is one row of a field-extraction table. The first rule whose Match
// returns true produces the message.
type Rule struct {
	Name    string
	Match   func(obj gjson.Result) bool
	Extract func(obj gjson.Result) string
}

// Profile bundles the extraction table and literals for one kind of operation.
type Profile struct {
	Name  string
	Rules []Rule

	// Fallback replaces the message when no rule matches.
	Fallback string

	// Streaming enables the NDJSON pass when the body is not a single object.
	Streaming bool

	// Unparsable, when set, is the raw JSON object substituted for a body
	// that is not JSON at all. Valid JSON that is not an object falls
	// through to Fallback.
	Unparsable string
}

// Literals shared by the chat profiles.
const (
	TextApology       = "Sorry, I encountered an error processing your request. Please try again."
	TextFallback      = "No response received from the assistant."
	ImageApology      = "Sorry, I encountered an error processing your image. Please try again."
	ImageFallback     = "Image uploaded successfully, but no response received from the assistant."
	TextImageApology  = "Sorry, I encountered an error processing your message and image. Please try again."
	TextImageFallback = "Message with image sent successfully, but no response received from the assistant."
	ScrapeFallback    = "URL sent for scraping"
	ScrapeInitiated   = "Scraping initiated successfully"
)

// messageFields is the order in which the workflow's text fields are tried.
// It mirrors the node configurations observed in the wild, nothing more.
var messageFields = []string{"output", "content", "message", "response", "text"}

var (
	TextProfile      = chatProfile("text", TextApology, TextFallback)
	ImageProfile     = chatProfile("image", ImageApology, ImageFallback)
	TextImageProfile = chatProfile("text+image", TextImageApology, TextImageFallback)

	ScrapeProfile = Profile{
		Name:       "scrape",
		Rules:      []Rule{fieldRule("message")},
		Fallback:   ScrapeFallback,
		Unparsable: `{"message":"` + ScrapeInitiated + `","success":true}`,
	}
)

func chatProfile(name, apology, fallback string) Profile {
	rules := make([]Rule, 0, len(messageFields)+1)
	rules = append(rules, errorRule(apology))
	for _, f := range messageFields {
		rules = append(rules, fieldRule(f))
	}
	return Profile{
		Name:      name,
		Rules:     rules,
		Fallback:  fallback,
		Streaming: true,
	}
}

// errorRule matches {"type":"error"} regardless of any other field.
func errorRule(apology string) Rule {
	return Rule{
		Name: "error",
		Match: func(obj gjson.Result) bool {
			t := obj.Get("type")
			return t.Type == gjson.String && t.Str == "error"
		},
		Extract: func(gjson.Result) string { return apology },
	}
}

func fieldRule(field string) Rule {
	return Rule{
		Name:    field,
		Match:   func(obj gjson.Result) bool { return truthy(obj.Get(field)) },
		Extract: func(obj gjson.Result) string { return display(obj.Get(field)) },
	}
}

// truthy reports whether a value counts as present: a non-empty string, a
// non-zero number, true, or any object or array.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	case gjson.True, gjson.JSON:
		return true
	default:
		return false
	}
}

func display(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.JSON:
		return r.Raw
	default:
		return r.String()
	}
}

// Normalize converts a raw response body into a NormalizedResponse using the
// given profile. It never fails; Message is never empty.
//
// A body that parses as one JSON object is used as-is. Otherwise, for
// streaming profiles, each non-blank line is parsed on its own: the content
// of every {"type":"item"} line is concatenated in order, and when nothing
// was collected the last parsed line stands in.
func Normalize(raw []byte, p Profile) NormalizedResponse {
	obj, found := canonicalObject(raw, p)
	if !found && p.Unparsable != "" && !gjson.ValidBytes(bytes.TrimSpace(raw)) {
		obj, found = gjson.Parse(p.Unparsable), true
	}

	resp := NormalizedResponse{Message: p.Fallback}
	if !found {
		return resp
	}

	for _, rule := range p.Rules {
		if rule.Match(obj) {
			if msg := rule.Extract(obj); msg != "" {
				resp.Message = msg
			}
			break
		}
	}

	if sid := obj.Get("sessionId"); sid.Type == gjson.String && sid.Str != "" {
		resp.SessionID = sid.Str
	}

	if meta := obj.Get("metadata"); truthy(meta) {
		resp.Metadata = json.RawMessage(meta.Raw)
	} else if obj.Raw != "" {
		resp.Metadata = json.RawMessage(obj.Raw)
	}

	if resp.Message == "" {
		resp.Message = TextFallback
	}
	return resp
}

func canonicalObject(raw []byte, p Profile) (gjson.Result, bool) {
	body := bytes.TrimSpace(raw)
	if gjson.ValidBytes(body) {
		if r := gjson.ParseBytes(body); r.IsObject() {
			return r, true
		}
	}
	if !p.Streaming {
		return gjson.Result{}, false
	}
	return parseStream(body)
}

type streamSummary struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// parseStream reads newline-delimited JSON, skipping malformed lines.
func parseStream(body []byte) (gjson.Result, bool) {
	var (
		buf   strings.Builder
		last  gjson.Result
		found bool
	)

	for i, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			slog.Debug("skipping malformed stream line", "component", "webhook", "line", i+1)
			continue
		}
		r := gjson.Parse(line)
		if r.Get("type").String() == "item" {
			if c := r.Get("content"); truthy(c) {
				buf.WriteString(display(c))
			}
		}
		last, found = r, true
	}

	if buf.Len() > 0 {
		summary, err := json.Marshal(streamSummary{Content: buf.String(), Type: "success"})
		if err == nil {
			return gjson.ParseBytes(summary), true
		}
	}
	return last, found
}
