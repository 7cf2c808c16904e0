// ABOUTME: Markdown to HTML rendering for assistant replies
// ABOUTME: Raw HTML in the reply is dropped by the renderer

package chat

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Table))

// Render converts markdown to HTML.
func Render(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
