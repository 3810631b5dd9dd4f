// Package markup renders CMS post bodies written in Markdown.
package markup

import (
	"bytes"
	"context"
	"html"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

var (
	ugc    = newUGCPolicy()
	strict = bluemonday.StrictPolicy()
)

func newUGCPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code")
	p.AllowAttrs("loading").Matching(bluemonday.SpaceSeparatedTokens).OnElements("img")
	return p
}

// Markdown returns a component writing the sanitized HTML of content.
func Markdown(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderMarkdown(&buf, content)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderMarkdown converts content to sanitized HTML. Input that fails to
// convert is written escaped.
func RenderMarkdown(buf *bytes.Buffer, content string) {
	var raw bytes.Buffer
	if err := md.Convert([]byte(content), &raw); err != nil {
		buf.WriteString("<p>" + html.EscapeString(content) + "</p>")
		return
	}
	buf.Write(ugc.SanitizeBytes(raw.Bytes()))
}

// HTML returns the sanitized HTML of content.
func HTML(content string) string {
	var buf bytes.Buffer
	RenderMarkdown(&buf, content)
	return buf.String()
}

// PlainText strips all markup from content and collapses whitespace.
func PlainText(content string) string {
	var raw bytes.Buffer
	if err := md.Convert([]byte(content), &raw); err != nil {
		return strings.Join(strings.Fields(content), " ")
	}
	text := html.UnescapeString(strict.Sanitize(raw.String()))
	return strings.Join(strings.Fields(text), " ")
}

// Excerpt returns at most n characters of the plain text of content, cut on a
// word boundary and suffixed with an ellipsis when shortened.
func Excerpt(content string, n int) string {
	text := PlainText(content)
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

// ReadingTime estimates minutes to read content at 200 words a minute, with
// a minimum of one.
func ReadingTime(content string) int {
	words := len(strings.Fields(PlainText(content)))
	m := (words + 199) / 200
	if m < 1 {
		return 1
	}
	return m
}
