// Package render turns an ordered slice of content blocks into article HTML.
//
// Rendering is total: every recognized block type produces markup or nothing,
// unknown types are skipped, and no input makes it panic. A Renderer holds no
// mutable state and may be shared across goroutines.
package render

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/kalam-press/kalam/content"
)

// DefaultPlaceholder is shown when a document has no blocks.
const DefaultPlaceholder = "No content available for this blog post."

// FaviconLookup maps a hostname to a favicon image URL.
type FaviconLookup interface {
	FaviconURL(host string) string
}

// GoogleFavicons resolves favicons through Google's public s2 service.
type GoogleFavicons struct{}

// FaviconURL implements FaviconLookup.
func (GoogleFavicons) FaviconURL(host string) string {
	return "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(host)
}

// Renderer writes blocks as HTML.
type Renderer struct {
	favicons    FaviconLookup
	placeholder string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFavicons sets the favicon collaborator used by compact link rows.
func WithFavicons(f FaviconLookup) Option {
	return func(r *Renderer) {
		if f != nil {
			r.favicons = f
		}
	}
}

// WithPlaceholder sets the text shown for an empty document.
func WithPlaceholder(text string) Option {
	return func(r *Renderer) {
		if text != "" {
			r.placeholder = text
		}
	}
}

// New returns a Renderer using GoogleFavicons and DefaultPlaceholder unless overridden.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		favicons:    GoogleFavicons{},
		placeholder: DefaultPlaceholder,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Component returns a templ.Component that renders blocks.
func (r *Renderer) Component(blocks []content.Block) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		r.Render(&buf, blocks)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// HTML renders blocks to a string.
func (r *Renderer) HTML(blocks []content.Block) string {
	var buf bytes.Buffer
	r.Render(&buf, blocks)
	return buf.String()
}

// Render writes the HTML for blocks to buf, in input order.
func (r *Renderer) Render(buf *bytes.Buffer, blocks []content.Block) {
	buf.WriteString(`<div class="prose">`)
	if len(blocks) == 0 {
		buf.WriteString(`<div class="content-empty"><p>`)
		buf.WriteString(html.EscapeString(r.placeholder))
		buf.WriteString(`</p></div></div>`)
		return
	}
	for _, b := range blocks {
		r.renderBlock(buf, b)
	}
	buf.WriteString(`</div>`)
}

func (r *Renderer) renderBlock(buf *bytes.Buffer, block content.Block) {
	switch b := block.(type) {
	case content.Paragraph:
		if href, ok := b.LinkOnly(); ok {
			r.renderLink(buf, href, b.Preview)
			return
		}
		textBlock(buf, "<p>", "</p>", b.RichText)
	case content.Heading:
		switch b.Kind() {
		case content.KindHeading2:
			textBlock(buf, "<h2>", "</h2>", b.RichText)
		case content.KindHeading3:
			textBlock(buf, "<h3>", "</h3>", b.RichText)
		default:
			textBlock(buf, "<h1>", "</h1>", b.RichText)
		}
	case content.BulletedListItem:
		// Each item is its own list; consecutive items are not merged.
		textBlock(buf, "<ul><li>", "</li></ul>", b.RichText)
	case content.NumberedListItem:
		textBlock(buf, "<ol><li>", "</li></ol>", b.RichText)
	case content.Quote:
		textBlock(buf, "<blockquote><p>", "</p></blockquote>", b.RichText)
	case content.Callout:
		icon := b.Icon
		if icon == "" {
			icon = "💡"
		}
		textBlock(buf, `<div class="callout"><span class="callout-icon">`+html.EscapeString(icon)+`</span><div class="callout-body">`, `</div></div>`, b.RichText)
	case content.Code:
		if len(b.RichText) == 0 {
			return
		}
		buf.WriteString(`<pre class="code-block"><code`)
		if lang := strings.TrimSpace(b.Language); lang != "" {
			buf.WriteString(` class="language-` + html.EscapeString(lang) + `"`)
		}
		buf.WriteString(`>`)
		buf.WriteString(html.EscapeString(b.RichText[0].Text))
		buf.WriteString(`</code></pre>`)
	case content.Image:
		r.renderImage(buf, b)
	case content.Video:
		r.renderPlayable(buf, b.Media.Resolved(), b.Preview)
	case content.Embed:
		r.renderPlayable(buf, b.Media.Resolved(), b.Preview)
	case content.Bookmark:
		if u := b.Media.Resolved(); u != "" {
			r.renderLink(buf, u, b.Preview)
		}
	case content.Divider:
		buf.WriteString(`<hr/>`)
	}
}

// textBlock wraps the rendered spans in open/close; blocks with no spans
// produce nothing.
func textBlock(buf *bytes.Buffer, open, close string, spans []content.Span) {
	if len(spans) == 0 {
		return
	}
	buf.WriteString(open)
	for _, s := range spans {
		buf.WriteString(FormatSpan(s))
	}
	buf.WriteString(close)
}

// FormatSpan renders one span: annotations are nested innermost-first in the
// order bold, italic, strikethrough, underline, code; a link wraps them all.
func FormatSpan(s content.Span) string {
	out := html.EscapeString(s.Text)
	a := s.Annotations
	if a.Bold {
		out = "<strong>" + out + "</strong>"
	}
	if a.Italic {
		out = "<em>" + out + "</em>"
	}
	if a.Strikethrough {
		out = "<del>" + out + "</del>"
	}
	if a.Underline {
		out = "<u>" + out + "</u>"
	}
	if a.Code {
		out = `<code class="inline-code">` + out + "</code>"
	}
	if s.Href != "" {
		if href := SafeURL(s.Href); href != "" {
			out = `<a href="` + href + `" target="_blank" rel="noopener noreferrer">` + out + "</a>"
		}
	}
	return out
}

func (r *Renderer) renderImage(buf *bytes.Buffer, b content.Image) {
	src := safeMediaURL(b.Media.Resolved())
	if src == "" {
		return
	}
	caption := strings.TrimSpace(content.PlainText(b.Caption))
	alt := caption
	if alt == "" {
		alt = "Blog image"
	}
	buf.WriteString(`<figure class="content-image"><img src="` + src + `" alt="` + html.EscapeString(alt) + `" loading="lazy" decoding="async"/>`)
	if caption != "" {
		buf.WriteString(`<figcaption>` + html.EscapeString(caption) + `</figcaption>`)
	}
	buf.WriteString(`</figure>`)
}

func (r *Renderer) renderPlayable(buf *bytes.Buffer, u string, preview *content.LinkPreview) {
	if u == "" {
		return
	}
	if id, ok := content.YouTubeID(u); ok {
		buf.WriteString(`<div class="video-embed"><iframe src="https://www.youtube.com/embed/` + html.EscapeString(id) +
			`" title="YouTube video player" frameborder="0" allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture" allowfullscreen></iframe></div>`)
		return
	}
	r.renderLink(buf, u, preview)
}

// renderLink writes a rich card when the preview has an image, otherwise a
// compact row. Relative and mailto/tel links only get the row; links that
// fail URL checks render as escaped text.
func (r *Renderer) renderLink(buf *bytes.Buffer, raw string, preview *content.LinkPreview) {
	href := safeMediaURL(raw)
	if href == "" {
		local := SafeURL(raw)
		if local == "" {
			buf.WriteString(`<p>` + html.EscapeString(raw) + `</p>`)
			return
		}
		buf.WriteString(`<div class="link-row"><a href="` + local + `">` + html.EscapeString(raw) + `</a></div>`)
		return
	}
	host := hostname(raw)
	if preview.HasImage() {
		img := safeMediaURL(preview.Images[0])
		if img != "" {
			title := preview.Title
			if title == "" {
				title = raw
			}
			site := preview.SiteName
			if site == "" {
				site = host
			}
			buf.WriteString(`<a class="link-card" href="` + href + `" target="_blank" rel="noopener noreferrer">`)
			buf.WriteString(`<div class="link-card-image"><img src="` + img + `" alt="` + html.EscapeString(title) + `" loading="lazy"/></div>`)
			buf.WriteString(`<div class="link-card-body"><div class="link-card-title">` + html.EscapeString(title) + `</div>`)
			if preview.Description != "" {
				buf.WriteString(`<p class="link-card-description">` + html.EscapeString(preview.Description) + `</p>`)
			}
			buf.WriteString(`<div class="link-card-site">`)
			if len(preview.Favicons) > 0 {
				if fav := safeMediaURL(preview.Favicons[0]); fav != "" {
					buf.WriteString(`<img src="` + fav + `" alt="` + html.EscapeString(site) + ` favicon" width="14" height="14"/>`)
				}
			}
			buf.WriteString(`<span>` + html.EscapeString(site) + `</span></div></div></a>`)
			return
		}
	}
	buf.WriteString(`<div class="link-row"><a href="` + href + `" target="_blank" rel="noopener noreferrer">`)
	if host != "" {
		if fav := safeMediaURL(r.favicons.FaviconURL(host)); fav != "" {
			buf.WriteString(`<img src="` + fav + `" alt="favicon" width="16" height="16"/>`)
		}
	}
	buf.WriteString(html.EscapeString(raw) + `</a></div>`)
}

func hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// SafeURL returns raw escaped for an attribute when it is relative or uses an
// allowed scheme (http, https, mailto, tel); otherwise "".
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}

// safeMediaURL only allows absolute http(s) URLs with a host.
func safeMediaURL(raw string) string {
	val := strings.TrimSpace(raw)
	parsed, err := url.Parse(val)
	if err != nil || parsed.Host == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return html.EscapeString(val)
	default:
		return ""
	}
}
