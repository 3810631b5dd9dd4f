package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalam-press/kalam/content"
)

type stubFavicons struct{}

func (stubFavicons) FaviconURL(host string) string { return "https://icons.test/" + host + ".ico" }

func text(s string) []content.Span { return []content.Span{{Text: s}} }

func TestEmptyRendersPlaceholder(t *testing.T) {
	r := New()
	out := r.HTML(nil)
	assert.Contains(t, out, DefaultPlaceholder)

	out = New(WithPlaceholder("ఏమీ లేదు")).HTML([]content.Block{})
	assert.Contains(t, out, "ఏమీ లేదు")
}

func TestFormatSpanNesting(t *testing.T) {
	s := content.Span{
		Text:        "a<b",
		Annotations: content.Annotations{Bold: true, Italic: true, Code: true},
		Href:        "https://a.test/?x=1&y=2",
	}
	got := FormatSpan(s)
	assert.Equal(t,
		`<a href="https://a.test/?x=1&amp;y=2" target="_blank" rel="noopener noreferrer"><code class="inline-code"><em><strong>a&lt;b</strong></em></code></a>`,
		got)
}

func TestFormatSpanUnsafeHref(t *testing.T) {
	got := FormatSpan(content.Span{Text: "x", Href: "javascript:alert(1)"})
	assert.Equal(t, "x", got)
}

func TestTextBlocks(t *testing.T) {
	r := New()
	out := r.HTML([]content.Block{
		content.Heading{ID: "h1", Level: 1, RichText: text("One")},
		content.Heading{ID: "h2", Level: 2, RichText: text("Two")},
		content.Heading{ID: "h3", Level: 3, RichText: text("Three")},
		content.Paragraph{ID: "p", RichText: text("prose")},
		content.Quote{ID: "q", RichText: text("quoted")},
		content.Callout{ID: "c", RichText: text("note")},
		content.BulletedListItem{ID: "b1", RichText: text("first")},
		content.BulletedListItem{ID: "b2", RichText: text("second")},
		content.NumberedListItem{ID: "n1", RichText: text("one")},
		content.Divider{ID: "d"},
	})
	assert.Contains(t, out, "<h1>One</h1>")
	assert.Contains(t, out, "<h2>Two</h2>")
	assert.Contains(t, out, "<h3>Three</h3>")
	assert.Contains(t, out, "<p>prose</p>")
	assert.Contains(t, out, "<blockquote><p>quoted</p></blockquote>")
	assert.Contains(t, out, "💡")
	assert.Equal(t, 2, strings.Count(out, "<ul>"), "each bulleted item is its own list")
	assert.Contains(t, out, "<ol><li>one</li></ol>")
	assert.Contains(t, out, "<hr/>")
	assert.Less(t, strings.Index(out, "One"), strings.Index(out, "Two"))
}

func TestCodeUsesFirstSpanOnly(t *testing.T) {
	out := New().HTML([]content.Block{content.Code{
		Language: "go",
		RichText: []content.Span{
			{Text: "x := <1>", Annotations: content.Annotations{Bold: true}},
			{Text: "ignored"},
		},
	}})
	assert.Contains(t, out, `<code class="language-go">x := &lt;1&gt;</code>`)
	assert.NotContains(t, out, "ignored")
	assert.NotContains(t, out, "<strong>")
}

func TestImage(t *testing.T) {
	r := New()
	out := r.HTML([]content.Block{content.Image{
		Media:   content.MediaRef{Type: content.MediaHosted, URL: "https://files.test/a.png"},
		Caption: text("A cat"),
	}})
	assert.Contains(t, out, `src="https://files.test/a.png"`)
	assert.Contains(t, out, `alt="A cat"`)
	assert.Contains(t, out, "<figcaption>A cat</figcaption>")

	out = r.HTML([]content.Block{content.Image{Media: content.MediaRef{URL: "https://files.test/b.png"}}})
	assert.Contains(t, out, `alt="Blog image"`)
	assert.NotContains(t, out, "figcaption")

	out = r.HTML([]content.Block{content.Image{}})
	assert.NotContains(t, out, "<img")
}

func TestVideoYouTubeEmbed(t *testing.T) {
	out := New().HTML([]content.Block{content.Video{
		Media: content.MediaRef{Type: content.MediaExternal, URL: "https://youtu.be/dQw4w9WgXcQ"},
	}})
	assert.Contains(t, out, `src="https://www.youtube.com/embed/dQw4w9WgXcQ"`)
}

func TestBookmarkNeverPlays(t *testing.T) {
	out := New(WithFavicons(stubFavicons{})).HTML([]content.Block{content.Bookmark{
		Media: content.MediaRef{URL: "https://youtu.be/dQw4w9WgXcQ"},
	}})
	assert.NotContains(t, out, "iframe")
	assert.Contains(t, out, `class="link-row"`)
	assert.Contains(t, out, "https://icons.test/youtu.be.ico")
}

func TestLinkCardWithImage(t *testing.T) {
	preview := &content.LinkPreview{
		URL:         "https://a.test",
		Title:       "A <Title>",
		Description: "desc",
		SiteName:    "A Site",
		Images:      []string{"https://a.test/og.png"},
		Favicons:    []string{"https://a.test/favicon.ico"},
	}
	out := New().HTML([]content.Block{content.Paragraph{
		RichText: []content.Span{{Text: "x", Href: "https://a.test"}},
		Preview:  preview,
	}})
	assert.Contains(t, out, `class="link-card"`)
	assert.Contains(t, out, "A &lt;Title&gt;")
	assert.Contains(t, out, "desc")
	assert.Contains(t, out, "A Site")
	assert.Contains(t, out, `src="https://a.test/og.png"`)
	assert.NotContains(t, out, "link-row")
}

func TestEmbedFallsBackToRow(t *testing.T) {
	out := New(WithFavicons(stubFavicons{})).HTML([]content.Block{content.Embed{
		Media:   content.MediaRef{URL: "https://widget.test/x"},
		Preview: &content.LinkPreview{URL: "https://widget.test/x", Title: "No image"},
	}})
	assert.Contains(t, out, `class="link-row"`)
	assert.Contains(t, out, "https://icons.test/widget.test.ico")
}

func TestLinkOnlyParagraphRelativeHref(t *testing.T) {
	r := New(WithFavicons(stubFavicons{}))
	out := r.HTML([]content.Block{content.Paragraph{
		RichText: []content.Span{{Text: "Chapter two", Href: "/abc123def456"}},
	}})
	assert.Contains(t, out, `<div class="link-row"><a href="/abc123def456">/abc123def456</a></div>`)
	assert.NotContains(t, out, "icons.test")

	out = r.HTML([]content.Block{content.Paragraph{
		RichText: []content.Span{{Text: "write", Href: "mailto:ravi@kalam.test"}},
	}})
	assert.Contains(t, out, `href="mailto:ravi@kalam.test"`)

	out = r.HTML([]content.Block{content.Paragraph{
		RichText: []content.Span{{Text: "x", Href: "javascript:alert(1)"}},
	}})
	assert.NotContains(t, out, "<a ")
	assert.Contains(t, out, "<p>javascript:alert(1)</p>")
}

func TestEmptyTextBlocksRenderNothing(t *testing.T) {
	out := New().HTML([]content.Block{
		content.Paragraph{ID: "p"},
		content.Heading{ID: "h", Level: 2},
		content.Code{ID: "c"},
		content.Bookmark{ID: "b"},
		content.Video{ID: "v"},
	})
	assert.Equal(t, `<div class="prose"></div>`, out)
}

func TestRenderIsIdempotent(t *testing.T) {
	blocks := []content.Block{
		content.Heading{Level: 1, RichText: text("Hello")},
		content.Paragraph{RichText: []content.Span{{Text: "x", Href: "http://a.test"}}},
	}
	r := New()
	assert.Equal(t, r.HTML(blocks), r.HTML(blocks))
}

// A failed preview yields a compact row after the heading.
func TestFailedPreviewScenario(t *testing.T) {
	failed := content.FailedPreview("http://a.test", "timeout")
	blocks := []content.Block{
		content.Heading{ID: "1", Level: 1, RichText: text("Hello")},
		content.Paragraph{ID: "2", RichText: []content.Span{{Text: "x", Href: "http://a.test"}}, Preview: &failed},
	}
	out := New(WithFavicons(stubFavicons{})).HTML(blocks)
	h := strings.Index(out, "<h1>Hello</h1>")
	row := strings.Index(out, `class="link-row"`)
	require.GreaterOrEqual(t, h, 0)
	require.Greater(t, row, h)
	assert.NotContains(t, out, "link-card")
	assert.Contains(t, out, `href="http://a.test"`)
}

func TestComponent(t *testing.T) {
	var sb strings.Builder
	err := New().Component([]content.Block{content.Divider{}}).Render(context.Background(), &sb)
	require.NoError(t, err)
	assert.Equal(t, `<div class="prose"><hr/></div>`, sb.String())
}

func TestSafeURL(t *testing.T) {
	assert.Equal(t, "/blogs/", SafeURL("/blogs/"))
	assert.Equal(t, "mailto:a@b.test", SafeURL("mailto:a@b.test"))
	assert.Empty(t, SafeURL("javascript:alert(1)"))
	assert.Empty(t, SafeURL("data:text/html,x"))
	assert.Empty(t, SafeURL("  "))
}
