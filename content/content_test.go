package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYouTubeID(t *testing.T) {
	tests := []struct {
		url  string
		id   string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", true},
		{"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://vimeo.com/123456789", "", false},
		{"https://www.youtube.com/", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		id, ok := YouTubeID(tt.url)
		assert.Equal(t, tt.want, ok, tt.url)
		assert.Equal(t, tt.id, id, tt.url)
	}
}

func TestParagraphLinkOnly(t *testing.T) {
	p := Paragraph{ID: "p1", RichText: []Span{{Text: "x", Href: "http://a.test"}}}
	href, ok := p.LinkOnly()
	assert.True(t, ok)
	assert.Equal(t, "http://a.test", href)
	assert.Equal(t, "http://a.test", p.LinkURL())

	prose := Paragraph{RichText: []Span{{Text: "see "}, {Text: "here", Href: "http://a.test"}}}
	_, ok = prose.LinkOnly()
	assert.False(t, ok)
	assert.Empty(t, prose.LinkURL())

	plain := Paragraph{RichText: []Span{{Text: "no link"}}}
	assert.Empty(t, plain.LinkURL())
}

func TestLinkURLSkipsYouTube(t *testing.T) {
	v := Video{Media: MediaRef{Type: MediaExternal, URL: "https://youtu.be/dQw4w9WgXcQ"}}
	assert.Empty(t, v.LinkURL())

	e := Embed{Media: MediaRef{Type: MediaExternal, URL: "https://example.test/widget"}}
	assert.Equal(t, "https://example.test/widget", e.LinkURL())

	b := Bookmark{Media: MediaRef{Type: MediaExternal, URL: "https://youtu.be/dQw4w9WgXcQ"}}
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", b.LinkURL(), "bookmarks are never players")
}

func TestWithPreviewCopies(t *testing.T) {
	orig := Bookmark{ID: "b1", Media: MediaRef{URL: "https://a.test"}}
	p := LinkPreview{URL: "https://a.test", Images: []string{"https://a.test/i.png"}}

	got := orig.WithPreview(p.Clone())
	require.IsType(t, Bookmark{}, got)
	assert.Nil(t, orig.Preview, "original block must not change")
	assert.True(t, got.(Bookmark).Preview.HasImage())
}

func TestPreviewClone(t *testing.T) {
	p := LinkPreview{Images: []string{"a"}, Favicons: []string{"f"}}
	c := p.Clone()
	c.Images[0] = "b"
	assert.Equal(t, "a", p.Images[0])
}

func TestFailedPreview(t *testing.T) {
	p := FailedPreview("http://a.test", "timeout")
	assert.True(t, p.Failed())
	assert.False(t, p.HasImage())
	assert.Empty(t, p.Images)

	var nilPreview *LinkPreview
	assert.False(t, nilPreview.HasImage())
	assert.False(t, nilPreview.Failed())
}

func TestHeadingKind(t *testing.T) {
	assert.Equal(t, KindHeading1, Heading{Level: 1}.Kind())
	assert.Equal(t, KindHeading2, Heading{Level: 2}.Kind())
	assert.Equal(t, KindHeading3, Heading{Level: 3}.Kind())
}

func TestKindKnown(t *testing.T) {
	assert.True(t, KindCallout.Known())
	assert.False(t, Kind("table").Known())
	assert.False(t, Kind("").Known())
}
