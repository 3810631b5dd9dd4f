// Package content defines the rich-content block model rendered on article pages.
//
// A document is an ordered slice of Block values. Each recognized block kind has
// its own concrete type; callers switch on the concrete type rather than on Kind.
// Blocks are produced by a content source decoder and are treated as immutable
// afterwards: enrichment returns new values instead of mutating in place.
package content

import "strings"

// Kind names a block variant. Values follow the content source's wire names.
type Kind string

const (
	KindParagraph        Kind = "paragraph"
	KindHeading1         Kind = "heading_1"
	KindHeading2         Kind = "heading_2"
	KindHeading3         Kind = "heading_3"
	KindBulletedListItem Kind = "bulleted_list_item"
	KindNumberedListItem Kind = "numbered_list_item"
	KindQuote            Kind = "quote"
	KindCode             Kind = "code"
	KindImage            Kind = "image"
	KindVideo            Kind = "video"
	KindEmbed            Kind = "embed"
	KindBookmark         Kind = "bookmark"
	KindCallout          Kind = "callout"
	KindDivider          Kind = "divider"
)

// Known reports whether k is one of the recognized block kinds.
func (k Kind) Known() bool {
	switch k {
	case KindParagraph, KindHeading1, KindHeading2, KindHeading3,
		KindBulletedListItem, KindNumberedListItem, KindQuote, KindCode,
		KindImage, KindVideo, KindEmbed, KindBookmark, KindCallout, KindDivider:
		return true
	}
	return false
}

// Annotations is the set of inline styles applied to a span.
type Annotations struct {
	Bold          bool
	Italic        bool
	Strikethrough bool
	Underline     bool
	Code          bool
}

// Span is a run of text with uniform styling and an optional link target.
type Span struct {
	Text        string
	Annotations Annotations
	Href        string
}

// PlainText concatenates the literal text of spans.
func PlainText(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// MediaType tells where a media file lives.
type MediaType string

const (
	MediaHosted   MediaType = "hosted"
	MediaExternal MediaType = "external"
)

// MediaRef points at an image, video or linked page.
type MediaRef struct {
	Type MediaType
	URL  string
}

// Resolved returns the media URL, or "" when the reference is unusable.
func (m MediaRef) Resolved() string {
	return strings.TrimSpace(m.URL)
}

// Block is one unit of rich content.
type Block interface {
	BlockID() string
	Kind() Kind
	isBlock()
}

// Linked is implemented by blocks whose rendering depends on a link preview.
type Linked interface {
	Block
	// LinkURL returns the URL to preview, or "" when the block renders
	// without one.
	LinkURL() string
	// WithPreview returns a copy of the block carrying p.
	WithPreview(p *LinkPreview) Block
}

// Paragraph is a run of prose. A paragraph made of a single linked span is
// rendered as a link card.
type Paragraph struct {
	ID       string
	RichText []Span
	Preview  *LinkPreview
}

// Heading is a section title of level 1 to 3.
type Heading struct {
	ID       string
	Level    int
	RichText []Span
}

// BulletedListItem is one item of an unordered list.
type BulletedListItem struct {
	ID       string
	RichText []Span
}

// NumberedListItem is one item of an ordered list.
type NumberedListItem struct {
	ID       string
	RichText []Span
}

// Quote is a block quotation.
type Quote struct {
	ID       string
	RichText []Span
}

// Callout is a highlighted aside with an icon.
type Callout struct {
	ID       string
	Icon     string
	RichText []Span
}

// Code is a preformatted snippet. Only the first span is rendered.
type Code struct {
	ID       string
	Language string
	RichText []Span
}

// Image is a picture with an optional caption.
type Image struct {
	ID      string
	Media   MediaRef
	Caption []Span
}

// Video is a playable video or a link to one.
type Video struct {
	ID      string
	Media   MediaRef
	Preview *LinkPreview
}

// Embed is third-party content embedded by URL.
type Embed struct {
	ID      string
	Media   MediaRef
	Preview *LinkPreview
}

// Bookmark is a saved link, always shown as a card or link row.
type Bookmark struct {
	ID      string
	Media   MediaRef
	Caption []Span
	Preview *LinkPreview
}

// Divider is a horizontal rule.
type Divider struct {
	ID string
}

func (b Paragraph) BlockID() string        { return b.ID }
func (b Heading) BlockID() string          { return b.ID }
func (b BulletedListItem) BlockID() string { return b.ID }
func (b NumberedListItem) BlockID() string { return b.ID }
func (b Quote) BlockID() string            { return b.ID }
func (b Callout) BlockID() string          { return b.ID }
func (b Code) BlockID() string             { return b.ID }
func (b Image) BlockID() string            { return b.ID }
func (b Video) BlockID() string            { return b.ID }
func (b Embed) BlockID() string            { return b.ID }
func (b Bookmark) BlockID() string         { return b.ID }
func (b Divider) BlockID() string          { return b.ID }

func (Paragraph) Kind() Kind        { return KindParagraph }
func (BulletedListItem) Kind() Kind { return KindBulletedListItem }
func (NumberedListItem) Kind() Kind { return KindNumberedListItem }
func (Quote) Kind() Kind            { return KindQuote }
func (Callout) Kind() Kind          { return KindCallout }
func (Code) Kind() Kind             { return KindCode }
func (Image) Kind() Kind            { return KindImage }
func (Video) Kind() Kind            { return KindVideo }
func (Embed) Kind() Kind            { return KindEmbed }
func (Bookmark) Kind() Kind         { return KindBookmark }
func (Divider) Kind() Kind          { return KindDivider }

func (b Heading) Kind() Kind {
	switch b.Level {
	case 2:
		return KindHeading2
	case 3:
		return KindHeading3
	default:
		return KindHeading1
	}
}

func (Paragraph) isBlock()        {}
func (Heading) isBlock()          {}
func (BulletedListItem) isBlock() {}
func (NumberedListItem) isBlock() {}
func (Quote) isBlock()            {}
func (Callout) isBlock()          {}
func (Code) isBlock()             {}
func (Image) isBlock()            {}
func (Video) isBlock()            {}
func (Embed) isBlock()            {}
func (Bookmark) isBlock()         {}
func (Divider) isBlock()          {}

// LinkOnly returns the href of a paragraph consisting of exactly one linked span.
func (b Paragraph) LinkOnly() (string, bool) {
	if len(b.RichText) != 1 {
		return "", false
	}
	href := strings.TrimSpace(b.RichText[0].Href)
	return href, href != ""
}

func (b Paragraph) LinkURL() string {
	href, _ := b.LinkOnly()
	return href
}

func (b Video) LinkURL() string {
	u := b.Media.Resolved()
	if _, ok := YouTubeID(u); ok {
		return ""
	}
	return u
}

func (b Embed) LinkURL() string {
	u := b.Media.Resolved()
	if _, ok := YouTubeID(u); ok {
		return ""
	}
	return u
}

func (b Bookmark) LinkURL() string { return b.Media.Resolved() }

func (b Paragraph) WithPreview(p *LinkPreview) Block { b.Preview = p; return b }
func (b Video) WithPreview(p *LinkPreview) Block     { b.Preview = p; return b }
func (b Embed) WithPreview(p *LinkPreview) Block     { b.Preview = p; return b }
func (b Bookmark) WithPreview(p *LinkPreview) Block  { b.Preview = p; return b }
