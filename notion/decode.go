package notion

import (
	"encoding/json"
	"strings"

	"github.com/kalam-press/kalam/content"
)

// RawBlock is a block as returned by the API. Payload holds the object found
// under the key named by Type, or nil when the key is absent or not an object.
type RawBlock struct {
	ID      string
	Type    string
	Payload *rawPayload
}

type rawAnnotations struct {
	Bold          bool `json:"bold"`
	Italic        bool `json:"italic"`
	Strikethrough bool `json:"strikethrough"`
	Underline     bool `json:"underline"`
	Code          bool `json:"code"`
}

type rawRichText struct {
	PlainText   string          `json:"plain_text"`
	Href        *string         `json:"href"`
	Annotations *rawAnnotations `json:"annotations"`
	Text        *struct {
		Content string `json:"content"`
		Link    *struct {
			URL string `json:"url"`
		} `json:"link"`
	} `json:"text"`
}

type rawFile struct {
	URL string `json:"url"`
}

type rawPayload struct {
	RichText []rawRichText `json:"rich_text"`
	Caption  []rawRichText `json:"caption"`
	Language string        `json:"language"`
	Type     string        `json:"type"`
	File     *rawFile      `json:"file"`
	External *rawFile      `json:"external"`
	URL      string        `json:"url"`
	Icon     *struct {
		Type  string `json:"type"`
		Emoji string `json:"emoji"`
	} `json:"icon"`
}

// UnmarshalJSON captures id, type and the type-named payload.
func (b *RawBlock) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*b = RawBlock{}
	if v, ok := fields["id"]; ok {
		_ = json.Unmarshal(v, &b.ID)
	}
	if v, ok := fields["type"]; ok {
		_ = json.Unmarshal(v, &b.Type)
	}
	if b.Type == "" {
		return nil
	}
	v, ok := fields[b.Type]
	if !ok {
		return nil
	}
	var p rawPayload
	if err := json.Unmarshal(v, &p); err != nil {
		// A payload of the wrong shape is malformed; leave it nil.
		return nil
	}
	b.Payload = &p
	return nil
}

// DecodeBlock maps a raw block onto the content model. It reports false for
// unrecognized kinds and for blocks missing their payload.
func DecodeBlock(raw RawBlock) (content.Block, bool) {
	kind := content.Kind(raw.Type)
	if !kind.Known() {
		return nil, false
	}
	if kind == content.KindDivider {
		return content.Divider{ID: raw.ID}, true
	}
	p := raw.Payload
	if p == nil {
		return nil, false
	}
	switch kind {
	case content.KindParagraph:
		return content.Paragraph{ID: raw.ID, RichText: spans(p.RichText)}, true
	case content.KindHeading1:
		return content.Heading{ID: raw.ID, Level: 1, RichText: spans(p.RichText)}, true
	case content.KindHeading2:
		return content.Heading{ID: raw.ID, Level: 2, RichText: spans(p.RichText)}, true
	case content.KindHeading3:
		return content.Heading{ID: raw.ID, Level: 3, RichText: spans(p.RichText)}, true
	case content.KindBulletedListItem:
		return content.BulletedListItem{ID: raw.ID, RichText: spans(p.RichText)}, true
	case content.KindNumberedListItem:
		return content.NumberedListItem{ID: raw.ID, RichText: spans(p.RichText)}, true
	case content.KindQuote:
		return content.Quote{ID: raw.ID, RichText: spans(p.RichText)}, true
	case content.KindCallout:
		icon := ""
		if p.Icon != nil {
			icon = p.Icon.Emoji
		}
		return content.Callout{ID: raw.ID, Icon: icon, RichText: spans(p.RichText)}, true
	case content.KindCode:
		return content.Code{ID: raw.ID, Language: p.Language, RichText: spans(p.RichText)}, true
	case content.KindImage:
		return content.Image{ID: raw.ID, Media: media(p), Caption: spans(p.Caption)}, true
	case content.KindVideo:
		return content.Video{ID: raw.ID, Media: media(p)}, true
	case content.KindEmbed:
		return content.Embed{ID: raw.ID, Media: content.MediaRef{Type: content.MediaExternal, URL: p.URL}}, true
	case content.KindBookmark:
		return content.Bookmark{ID: raw.ID, Media: content.MediaRef{Type: content.MediaExternal, URL: p.URL}, Caption: spans(p.Caption)}, true
	}
	return nil, false
}

// DecodeBlocks decodes raws in order, dropping what DecodeBlock rejects.
func DecodeBlocks(raws []RawBlock) []content.Block {
	out := make([]content.Block, 0, len(raws))
	for _, r := range raws {
		if b, ok := DecodeBlock(r); ok {
			out = append(out, b)
		}
	}
	return out
}

func media(p *rawPayload) content.MediaRef {
	switch {
	case p.Type == "file" && p.File != nil:
		return content.MediaRef{Type: content.MediaHosted, URL: p.File.URL}
	case p.Type == "external" && p.External != nil:
		return content.MediaRef{Type: content.MediaExternal, URL: p.External.URL}
	case p.File != nil:
		return content.MediaRef{Type: content.MediaHosted, URL: p.File.URL}
	case p.External != nil:
		return content.MediaRef{Type: content.MediaExternal, URL: p.External.URL}
	}
	return content.MediaRef{}
}

func spans(raws []rawRichText) []content.Span {
	if len(raws) == 0 {
		return nil
	}
	out := make([]content.Span, 0, len(raws))
	for _, r := range raws {
		s := content.Span{Text: r.PlainText}
		if s.Text == "" && r.Text != nil {
			s.Text = r.Text.Content
		}
		switch {
		case r.Href != nil:
			s.Href = strings.TrimSpace(*r.Href)
		case r.Text != nil && r.Text.Link != nil:
			s.Href = strings.TrimSpace(r.Text.Link.URL)
		}
		if a := r.Annotations; a != nil {
			s.Annotations = content.Annotations{
				Bold:          a.Bold,
				Italic:        a.Italic,
				Strikethrough: a.Strikethrough,
				Underline:     a.Underline,
				Code:          a.Code,
			}
		}
		out = append(out, s)
	}
	return out
}
