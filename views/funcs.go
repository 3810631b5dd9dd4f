package views

import (
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/kalam-press/kalam"
	"github.com/kalam-press/kalam/markup"
	"github.com/kalam-press/kalam/notion"
)

var funcs = template.FuncMap{
	"articleURL": func(p notion.Post) string { return "/blogs/" + url.PathEscape(p.URLSlug()) + "/" },
	"cmsURL":     func(p kalam.CMSPost) string { return "/ravi_blogs/" + url.PathEscape(p.ID) + "/" },
	"tagURL":     func(tag string) string { return "/blogs/?tag=" + url.QueryEscape(tag) },
	"date":       formatDate,
	"dateInput":  dateInput,
	"joinTags":   func(tags []string) string { return strings.Join(tags, ", ") },
	"excerpt":    func(p kalam.CMSPost) string { return cmsExcerpt(p) },
	"minutes":    func(p kalam.CMSPost) int { return markup.ReadingTime(p.Content) },
	"otherLang":  otherLang,
	"isStatus":   func(p kalam.CMSPost, s string) bool { return string(p.Status) == s },
}

// formatDate shows a date as "2 Jan 2006". It accepts the Notion date
// strings and the CMS timestamps.
func formatDate(v any) string {
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case *time.Time:
		if d == nil {
			return ""
		}
		t = *d
	case string:
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			if parsed, err = time.Parse(time.RFC3339, d); err != nil {
				return d
			}
		}
		t = parsed
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.Format("2 Jan 2006")
}

// dateInput formats a time for a datetime-local input.
func dateInput(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04")
}

func cmsExcerpt(p kalam.CMSPost) string {
	if p.Excerpt != "" {
		return p.Excerpt
	}
	return markup.Excerpt(p.Content, 160)
}

func otherLang(lang string) string {
	if lang == "en" {
		return "te"
	}
	return "en"
}
