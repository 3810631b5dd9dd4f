package kalam

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/kalam-press/kalam/notion"
)

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// siteRoot returns base with exactly one trailing slash.
func siteRoot(base string) string {
	return strings.TrimRight(base, "/") + "/"
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RelatedPosts returns up to max posts other than current. When current has
// a category only posts of that category qualify.
func RelatedPosts(current notion.Post, posts []notion.Post, max int) []notion.Post {
	related := []notion.Post{}
	for _, p := range posts {
		if len(related) == max {
			break
		}
		if p.ID == current.ID {
			continue
		}
		if current.Category != "" && !strings.EqualFold(p.Category, current.Category) {
			continue
		}
		related = append(related, p)
	}
	return related
}

// ArticleURL is the canonical URL of a Notion article.
func ArticleURL(base string, p notion.Post) string {
	return BuildURL(base, "blogs", p.URLSlug())
}

// CMSPostURL is the canonical URL of a CMS post.
func CMSPostURL(base string, p CMSPost) string {
	return BuildURL(base, "ravi_blogs", p.ID)
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
		"inLanguage":  []string{"te", "en"},
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ArticleJsonLD returns a JSON-LD string for a BlogPosting schema.
func ArticleJsonLD(post notion.Post, cfg SiteConfig) string {
	postURL := ArticleURL(cfg.URL, post)
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   post.Summary,
		"datePublished": post.PublishedDate,
		"url":           postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	author := post.Author
	if author == "" {
		author = cfg.Author
	}
	if author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  author,
		}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	if post.CoverImage != "" {
		data["image"] = post.CoverImage
	}
	if post.Category != "" {
		data["articleSection"] = post.Category
	}
	if len(post.Tags) > 0 {
		data["keywords"] = strings.Join(post.Tags, ", ")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
