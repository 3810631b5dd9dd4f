package notion

import (
	"regexp"
	"strings"
)

// Post is a published entry of the blog database.
type Post struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	PublishedDate string   `json:"publishedDate"`
	CoverImage    string   `json:"coverImage,omitempty"`
	Category      string   `json:"category,omitempty"`
	Author        string   `json:"author"`
	ReadingTime   int      `json:"readingTime"`
	Tags          []string `json:"tags"`
	Slug          string   `json:"slug"`
	Featured      bool     `json:"featured"`
	Excerpt       string   `json:"excerpt"`
}

// URLSlug is the slug used in public article URLs.
func (p Post) URLSlug() string {
	return GenerateSlug(p.ID, p.Title)
}

type rawProperty struct {
	Title    []rawRichText `json:"title"`
	RichText []rawRichText `json:"rich_text"`
	Date     *struct {
		Start string `json:"start"`
	} `json:"date"`
	Files []struct {
		Type     string   `json:"type"`
		File     *rawFile `json:"file"`
		External *rawFile `json:"external"`
	} `json:"files"`
	Select *struct {
		Name string `json:"name"`
	} `json:"select"`
	MultiSelect []struct {
		Name string `json:"name"`
	} `json:"multi_select"`
	Number   *float64 `json:"number"`
	Checkbox bool     `json:"checkbox"`
}

type rawPage struct {
	ID         string                 `json:"id"`
	Properties map[string]rawProperty `json:"properties"`
}

func firstText(rt []rawRichText) string {
	if len(rt) == 0 {
		return ""
	}
	if rt[0].PlainText != "" {
		return rt[0].PlainText
	}
	if rt[0].Text != nil {
		return rt[0].Text.Content
	}
	return ""
}

func (p rawPage) toPost(defaultAuthor string) Post {
	prop := func(name string) rawProperty { return p.Properties[name] }

	post := Post{
		ID:          p.ID,
		Title:       firstText(prop("Title").Title),
		Summary:     firstText(prop("Summary").RichText),
		Author:      firstText(prop("Author").RichText),
		ReadingTime: 5,
		Tags:        []string{},
		Slug:        firstText(prop("Slug").RichText),
		Featured:    prop("Featured").Checkbox,
		Excerpt:     firstText(prop("Excerpt").RichText),
	}
	if post.Title == "" {
		post.Title = "Untitled"
	}
	if post.Author == "" {
		post.Author = defaultAuthor
	}
	if post.Slug == "" {
		post.Slug = p.ID
	}
	if d := prop("Published Date").Date; d != nil {
		post.PublishedDate = d.Start
	}
	if files := prop("Cover Photo").Files; len(files) > 0 {
		f := files[0]
		switch {
		case f.Type == "file" && f.File != nil:
			post.CoverImage = f.File.URL
		case f.Type == "external" && f.External != nil:
			post.CoverImage = f.External.URL
		}
	}
	if s := prop("Category").Select; s != nil {
		post.Category = s.Name
	}
	if n := prop("Reading Time").Number; n != nil && *n > 0 {
		post.ReadingTime = int(*n)
	}
	for _, t := range prop("Tags").MultiSelect {
		post.Tags = append(post.Tags, t.Name)
	}
	return post
}

var (
	reSlugStrip  = regexp.MustCompile(`[^a-z0-9\s-]`)
	reSlugSpace  = regexp.MustCompile(`\s+`)
	reSlugHyphen = regexp.MustCompile(`-+`)
)

// GenerateSlug builds "<shortID>-<titleSlug>" where shortID is the first eight
// characters of the id without dashes and titleSlug is at most 30 characters.
// Titles with no ASCII letters or digits yield the short id alone.
func GenerateSlug(id, title string) string {
	shortID := strings.ReplaceAll(id, "-", "")
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	s := strings.ToLower(title)
	s = reSlugStrip.ReplaceAllString(s, "")
	s = reSlugSpace.ReplaceAllString(s, "-")
	s = reSlugHyphen.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 30 {
		s = s[:30]
	}
	if s == "" {
		return shortID
	}
	return shortID + "-" + s
}
