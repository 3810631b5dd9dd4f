package kalam

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kalam-press/kalam/notion"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Self          atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	GUID        string        `xml:"guid"`
	PubDate     string        `xml:"pubDate,omitempty"`
	Description string        `xml:"description"`
	Author      string        `xml:"author,omitempty"`
	Categories  []string      `xml:"category"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

func (a *App) handleRSS(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), PostFilter{})
	if err != nil {
		a.log.Error().Err(err).Msg("generate rss feed")
		return c.JSON(http.StatusInternalServerError, apiError{Error: "Failed to generate RSS feed"})
	}
	return a.renderRSS(c, posts, time.Now())
}

func (a *App) renderRSS(c echo.Context, posts []notion.Post, now time.Time) error {
	base := a.Config.Site.URL
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		postURL := ArticleURL(base, p)
		category := p.Category
		if category == "" {
			category = "General"
		}
		item := rssItem{
			Title:       p.Title,
			Link:        postURL,
			GUID:        postURL,
			Description: firstNonEmpty(p.Summary, p.Excerpt),
			Author:      p.Author,
			Categories:  append([]string{category}, p.Tags...),
		}
		if t, ok := parsePublishedDate(p.PublishedDate); ok {
			item.PubDate = t.Format(time.RFC1123Z)
		}
		if p.CoverImage != "" {
			item.Enclosure = &rssEnclosure{URL: p.CoverImage, Type: "image/jpeg"}
		}
		items = append(items, item)
	}
	feed := rssXML{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         a.Config.Site.Name,
			Link:          BuildURL(base, "blogs"),
			Description:   a.Config.Site.Description,
			Language:      a.Config.Site.Language,
			LastBuildDate: now.UTC().Format(time.RFC1123Z),
			Self: atomLink{
				Href: siteRoot(base) + "feed.xml",
				Rel:  "self",
				Type: "application/rss+xml",
			},
			Items: items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(feed)
}

// parsePublishedDate accepts the date-only and date-time forms Notion uses.
func parsePublishedDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
