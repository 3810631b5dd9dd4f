package kalam

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kalam-press/kalam/notion"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

var staticPages = []struct {
	path       string
	priority   string
	changeFreq string
}{
	{"", "1.0", "weekly"},
	{"about", "0.8", "monthly"},
	{"contact", "0.7", "monthly"},
	{"blogs", "0.9", "daily"},
	{"stories", "0.8", "weekly"},
	{"novels", "0.8", "weekly"},
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	posts, err := a.Cache.ListPosts(ctx, PostFilter{})
	if err != nil {
		a.log.Error().Err(err).Msg("generate sitemap")
		return c.JSON(http.StatusInternalServerError, apiError{Error: "Failed to generate sitemap"})
	}
	cms, err := a.Store.ListCMSPosts(ctx, StatusPublished)
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts, cms, time.Now())
}

func (a *App) renderSitemap(c echo.Context, posts []notion.Post, cms []CMSPost, now time.Time) error {
	base := a.Config.Site.URL
	today := now.UTC().Format("2006-01-02")
	urls := make([]sitemapURL, 0, len(staticPages)+len(posts)+len(cms))
	for _, sp := range staticPages {
		loc := siteRoot(base)
		if sp.path != "" {
			loc = BuildURL(base, sp.path)
		}
		urls = append(urls, sitemapURL{Loc: loc, LastMod: today, ChangeFreq: sp.changeFreq, Priority: sp.priority})
	}
	for _, p := range posts {
		u := sitemapURL{Loc: ArticleURL(base, p), ChangeFreq: "monthly", Priority: "0.7"}
		if t, ok := parsePublishedDate(p.PublishedDate); ok {
			u.LastMod = t.Format("2006-01-02")
		}
		urls = append(urls, u)
	}
	for _, p := range cms {
		urls = append(urls, sitemapURL{
			Loc:        CMSPostURL(base, p),
			LastMod:    p.UpdatedAt.UTC().Format("2006-01-02"),
			ChangeFreq: "monthly",
			Priority:   "0.6",
		})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
