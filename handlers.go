package kalam

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kalam-press/kalam/markup"
	"github.com/kalam-press/kalam/notion"
)

const (
	featuredCount = 3
	latestCount   = 3
	relatedCount  = 3
)

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	posts, err := a.Cache.ListPosts(ctx, PostFilter{})
	if err != nil {
		return err
	}
	featured := make([]notion.Post, 0, featuredCount)
	for _, p := range posts {
		if p.Featured && len(featured) < featuredCount {
			featured = append(featured, p)
		}
	}
	for _, p := range posts {
		if len(featured) >= featuredCount {
			break
		}
		if !p.Featured {
			featured = append(featured, p)
		}
	}
	latest, err := a.Store.ListCMSPosts(ctx, StatusPublished)
	if err != nil {
		return err
	}
	if len(latest) > latestCount {
		latest = latest[:latestCount]
	}
	return Render(c, a.Views.Home(a.page(c, PageMeta{}), featured, latest))
}

func (a *App) handleBlogList(c echo.Context) error {
	ctx := c.Request().Context()
	tag := c.QueryParam("tag")
	posts, err := a.Cache.ListPosts(ctx, PostFilter{Tag: tag, Category: c.QueryParam("category")})
	if err != nil {
		return err
	}
	tags, err := a.Cache.ListTags(ctx)
	if err != nil {
		return err
	}
	p := a.page(c, PageMeta{Title: a.Catalog.T(Lang(c), "blog.title")})
	return Render(c, a.Views.BlogList(p, posts, tags, tag))
}

func (a *App) handleArticle(c echo.Context) error {
	ctx := c.Request().Context()
	art, err := a.loadArticle(ctx, c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	posts, err := a.Cache.ListPosts(ctx, PostFilter{})
	if err != nil {
		return err
	}
	comments, err := a.Store.ListComments(ctx, art.Post.URLSlug())
	if err != nil {
		return err
	}
	p := a.page(c, PageMeta{
		Title:       art.Post.Title,
		Description: firstNonEmpty(art.Post.Summary, art.Post.Excerpt),
		URL:         ArticleURL(a.Config.Site.URL, art.Post),
		OGType:      "article",
		Image:       art.Post.CoverImage,
	})
	body := a.blockRenderer(p.Lang).Component(art.Blocks)
	related := RelatedPosts(art.Post, posts, relatedCount)
	return Render(c, a.Views.Article(p, art, body, related, ThreadComments(comments)))
}

// loadArticle finds a published post by slug and loads its blocks with link
// previews attached.
func (a *App) loadArticle(ctx context.Context, slug string) (Article, error) {
	post, err := a.Cache.GetPost(ctx, slug)
	if err != nil {
		return Article{}, err
	}
	blocks, err := a.source.GetBlocks(ctx, post.ID)
	if err != nil {
		return Article{}, errors.Wrapf(err, "load blocks of %s", post.ID)
	}
	return Article{Post: post, Blocks: a.Enricher.Enrich(ctx, blocks)}, nil
}

func (a *App) handleCategory(category, titleKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		posts, err := a.Cache.ListPosts(c.Request().Context(), PostFilter{Category: category})
		if err != nil {
			return err
		}
		p := a.page(c, PageMeta{Title: a.Catalog.T(Lang(c), titleKey)})
		return Render(c, a.Views.Category(p, category, posts))
	}
}

func (a *App) handleCMSList(c echo.Context) error {
	posts, err := a.Store.ListCMSPosts(c.Request().Context(), StatusPublished)
	if err != nil {
		return err
	}
	return Render(c, a.Views.CMSList(a.page(c, PageMeta{Title: a.Catalog.T(Lang(c), "nav.writings")}), posts))
}

func (a *App) handleCMSPost(c echo.Context) error {
	post, err := a.Store.GetCMSPost(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	if post.Status != StatusPublished {
		return echo.ErrNotFound
	}
	p := a.page(c, PageMeta{
		Title:       post.Title,
		Description: firstNonEmpty(post.Excerpt, markup.Excerpt(post.Content, 160)),
		URL:         CMSPostURL(a.Config.Site.URL, post),
		OGType:      "article",
		Image:       post.FeaturedImage,
	})
	return Render(c, a.Views.CMSPost(p, post, markup.Markdown(post.Content)))
}

func (a *App) handleAbout(c echo.Context) error {
	return Render(c, a.Views.About(a.page(c, PageMeta{Title: a.Catalog.T(Lang(c), "nav.about")})))
}

func (a *App) handleContact(c echo.Context) error {
	return Render(c, a.Views.Contact(a.page(c, PageMeta{Title: a.Catalog.T(Lang(c), "contact.title")})))
}

func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/blogs/")
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "favicon.svg"))
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "robots.txt"))
}

func (a *App) handleLive(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleReady(c echo.Context) error {
	if err := a.Store.db.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	} else if errors.Is(err, ErrNotFound) {
		code = http.StatusNotFound
	}
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		msg := http.StatusText(code)
		if ok && code < 500 {
			if s, isString := he.Message.(string); isString {
				msg = s
			}
		}
		if code >= 500 {
			a.log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server error")
		}
		_ = c.JSON(code, map[string]string{"error": msg})
		return
	}
	if code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.page(c, PageMeta{Title: a.Catalog.T(Lang(c), "error.not_found")})))
		return
	}
	if code >= 500 {
		a.log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server error")
		_ = RenderStatus(c, code, a.Views.ServerError(a.page(c, PageMeta{Title: a.Catalog.T(Lang(c), "error.server")})))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
