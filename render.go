package kalam

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/kalam-press/kalam/render"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// page builds the context shared by every view of the request.
func (a *App) page(c echo.Context, meta PageMeta) Page {
	lang := Lang(c)
	if meta.URL == "" {
		meta.URL = BuildURL(a.Config.Site.URL, c.Request().URL.Path)
	}
	if meta.OGType == "" {
		meta.OGType = "website"
	}
	if meta.Description == "" {
		meta.Description = a.Config.Site.Description
	}
	if meta.Title == "" {
		meta.Title = a.Config.Site.Name
	} else if meta.Title != a.Config.Site.Name {
		meta.Title += " | " + a.Config.Site.Name
	}
	return Page{
		Site: a.Config.Site,
		Lang: lang,
		T:    a.Catalog.Lang(lang),
		Meta: meta,
		CSRF: CsrfToken(c),
	}
}

// blockRenderer returns a block renderer whose empty-content placeholder is
// in lang.
func (a *App) blockRenderer(lang string) *render.Renderer {
	return render.New(
		render.WithFavicons(a.favicons),
		render.WithPlaceholder(a.Catalog.T(lang, "content.empty")),
	)
}
