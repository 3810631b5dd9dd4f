package kalam

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kalam-press/kalam/i18n"
)

const (
	sessionName = "admin_session"
	langCookie  = "lang"
	langKey     = "lang"
)

// Public JSON endpoints that accept posts from forms without a CSRF token.
var csrfExempt = []string{"/api/comments", "/api/contact", "/api/newsletter"}

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := a.log.Info()
			if v.Status >= 500 {
				ev = a.log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/public/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self' https:; connect-src 'self'; frame-src https://www.youtube.com; media-src 'self' https:",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:     middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.HTTP.CookieSecure,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			for _, p := range csrfExempt {
				if path == p {
					return true
				}
			}
			return false
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public") ||
				strings.HasPrefix(path, "/api/") ||
				strings.HasPrefix(path, "/health/") ||
				path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt" || path == "/favicon.svg" ||
				path == "/blog"
		},
	}))

	e.Use(cacheControlMiddleware)
	e.Use(a.languageMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, "/public/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/api/rss" || path == "/robots.txt":
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		case strings.HasPrefix(path, "/admin"), strings.HasPrefix(path, "/api/"), strings.HasPrefix(path, "/health/"):
			c.Response().Header().Set("Cache-Control", "no-store")
		default:
			c.Response().Header().Set("Cache-Control", "public, max-age=300")
		}
		return next(c)
	}
}

// languageMiddleware picks the page language from ?lang=, then the lang
// cookie, then the site default. An explicit ?lang= is remembered.
func (a *App) languageMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		query := c.QueryParam("lang")
		var cookie string
		if ck, err := c.Cookie(langCookie); err == nil {
			cookie = ck.Value
		}
		lang := i18n.Pick(a.Config.Site.Language, query, cookie)
		if query != "" && i18n.Supported(query) && query != cookie {
			c.SetCookie(&http.Cookie{
				Name:     langCookie,
				Value:    lang,
				Path:     "/",
				MaxAge:   365 * 24 * 60 * 60,
				SameSite: http.SameSiteLaxMode,
				Secure:   a.Config.HTTP.CookieSecure,
			})
		}
		c.Set(langKey, lang)
		return next(c)
	}
}

// Lang returns the language chosen for the request.
func Lang(c echo.Context) string {
	if lang, ok := c.Get(langKey).(string); ok && lang != "" {
		return lang
	}
	return i18n.Telugu
}

// requireAdmin lets a request through only when this browser signed in and
// the admin session is still valid. Validating the session also arms its
// refresh timer.
func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		deny := func() error {
			if strings.HasPrefix(c.Request().URL.Path, "/api/") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			return c.Redirect(http.StatusSeeOther, "/admin/login/")
		}
		if !IsAdmin(c) {
			return deny()
		}
		state, err := a.Sessions.Initialize(c.Request().Context())
		if err != nil {
			a.log.Warn().Err(err).Msg("admin session check failed")
		}
		if err != nil || !state.Authenticated() {
			_ = clearAdminSession(c)
			return deny()
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.HTTP.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(a.Config.Auth.MaxSessionAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.HTTP.CookieSecure,
	}
	return store
}

// IsAdmin checks if this browser holds a signed-in admin cookie.
func IsAdmin(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values["authenticated"].(bool)
	return ok && auth
}

func setAdminSession(c echo.Context, email string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["authenticated"] = true
	sess.Values["email"] = email
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
