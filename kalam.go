// Package kalam is the server behind a bilingual (Telugu/English) author
// portfolio. It publishes articles written in a Notion database, renders
// their blocks with link previews, and runs a small database-backed CMS with
// comments, a newsletter, a contact form and an admin dashboard.
//
// Users provide their own templ components via the ViewFuncs struct, and
// kalam handles the handler logic, middleware, and database operations.
package kalam

import (
	"context"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kalam-press/kalam/auth"
	"github.com/kalam-press/kalam/content"
	"github.com/kalam-press/kalam/i18n"
	"github.com/kalam-press/kalam/notion"
	"github.com/kalam-press/kalam/preview"
	"github.com/kalam-press/kalam/render"
	"github.com/kalam-press/kalam/session"
)

// ContentSource lists published articles and loads their blocks.
type ContentSource interface {
	ListPublishedPosts(ctx context.Context) ([]notion.Post, error)
	GetBlocks(ctx context.Context, pageID string) ([]content.Block, error)
}

// AuthProvider signs the admin in and out and reports session changes.
type AuthProvider interface {
	session.Provider
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	Subscribe() (<-chan auth.Event, func())
}

// ViewFuncs holds the templ components the app calls when rendering pages.
// Every view receives the Page with site settings, language and CSRF token.
type ViewFuncs struct {
	Home           func(p Page, featured []notion.Post, latest []CMSPost) templ.Component
	BlogList       func(p Page, posts []notion.Post, tags []string, activeTag string) templ.Component
	Article        func(p Page, a Article, body templ.Component, related []notion.Post, comments []Comment) templ.Component
	Category       func(p Page, category string, posts []notion.Post) templ.Component
	CMSList        func(p Page, posts []CMSPost) templ.Component
	CMSPost        func(p Page, post CMSPost, body templ.Component) templ.Component
	About          func(p Page) templ.Component
	Contact        func(p Page) templ.Component
	AdminLogin     func(p Page, showError bool) templ.Component
	AdminDashboard func(p Page, d Dashboard) templ.Component
	AdminPostForm  func(p Page, post CMSPost) templ.Component
	AdminImages    func(p Page, images []Image) templ.Component
	NotFound       func(p Page) templ.Component
	ServerError    func(p Page) templ.Component
}

// Dashboard is what the admin dashboard view shows.
type Dashboard struct {
	Stats   DashboardStats
	Posts   []CMSPost
	Pending []Comment
	Session session.Snapshot
	Message string
}

// App is the central kalam application. It wires together the store,
// caches, content source, auth, handlers, middleware, and views.
type App struct {
	Config   *Config
	Echo     *echo.Echo
	Store    *Store
	Cache    *PostCache
	Views    ViewFuncs
	Catalog  *i18n.Catalog
	Enricher *preview.Enricher
	Sessions *session.Manager

	source       ContentSource
	authProvider AuthProvider
	fetcher      preview.Fetcher
	favicons     render.FaviconLookup
	mailer       Mailer
	scheduler    session.Scheduler
	log          zerolog.Logger

	loginLimiter *RateLimiter
	formLimiter  *RateLimiter
	customRoutes []func(*App)
	staticDir    string
	initialized  bool
}

// Option configures an App.
type Option func(*App)

// WithStore uses an already opened store instead of opening Database.Path.
func WithStore(s *Store) Option {
	return func(a *App) { a.Store = s }
}

// WithContentSource replaces the Notion client.
func WithContentSource(src ContentSource) Option {
	return func(a *App) { a.source = src }
}

// WithAuthProvider replaces the GoTrue client.
func WithAuthProvider(p AuthProvider) Option {
	return func(a *App) { a.authProvider = p }
}

// WithFetcher replaces the HTTP link preview fetcher.
func WithFetcher(f preview.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithFavicons replaces the favicon lookup used by the block renderer.
func WithFavicons(f render.FaviconLookup) Option {
	return func(a *App) { a.favicons = f }
}

// WithMailer replaces the logging mailer.
func WithMailer(m Mailer) Option {
	return func(a *App) { a.mailer = m }
}

// WithCatalog replaces the copy catalog.
func WithCatalog(c *i18n.Catalog) Option {
	return func(a *App) { a.Catalog = c }
}

// WithScheduler replaces the wall clock scheduler of the session manager.
func WithScheduler(s session.Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

// WithLogger sets the root logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithStaticDir sets the directory for static assets and uploads.
func WithStaticDir(dir string) Option {
	return func(a *App) { a.staticDir = dir }
}

// WithCustomRoutes registers a function that adds routes after the built-in ones.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) { a.customRoutes = append(a.customRoutes, fn) }
}

// New creates a kalam App with the given configuration and view functions.
func New(cfg *Config, views ViewFuncs, opts ...Option) *App {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		staticDir: cfg.Uploads.StaticDir,
		log:       zerolog.Nop(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the store, builds the collaborators that were not injected, and
// registers middleware and routes. Start calls it when needed.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return errors.Wrap(err, "kalam: invalid config")
	}

	if a.Store == nil {
		store, err := NewStore(a.Config.Database.Path)
		if err != nil {
			return errors.Wrap(err, "kalam: init store")
		}
		a.Store = store
	}

	if a.Catalog == nil {
		a.Catalog = i18n.NewCatalog()
		if a.Config.I18n.Path != "" {
			if err := a.Catalog.LoadFile(a.Config.I18n.Path); err != nil {
				return errors.Wrap(err, "kalam: load copy catalog")
			}
		}
	}

	if a.source == nil {
		if a.Config.Notion.Token == "" || a.Config.Notion.DatabaseID == "" {
			a.log.Warn().Msg("notion is not configured, articles are disabled")
			a.source = emptySource{}
		} else {
			a.source = notion.New(notion.Config{
				Token:         a.Config.Notion.Token,
				DatabaseID:    a.Config.Notion.DatabaseID,
				BaseURL:       a.Config.Notion.APIURL,
				Version:       a.Config.Notion.Version,
				DefaultAuthor: a.Config.Site.Author,
			}, notion.WithLogger(a.log.With().Str("component", "notion").Logger()))
		}
	}
	a.Cache = NewPostCache(a.source, a.Config.Cache.PostTTL)

	if a.fetcher == nil {
		a.fetcher = preview.NewHTTPFetcher()
	}
	a.Enricher = preview.NewEnricher(a.fetcher,
		preview.WithOptions(preview.Options{Timeout: a.Config.Preview.Timeout, UserAgent: a.Config.Preview.UserAgent}),
		preview.WithConcurrency(a.Config.Preview.Concurrency),
		preview.WithLogger(a.log.With().Str("component", "preview").Logger()),
	)
	if a.favicons == nil {
		a.favicons = render.GoogleFavicons{}
	}

	if a.authProvider == nil {
		a.authProvider = auth.New(auth.Config{URL: a.Config.Auth.URL, AnonKey: a.Config.Auth.AnonKey},
			auth.WithSessionStore(a.Store),
			auth.WithLogger(a.log.With().Str("component", "auth").Logger()),
		)
	}
	a.Sessions = session.New(a.authProvider, session.Options{
		MaxSessionAge:    a.Config.Auth.MaxSessionAge,
		RefreshThreshold: a.Config.Auth.RefreshThreshold,
		Scheduler:        a.scheduler,
		Logger:           a.log.With().Str("component", "session").Logger(),
	})

	if a.mailer == nil {
		a.mailer = NewLogMailer(a.log.With().Str("component", "mailer").Logger())
	}

	a.loginLimiter = NewRateLimiter(5, time.Minute)
	a.formLimiter = NewRateLimiter(10, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/health/live", a.handleLive)
	e.GET("/health/ready", a.handleReady)

	// Public pages
	e.GET("/", a.handleHome)
	e.GET("/about/", a.handleAbout)
	e.GET("/contact/", a.handleContact)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/blogs/", a.handleBlogList)
	e.GET("/blogs/:slug/", a.handleArticle)
	e.GET("/stories/", a.handleCategory(CategoryStory, "nav.stories"))
	e.GET("/novels/", a.handleCategory(CategoryNovel, "nav.novels"))
	e.GET("/poems/", a.handleCategory(CategoryPoem, "nav.poems"))
	e.GET("/ravi_blogs/", a.handleCMSList)
	e.GET("/ravi_blogs/:id/", a.handleCMSPost)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/api/sitemap", a.handleSitemap)
	e.GET("/feed.xml", a.handleRSS)
	e.GET("/api/rss", a.handleRSS)

	// Public API
	e.GET("/api/blogs", a.handleAPIBlogs)
	e.GET("/api/blogs/slug/:slug", a.handleAPIBlogBySlug)
	e.GET("/api/comments", a.handleListComments)
	e.POST("/api/comments", a.handleCreateComment)
	e.POST("/api/contact", a.handleContactSubmit)
	e.POST("/api/newsletter", a.handleNewsletterSubmit)
	e.GET("/api/ravi_blogs", a.handleAPIListCMSPosts)
	e.GET("/api/ravi_blogs/:id", a.handleAPIGetCMSPost)

	// Admin API
	e.POST("/api/ravi_blogs", a.handleAPICreateCMSPost, a.requireAdmin)
	e.PATCH("/api/ravi_blogs/:id", a.handleAPIUpdateCMSPost, a.requireAdmin)
	e.DELETE("/api/ravi_blogs/:id", a.handleAPIDeleteCMSPost, a.requireAdmin)
	e.GET("/api/admin/session", a.handleSessionStatus, a.requireAdmin)
	e.POST("/api/admin/session/refresh", a.handleSessionRefresh, a.requireAdmin)
	e.GET("/api/admin/stats", a.handleAPIStats, a.requireAdmin)

	// Admin pages
	e.GET("/admin/login/", a.handleAdminLoginPage)
	e.POST("/admin/login/", a.handleAdminLogin)
	admin := e.Group("/admin", a.requireAdmin)
	admin.GET("/", a.handleAdminDashboard)
	admin.POST("/logout/", a.handleAdminLogout)
	admin.GET("/posts/new/", a.handleAdminNewPost)
	admin.GET("/posts/:id/", a.handleAdminEditPost)
	admin.POST("/posts/save/", a.handleAdminSavePost)
	admin.POST("/posts/:id/delete/", a.handleAdminDeletePost)
	admin.POST("/comments/:id/approve/", a.handleAdminApproveComment)
	admin.POST("/comments/:id/delete/", a.handleAdminDeleteComment)
	admin.POST("/cache/invalidate/", a.handleAdminRefreshArticles)
	admin.GET("/images/", a.handleImageList)
	admin.POST("/images/upload/", a.handleImageUpload)
	admin.POST("/images/:filename/delete/", a.handleImageDelete)
}

// Start initializes the app and serves until ctx is cancelled. Background
// work (auth event handling, scheduled publishing, copy reloads) stops with
// the server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	events, unsubscribe := a.authProvider.Subscribe()
	g.Go(func() error {
		defer unsubscribe()
		return a.Sessions.Watch(gCtx, events)
	})

	g.Go(func() error {
		a.runPublisher(gCtx, time.Minute)
		return nil
	})

	if a.Config.I18n.Path != "" && a.Config.I18n.Watch {
		g.Go(func() error {
			return a.Catalog.Watch(gCtx, a.Config.I18n.Path, a.log.With().Str("component", "i18n").Logger())
		})
	}

	g.Go(func() error {
		a.log.Info().Str("addr", a.Config.HTTP.Addr).Msg("starting http server")
		if err := a.Echo.Start(a.Config.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Echo.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("http server shutdown")
		}
		return nil
	})

	return g.Wait()
}

// runPublisher flips due scheduled CMS posts to published every interval.
func (a *App) runPublisher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Store.PublishDuePosts(ctx)
			if err != nil {
				a.log.Error().Err(err).Msg("publish scheduled posts")
				continue
			}
			if n > 0 {
				a.log.Info().Int("count", n).Msg("published scheduled posts")
			}
		}
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Sessions != nil {
		a.Sessions.Cleanup()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.formLimiter != nil {
		a.formLimiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

type emptySource struct{}

func (emptySource) ListPublishedPosts(context.Context) ([]notion.Post, error) {
	return []notion.Post{}, nil
}

func (emptySource) GetBlocks(context.Context, string) ([]content.Block, error) {
	return nil, ErrNotFound
}
