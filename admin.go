package kalam

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kalam-press/kalam/auth"
)

func (a *App) handleAdminLoginPage(c echo.Context) error {
	if IsAdmin(c) && a.Sessions.State().Authenticated() {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return Render(c, a.Views.AdminLogin(a.adminPage(c, "admin.login"), false))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")
	ctx := c.Request().Context()

	sess, err := a.authProvider.SignIn(ctx, email, password)
	if err != nil {
		a.loginLimiter.Record(ip)
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			a.log.Error().Err(err).Msg("admin sign in")
		}
		return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(a.adminPage(c, "admin.login"), true))
	}
	// The provider also announces the sign in as an event; applying it here
	// makes the session usable by this very redirect.
	a.Sessions.HandleEvent(auth.Event{Type: auth.SignedIn, Session: sess})
	if err := setAdminSession(c, sess.User.Email); err != nil {
		return err
	}
	a.log.Info().Str("user", sess.User.Email).Msg("admin signed in")
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminLogout(c echo.Context) error {
	if err := a.Sessions.ForceLogout(c.Request().Context()); err != nil {
		a.log.Warn().Err(err).Msg("admin sign out")
	}
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/login/")
}

func (a *App) handleAdminDashboard(c echo.Context) error {
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	ctx := c.Request().Context()
	stats, err := a.dashboardStats(c)
	if err != nil {
		return err
	}
	posts, err := a.Store.ListCMSPosts(ctx, "")
	if err != nil {
		return err
	}
	pending, err := a.Store.ListPendingComments(ctx)
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminDashboard(a.adminPage(c, "admin.dashboard"), Dashboard{
		Stats:   stats,
		Posts:   posts,
		Pending: pending,
		Session: a.Sessions.Snapshot(),
		Message: msg,
	}))
}

// dashboardStats adds the number of published Notion articles to the store
// counts. An unreachable content source only leaves that number at zero.
func (a *App) dashboardStats(c echo.Context) (DashboardStats, error) {
	ctx := c.Request().Context()
	stats, err := a.Store.DashboardStats(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	articles, err := a.Cache.ListPosts(ctx, PostFilter{})
	if err != nil {
		a.log.Warn().Err(err).Msg("count articles")
	}
	stats.NotionPosts = len(articles)
	return stats, nil
}

func (a *App) handleAdminNewPost(c echo.Context) error {
	return Render(c, a.Views.AdminPostForm(a.adminPage(c, "admin.dashboard"), CMSPost{Status: StatusDraft}))
}

func (a *App) handleAdminEditPost(c echo.Context) error {
	post, err := a.Store.GetCMSPost(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	return Render(c, a.Views.AdminPostForm(a.adminPage(c, "admin.dashboard"), post))
}

// handleAdminSavePost creates or updates a CMS post from the admin form.
func (a *App) handleAdminSavePost(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return err
	}
	ctx := c.Request().Context()
	post := CMSPost{
		Title:         strings.TrimSpace(c.FormValue("title")),
		Content:       c.FormValue("content"),
		Slug:          strings.TrimSpace(c.FormValue("slug")),
		Excerpt:       strings.TrimSpace(c.FormValue("excerpt")),
		FeaturedImage: strings.TrimSpace(c.FormValue("featured_image")),
		Status:        PostStatus(c.FormValue("status")),
		Category:      strings.ToLower(strings.TrimSpace(c.FormValue("category"))),
		Tags:          FilterEmpty(strings.Split(c.FormValue("tags"), ",")),
	}
	if post.Status == "" {
		post.Status = StatusDraft
	}
	if raw := strings.TrimSpace(c.FormValue("published_at")); raw != "" {
		t, err := time.Parse("2006-01-02T15:04", raw)
		if err != nil {
			return c.Redirect(http.StatusSeeOther, "/admin/?msg=Invalid+publication+date.")
		}
		t = t.UTC()
		post.PublishedAt = &t
	}
	if err := validateCMSPost(post); err != nil {
		return c.Redirect(http.StatusSeeOther, "/admin/?msg=Title,+content+and+a+valid+status+are+required.")
	}

	if id := c.FormValue("id"); id != "" {
		tags := post.Tags
		if tags == nil {
			tags = []string{}
		}
		_, err := a.Store.UpdateCMSPost(ctx, id, CMSPostPatch{
			Title:         &post.Title,
			Content:       &post.Content,
			Slug:          &post.Slug,
			Excerpt:       &post.Excerpt,
			FeaturedImage: &post.FeaturedImage,
			Status:        &post.Status,
			Category:      &post.Category,
			Tags:          &tags,
			PublishedAt:   post.PublishedAt,
		})
		if err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/?msg=Post+saved.")
	}
	if _, err := a.Store.CreateCMSPost(ctx, post); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/?msg=Post+saved.")
}

func (a *App) handleAdminDeletePost(c echo.Context) error {
	if err := a.Store.DeleteCMSPost(c.Request().Context(), c.Param("id")); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/?msg=Deleted.")
}

func (a *App) handleAdminApproveComment(c echo.Context) error {
	if err := a.Store.SetCommentApproved(c.Request().Context(), c.Param("id"), true); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/?msg=Comment+approved.")
}

func (a *App) handleAdminDeleteComment(c echo.Context) error {
	if err := a.Store.DeleteComment(c.Request().Context(), c.Param("id")); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/?msg=Deleted.")
}

// handleAdminRefreshArticles drops the cached article list so edits made in
// Notion show up immediately.
func (a *App) handleAdminRefreshArticles(c echo.Context) error {
	a.Cache.Invalidate()
	return c.Redirect(http.StatusSeeOther, "/admin/?msg=Article+cache+refreshed.")
}

func (a *App) adminPage(c echo.Context, titleKey string) Page {
	return a.page(c, PageMeta{Title: a.Catalog.T(Lang(c), titleKey)})
}
