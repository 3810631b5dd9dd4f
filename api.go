package kalam

import (
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kalam-press/kalam/notion"
)

type apiError struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors,omitempty"`
}

type formResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// fieldErrors flattens ozzo validation errors into field -> message.
func fieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for field, e := range verrs {
		out[field] = e.Error()
	}
	return out
}

// --- Notion articles ---

func (a *App) handleAPIBlogs(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), PostFilter{
		Category: c.QueryParam("category"),
		Exclude:  c.QueryParam("exclude"),
	})
	if err != nil {
		a.log.Error().Err(err).Msg("list articles")
		return c.JSON(http.StatusInternalServerError, apiError{Error: "Failed to fetch blogs"})
	}
	return c.JSON(http.StatusOK, posts)
}

type articleResponse struct {
	notion.Post
	URLSlug     string `json:"urlSlug"`
	ContentHTML string `json:"contentHtml"`
}

func (a *App) handleAPIBlogBySlug(c echo.Context) error {
	art, err := a.loadArticle(c.Request().Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, apiError{Error: "Blog not found"})
		}
		a.log.Error().Err(err).Msg("load article")
		return c.JSON(http.StatusInternalServerError, apiError{Error: "Failed to fetch blog"})
	}
	return c.JSON(http.StatusOK, articleResponse{
		Post:        art.Post,
		URLSlug:     art.Post.URLSlug(),
		ContentHTML: a.blockRenderer(Lang(c)).HTML(art.Blocks),
	})
}

// --- comments ---

type commentRequest struct {
	BlogSlug               string `json:"blog_slug" form:"blog_slug"`
	ParentID               string `json:"parent_id" form:"parent_id"`
	AuthorName             string `json:"author_name" form:"author_name"`
	AuthorEmail            string `json:"author_email" form:"author_email"`
	CommentText            string `json:"comment_text" form:"comment_text"`
	SubscribesToNewsletter bool   `json:"subscribes_to_newsletter" form:"subscribes_to_newsletter"`
}

func (r *commentRequest) trim() {
	r.BlogSlug = strings.TrimSpace(r.BlogSlug)
	r.ParentID = strings.TrimSpace(r.ParentID)
	r.AuthorName = strings.TrimSpace(r.AuthorName)
	r.AuthorEmail = strings.TrimSpace(r.AuthorEmail)
	r.CommentText = strings.TrimSpace(r.CommentText)
}

func (r commentRequest) missing() bool {
	return r.BlogSlug == "" || r.AuthorName == "" || r.AuthorEmail == "" || r.CommentText == ""
}

func (r commentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AuthorName, validation.Required, validation.RuneLength(1, 100)),
		validation.Field(&r.AuthorEmail, validation.Required, is.EmailFormat),
		validation.Field(&r.CommentText, validation.Required, validation.RuneLength(1, 5000)),
	)
}

func (a *App) handleListComments(c echo.Context) error {
	slug := strings.TrimSpace(c.QueryParam("blog_slug"))
	if slug == "" {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Missing blog_slug"})
	}
	comments, err := a.Store.ListComments(c.Request().Context(), slug)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string][]Comment{
		"comments": comments,
		"thread":   ThreadComments(comments),
	})
}

func (a *App) handleCreateComment(c echo.Context) error {
	if !a.formLimiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, apiError{Error: "Too many requests. Try again later."})
	}
	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Invalid request body"})
	}
	req.trim()
	if req.missing() {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Missing required fields"})
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Invalid comment", Errors: fieldErrors(err)})
	}
	comment, err := a.Store.AddComment(c.Request().Context(), Comment{
		BlogSlug:               req.BlogSlug,
		ParentID:               req.ParentID,
		AuthorName:             req.AuthorName,
		AuthorEmail:            req.AuthorEmail,
		CommentText:            req.CommentText,
		SubscribesToNewsletter: req.SubscribesToNewsletter,
		IsApproved:             true,
	})
	if errors.Is(err, ErrInvalidParent) {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Parent comment not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]Comment{"comment": comment})
}

// --- contact and newsletter ---

type contactRequest struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Subject string `json:"subject" form:"subject"`
	Message string `json:"message" form:"message"`
}

func (r contactRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.RuneLength(2, 100)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Subject, validation.Required, validation.RuneLength(5, 200)),
		validation.Field(&r.Message, validation.Required, validation.RuneLength(10, 2000)),
	)
}

func (a *App) handleContactSubmit(c echo.Context) error {
	t := a.Catalog.Lang(Lang(c))
	if !a.formLimiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, formResult{Message: "Too many requests. Try again later."})
	}
	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, formResult{Message: t("contact.failed")})
	}
	req.Name, req.Email = strings.TrimSpace(req.Name), strings.TrimSpace(req.Email)
	req.Subject, req.Message = strings.TrimSpace(req.Subject), strings.TrimSpace(req.Message)
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, formResult{Message: t("contact.failed"), Errors: fieldErrors(err)})
	}
	ctx := c.Request().Context()
	msg, err := a.Store.AddContactMessage(ctx, ContactMessage{Name: req.Name, Email: req.Email, Subject: req.Subject, Message: req.Message})
	if err != nil {
		return err
	}
	if err := a.mailer.SendContact(ctx, msg); err != nil {
		a.log.Warn().Err(err).Msg("deliver contact message")
	}
	return c.JSON(http.StatusOK, formResult{Success: true, Message: t("contact.success")})
}

type newsletterRequest struct {
	Name  string `json:"name" form:"name"`
	Email string `json:"email" form:"email"`
}

func (r newsletterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.RuneLength(2, 100)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
	)
}

func (a *App) handleNewsletterSubmit(c echo.Context) error {
	t := a.Catalog.Lang(Lang(c))
	if !a.formLimiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, formResult{Message: "Too many requests. Try again later."})
	}
	var req newsletterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, formResult{Message: t("newsletter.failed")})
	}
	req.Name, req.Email = strings.TrimSpace(req.Name), strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, formResult{Message: t("newsletter.failed"), Errors: fieldErrors(err)})
	}
	ctx := c.Request().Context()
	sub := Subscriber{Name: req.Name, Email: req.Email, Source: "newsletter"}
	created, err := a.Store.AddSubscriber(ctx, sub)
	if err != nil {
		return err
	}
	if created {
		if err := a.mailer.SendWelcome(ctx, sub); err != nil {
			a.log.Warn().Err(err).Msg("deliver newsletter welcome")
		}
	}
	return c.JSON(http.StatusOK, formResult{Success: true, Message: t("newsletter.success")})
}

// --- CMS posts ---

var postStatuses = []interface{}{StatusDraft, StatusPublished, StatusScheduled}

func validateCMSPost(p CMSPost) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&p.Content, validation.Required),
		validation.Field(&p.Status, validation.Required, validation.In(postStatuses...)),
		validation.Field(&p.FeaturedImage, is.RequestURI),
		validation.Field(&p.PublishedAt, validation.When(p.Status == StatusScheduled, validation.Required)),
	)
}

func (a *App) handleAPIListCMSPosts(c echo.Context) error {
	posts, err := a.Store.ListCMSPosts(c.Request().Context(), StatusPublished)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, posts)
}

func (a *App) handleAPIGetCMSPost(c echo.Context) error {
	post, err := a.Store.GetCMSPost(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) || (err == nil && post.Status != StatusPublished && !IsAdmin(c)) {
		return c.JSON(http.StatusNotFound, apiError{Error: "Blog not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleAPICreateCMSPost(c echo.Context) error {
	var p CMSPost
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Invalid request body"})
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if err := validateCMSPost(p); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Invalid blog post", Errors: fieldErrors(err)})
	}
	created, err := a.Store.CreateCMSPost(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (a *App) handleAPIUpdateCMSPost(c echo.Context) error {
	var patch CMSPostPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Invalid request body"})
	}
	ctx := c.Request().Context()
	current, err := a.Store.GetCMSPost(ctx, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, apiError{Error: "Blog not found"})
	}
	if err != nil {
		return err
	}
	merged := current
	patch.apply(&merged)
	if err := validateCMSPost(merged); err != nil {
		return c.JSON(http.StatusBadRequest, apiError{Error: "Invalid blog post", Errors: fieldErrors(err)})
	}
	updated, err := a.Store.UpdateCMSPost(ctx, current.ID, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (a *App) handleAPIDeleteCMSPost(c echo.Context) error {
	err := a.Store.DeleteCMSPost(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, apiError{Error: "Blog not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// --- admin session ---

type sessionStatus struct {
	State            string `json:"state"`
	Email            string `json:"email,omitempty"`
	MinutesRemaining int    `json:"minutes_remaining"`
	ShouldRefresh    bool   `json:"should_refresh"`
	CheckedAt        string `json:"checked_at"`
}

func (a *App) handleSessionStatus(c echo.Context) error {
	snap := a.Sessions.Snapshot()
	return c.JSON(http.StatusOK, sessionStatus{
		State:            snap.State.String(),
		Email:            snap.User.Email,
		MinutesRemaining: snap.MinutesRemaining,
		ShouldRefresh:    snap.ShouldRefresh,
		CheckedAt:        time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSessionRefresh refreshes on demand. A failure is reported to the
// caller and the admin stays signed in.
func (a *App) handleSessionRefresh(c echo.Context) error {
	return c.JSON(http.StatusOK, a.Sessions.RefreshSession(c.Request().Context()))
}

func (a *App) handleAPIStats(c echo.Context) error {
	stats, err := a.dashboardStats(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
