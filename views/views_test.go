package views

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalam-press/kalam"
	"github.com/kalam-press/kalam/auth"
	"github.com/kalam-press/kalam/i18n"
	"github.com/kalam-press/kalam/notion"
	"github.com/kalam-press/kalam/session"
)

func testPage(lang string) kalam.Page {
	cat := i18n.NewCatalog()
	return kalam.Page{
		Site: kalam.SiteConfig{Name: "Kalam", URL: "https://kalam.example", Author: "Ravi", Email: "ravi@kalam.example"},
		Lang: lang,
		T:    cat.Lang(lang),
		Meta: kalam.PageMeta{Title: "Kalam", URL: "https://kalam.example/", OGType: "website"},
		CSRF: "tok123",
	}
}

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

var samplePost = notion.Post{
	ID:            "1234abcd-0000-0000-0000-000000000000",
	Title:         "River Song",
	Summary:       "A story by the river",
	PublishedDate: "2024-03-05",
	Category:      "story",
	Author:        "Ravi",
	ReadingTime:   4,
	Tags:          []string{"river", "memory"},
}

func TestHomeListsFeaturedAndLatest(t *testing.T) {
	published := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	out := renderString(t, Default().Home(testPage(i18n.English), []notion.Post{samplePost},
		[]kalam.CMSPost{{ID: "p1", Title: "Monsoon", Content: "Rain on the roof.", PublishedAt: &published}}))

	assert.Contains(t, out, `<html lang="en">`)
	assert.Contains(t, out, "Featured")
	assert.Contains(t, out, `href="/blogs/1234abcd-river-song/"`)
	assert.Contains(t, out, "5 Mar 2024")
	assert.Contains(t, out, `href="/ravi_blogs/p1/"`)
	assert.Contains(t, out, "Rain on the roof.")
	assert.Contains(t, out, `"@type":"WebSite"`)
	assert.Contains(t, out, `content="tok123"`)
}

func TestPagesUseTeluguCopy(t *testing.T) {
	out := renderString(t, Default().Contact(testPage(i18n.Telugu)))
	assert.Contains(t, out, "నాతో సంప్రదించండి")
	assert.Contains(t, out, `href="?lang=en"`)
	assert.Contains(t, out, `action="/api/contact"`)
}

func TestBlogListMarksActiveTag(t *testing.T) {
	out := renderString(t, Default().BlogList(testPage(i18n.English), []notion.Post{samplePost}, []string{"memory", "river"}, "river"))
	assert.Contains(t, out, `href="/blogs/?tag=river" class="tag active"`)
	assert.Contains(t, out, `href="/blogs/?tag=memory" class="tag"`)
}

func TestBlogListEmpty(t *testing.T) {
	out := renderString(t, Default().BlogList(testPage(i18n.English), nil, nil, ""))
	assert.Contains(t, out, "No posts yet.")
}

func TestArticleEmbedsBodyAndThread(t *testing.T) {
	body := templ.Raw(`<p class="block">Once upon a time</p>`)
	comments := []kalam.Comment{{
		ID:          "c1",
		AuthorName:  "Sita",
		CommentText: "Lovely <3",
		CreatedAt:   time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
		Replies:     []kalam.Comment{{ID: "c2", ParentID: "c1", AuthorName: "Ravi", CommentText: "Thank you"}},
	}}
	out := renderString(t, Default().Article(testPage(i18n.English), kalam.Article{Post: samplePost}, body, nil, comments))

	assert.Contains(t, out, `<p class="block">Once upon a time</p>`)
	assert.Contains(t, out, "Lovely &lt;3")
	assert.Contains(t, out, `id="comment-c2"`)
	assert.Contains(t, out, `name="blog_slug" value="1234abcd-river-song"`)
	assert.Contains(t, out, `"@type":"BlogPosting"`)
	assert.Contains(t, out, "4 min read")
}

func TestCMSPostRendersBody(t *testing.T) {
	out := renderString(t, Default().CMSPost(testPage(i18n.English),
		kalam.CMSPost{ID: "p1", Title: "Monsoon", Tags: []string{"rain"}}, templ.Raw("<h2>Rain</h2>")))
	assert.Contains(t, out, "<h1>Monsoon</h1>")
	assert.Contains(t, out, "<h2>Rain</h2>")
	assert.Contains(t, out, `<span class="tag">rain</span>`)
}

func TestAdminLoginShowsError(t *testing.T) {
	out := renderString(t, Default().AdminLogin(testPage(i18n.English), true))
	assert.Contains(t, out, "Invalid email or password.")
	assert.Contains(t, out, `name="_csrf" value="tok123"`)

	out = renderString(t, Default().AdminLogin(testPage(i18n.English), false))
	assert.NotContains(t, out, "Invalid email or password.")
}

func TestAdminDashboard(t *testing.T) {
	d := kalam.Dashboard{
		Stats: kalam.DashboardStats{TotalBlogPosts: 3, TotalPoems: 2, RecentActivity: []kalam.Activity{
			{Type: "blog_post", Title: "Monsoon", Action: "published", Timestamp: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)},
		}},
		Posts:   []kalam.CMSPost{{ID: "p1", Title: "Monsoon", Status: kalam.StatusPublished}},
		Pending: []kalam.Comment{{ID: "c9", BlogSlug: "1234abcd-river-song", AuthorName: "Spam"}},
		Session: session.Snapshot{State: session.RefreshScheduled, User: auth.User{Email: "ravi@kalam.example"}, MinutesRemaining: 42},
		Message: "Post saved.",
	}
	out := renderString(t, Default().AdminDashboard(testPage(i18n.English), d))

	assert.Contains(t, out, "Post saved.")
	assert.Contains(t, out, "<strong>3</strong> posts")
	assert.Contains(t, out, "<strong>2</strong> poems")
	assert.Contains(t, out, "refresh_scheduled")
	assert.Contains(t, out, "ravi@kalam.example")
	assert.Contains(t, out, `class="session-minutes">42<`)
	assert.Contains(t, out, `action="/admin/comments/c9/approve/"`)
	assert.Contains(t, out, `action="/admin/posts/p1/delete/"`)
	assert.Contains(t, out, "Monsoon &middot; published")
}

func TestAdminPostFormSelectsStatus(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	post := kalam.CMSPost{ID: "p1", Title: "Later", Status: kalam.StatusScheduled, Category: "poem", Tags: []string{"a", "b"}, PublishedAt: &at}
	out := renderString(t, Default().AdminPostForm(testPage(i18n.English), post))

	assert.Contains(t, out, `<option value="scheduled" selected>`)
	assert.Contains(t, out, `<option value="poem" selected>`)
	assert.Contains(t, out, `value="a, b"`)
	assert.Contains(t, out, `value="2024-05-01T09:30"`)
}

func TestAdminImages(t *testing.T) {
	out := renderString(t, Default().AdminImages(testPage(i18n.English), []kalam.Image{{Filename: "cover.jpg", Width: 800, Height: 600}}))
	assert.Contains(t, out, `src="/public/uploads/cover.jpg"`)
	assert.Contains(t, out, `action="/admin/images/cover.jpg/delete/"`)
}

func TestErrorPages(t *testing.T) {
	assert.Contains(t, renderString(t, Default().NotFound(testPage(i18n.English))), "Page not found")
	assert.Contains(t, renderString(t, Default().ServerError(testPage(i18n.English))), "Something went wrong")
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2 Jan 2024", formatDate(ts))
	assert.Equal(t, "2 Jan 2024", formatDate(&ts))
	assert.Equal(t, "2 Jan 2024", formatDate("2024-01-02"))
	assert.Equal(t, "soon", formatDate("soon"))
	assert.Equal(t, "", formatDate((*time.Time)(nil)))
	assert.Equal(t, "", formatDate(time.Time{}))
}
