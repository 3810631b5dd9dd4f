package kalam

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Categories counted separately on the dashboard.
const (
	CategoryStory = "story"
	CategoryNovel = "novel"
	CategoryPoem  = "poem"
)

// DashboardStats counts CMS content and audience records and lists the five
// most recent changes. NotionPosts is left for the caller to fill.
func (s *Store) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var st DashboardStats
	counts := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&st.TotalBlogPosts, `SELECT COUNT(*) FROM blog_posts`, nil},
		{&st.PublishedPosts, `SELECT COUNT(*) FROM blog_posts WHERE status = ?`, []any{string(StatusPublished)}},
		{&st.DraftPosts, `SELECT COUNT(*) FROM blog_posts WHERE status = ?`, []any{string(StatusDraft)}},
		{&st.ScheduledPosts, `SELECT COUNT(*) FROM blog_posts WHERE status = ?`, []any{string(StatusScheduled)}},
		{&st.TotalStories, `SELECT COUNT(*) FROM blog_posts WHERE lower(category) = ?`, []any{CategoryStory}},
		{&st.TotalNovels, `SELECT COUNT(*) FROM blog_posts WHERE lower(category) = ?`, []any{CategoryNovel}},
		{&st.TotalPoems, `SELECT COUNT(*) FROM blog_posts WHERE lower(category) = ?`, []any{CategoryPoem}},
		{&st.TotalComments, `SELECT COUNT(*) FROM comments`, nil},
		{&st.PendingComments, `SELECT COUNT(*) FROM comments WHERE is_approved = 0`, nil},
		{&st.TotalSubscribers, `SELECT COUNT(*) FROM subscribers`, nil},
		{&st.ContactMessages, `SELECT COUNT(*) FROM contact_messages`, nil},
	}
	for _, c := range counts {
		n, err := s.count(ctx, c.query, c.args...)
		if err != nil {
			return DashboardStats{}, errors.Wrap(err, "count dashboard stats")
		}
		*c.dst = n
	}
	activity, err := s.recentActivity(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	st.RecentActivity = activity
	return st, nil
}

// recentActivity merges the three latest post updates with the two latest
// comments, newest first, capped at five.
func (s *Store) recentActivity(ctx context.Context) ([]Activity, error) {
	items := []Activity{}
	rows, err := s.db.QueryContext(ctx, `SELECT title, status, updated_at FROM blog_posts ORDER BY updated_at DESC LIMIT 3`)
	if err != nil {
		return nil, errors.Wrap(err, "recent posts")
	}
	for rows.Next() {
		var title, status, updatedAt string
		if err := rows.Scan(&title, &status, &updatedAt); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan recent post")
		}
		action := "updated"
		if PostStatus(status) == StatusPublished {
			action = "published"
		}
		items = append(items, Activity{Type: "blog_post", Title: title, Action: action, Timestamp: parseTime(updatedAt)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "recent posts")
	}

	comments, err := s.queryComments(ctx, `SELECT `+commentColumns+` FROM comments ORDER BY created_at DESC LIMIT 2`)
	if err != nil {
		return nil, errors.Wrap(err, "recent comments")
	}
	for _, c := range comments {
		items = append(items, Activity{
			Type:      "comment",
			Title:     "Comment: " + truncateRunes(c.CommentText, 50) + "...",
			Action:    "created",
			Timestamp: c.CreatedAt,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	if len(items) > 5 {
		items = items[:5]
	}
	return items, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
