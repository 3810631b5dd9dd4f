package kalam

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const cmsPostColumns = `id, title, content, slug, excerpt, featured_image, status, category, tags, created_at, updated_at, published_at`

// CMSPostPatch holds the fields of a partial CMS post update. Nil fields are
// left unchanged.
type CMSPostPatch struct {
	Title         *string     `json:"title"`
	Content       *string     `json:"content"`
	Slug          *string     `json:"slug"`
	Excerpt       *string     `json:"excerpt"`
	FeaturedImage *string     `json:"featured_image"`
	Status        *PostStatus `json:"status"`
	Category      *string     `json:"category"`
	Tags          *[]string   `json:"tags"`
	PublishedAt   *time.Time  `json:"published_at"`
}

func (p CMSPostPatch) apply(post *CMSPost) {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Slug != nil {
		post.Slug = *p.Slug
	}
	if p.Excerpt != nil {
		post.Excerpt = *p.Excerpt
	}
	if p.FeaturedImage != nil {
		post.FeaturedImage = *p.FeaturedImage
	}
	if p.Status != nil {
		post.Status = *p.Status
	}
	if p.Category != nil {
		post.Category = *p.Category
	}
	if p.Tags != nil {
		post.Tags = *p.Tags
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		post.PublishedAt = &t
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCMSPost(row rowScanner) (CMSPost, error) {
	var (
		p                    CMSPost
		status, tags         string
		createdAt, updatedAt string
		publishedAt          sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Slug, &p.Excerpt, &p.FeaturedImage,
		&status, &p.Category, &tags, &createdAt, &updatedAt, &publishedAt); err != nil {
		return CMSPost{}, err
	}
	p.Status = PostStatus(status)
	p.Tags = ParseTags(tags)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	if publishedAt.Valid && publishedAt.String != "" {
		t := parseTime(publishedAt.String)
		p.PublishedAt = &t
	}
	return p, nil
}

// ListCMSPosts returns CMS posts with the given status. Published posts are
// ordered by publication date, everything else by last update, newest first.
// An empty status lists every post.
func (s *Store) ListCMSPosts(ctx context.Context, status PostStatus) ([]CMSPost, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch status {
	case "":
		rows, err = s.db.QueryContext(ctx, `SELECT `+cmsPostColumns+` FROM blog_posts ORDER BY updated_at DESC`)
	case StatusPublished:
		rows, err = s.db.QueryContext(ctx, `SELECT `+cmsPostColumns+` FROM blog_posts WHERE status = ? ORDER BY published_at DESC`, status)
	default:
		rows, err = s.db.QueryContext(ctx, `SELECT `+cmsPostColumns+` FROM blog_posts WHERE status = ? ORDER BY updated_at DESC`, status)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list cms posts")
	}
	defer rows.Close()

	posts := []CMSPost{}
	for rows.Next() {
		p, err := scanCMSPost(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan cms post")
		}
		posts = append(posts, p)
	}
	return posts, errors.Wrap(rows.Err(), "list cms posts")
}

// GetCMSPost returns a post by id regardless of status.
func (s *Store) GetCMSPost(ctx context.Context, id string) (CMSPost, error) {
	p, err := scanCMSPost(s.db.QueryRowContext(ctx, `SELECT `+cmsPostColumns+` FROM blog_posts WHERE id = ?`, id))
	if err != nil {
		return CMSPost{}, notFound(err)
	}
	return p, nil
}

// CreateCMSPost inserts p with a fresh id and timestamps. The slug defaults to
// the slugified title and is made unique.
func (s *Store) CreateCMSPost(ctx context.Context, p CMSPost) (CMSPost, error) {
	now := s.now()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.Status == StatusPublished && p.PublishedAt == nil {
		p.PublishedAt = &now
	}
	slug, err := s.uniqueSlug(ctx, p.Slug, p.Title, p.ID)
	if err != nil {
		return CMSPost{}, err
	}
	p.Slug = slug
	if p.Tags == nil {
		p.Tags = []string{}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO blog_posts (`+cmsPostColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Content, p.Slug, p.Excerpt, p.FeaturedImage, string(p.Status), p.Category,
		joinTags(p.Tags), formatTime(p.CreatedAt), formatTime(p.UpdatedAt), nullTime(p.PublishedAt))
	if err != nil {
		return CMSPost{}, errors.Wrap(err, "insert cms post")
	}
	return s.GetCMSPost(ctx, p.ID)
}

// UpdateCMSPost applies patch to the post with the given id.
func (s *Store) UpdateCMSPost(ctx context.Context, id string, patch CMSPostPatch) (CMSPost, error) {
	p, err := s.GetCMSPost(ctx, id)
	if err != nil {
		return CMSPost{}, err
	}
	patch.apply(&p)
	p.UpdatedAt = s.now()
	if p.Status == StatusPublished && p.PublishedAt == nil {
		now := p.UpdatedAt
		p.PublishedAt = &now
	}
	if patch.Slug != nil || patch.Title != nil {
		requested := ""
		if patch.Slug != nil {
			requested = p.Slug
		}
		slug, err := s.uniqueSlug(ctx, requested, p.Title, p.ID)
		if err != nil {
			return CMSPost{}, err
		}
		p.Slug = slug
	}
	_, err = s.db.ExecContext(ctx, `UPDATE blog_posts SET title = ?, content = ?, slug = ?, excerpt = ?, featured_image = ?,
		status = ?, category = ?, tags = ?, updated_at = ?, published_at = ? WHERE id = ?`,
		p.Title, p.Content, p.Slug, p.Excerpt, p.FeaturedImage, string(p.Status), p.Category,
		joinTags(p.Tags), formatTime(p.UpdatedAt), nullTime(p.PublishedAt), p.ID)
	if err != nil {
		return CMSPost{}, errors.Wrap(err, "update cms post")
	}
	return s.GetCMSPost(ctx, id)
}

// DeleteCMSPost removes a post by id.
func (s *Store) DeleteCMSPost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete cms post")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PublishDuePosts flips scheduled posts whose publication time has passed to
// published and returns how many changed.
func (s *Store) PublishDuePosts(ctx context.Context) (int, error) {
	now := formatTime(s.now())
	res, err := s.db.ExecContext(ctx, `UPDATE blog_posts SET status = ?, updated_at = ?
		WHERE status = ? AND published_at IS NOT NULL AND published_at <= ?`,
		string(StatusPublished), now, string(StatusScheduled), now)
	if err != nil {
		return 0, errors.Wrap(err, "publish scheduled posts")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// uniqueSlug returns slug (or the slugified title, or a short id when both
// are empty) with a numeric suffix when another post already uses it.
func (s *Store) uniqueSlug(ctx context.Context, slug, title, id string) (string, error) {
	base := Slugify(slug)
	if base == "" {
		base = Slugify(title)
	}
	if base == "" {
		base = strings.ReplaceAll(id, "-", "")[:8]
	}
	candidate := base
	for counter := 2; ; counter++ {
		n, err := s.count(ctx, `SELECT COUNT(*) FROM blog_posts WHERE slug = ? AND id != ?`, candidate, id)
		if err != nil {
			return "", errors.Wrap(err, "check slug")
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
