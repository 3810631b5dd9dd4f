package kalam

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInvalidParent is returned when a reply names a comment that does not
// exist on the same post.
var ErrInvalidParent = errors.New("kalam: parent comment not found")

const commentColumns = `id, blog_slug, parent_id, author_name, author_email, comment_text, subscribes_to_newsletter, is_approved, created_at`

func scanComment(row rowScanner) (Comment, error) {
	var (
		c                    Comment
		subscribes, approved int
		createdAt            string
	)
	if err := row.Scan(&c.ID, &c.BlogSlug, &c.ParentID, &c.AuthorName, &c.AuthorEmail, &c.CommentText,
		&subscribes, &approved, &createdAt); err != nil {
		return Comment{}, err
	}
	c.SubscribesToNewsletter = subscribes == 1
	c.IsApproved = approved == 1
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func (s *Store) queryComments(ctx context.Context, query string, args ...any) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comments := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// ListComments returns the approved comments of a post, oldest first.
func (s *Store) ListComments(ctx context.Context, blogSlug string) ([]Comment, error) {
	comments, err := s.queryComments(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE blog_slug = ? AND is_approved = 1 ORDER BY created_at ASC`, blogSlug)
	return comments, errors.Wrap(err, "list comments")
}

// ListPendingComments returns comments awaiting moderation, newest first.
func (s *Store) ListPendingComments(ctx context.Context) ([]Comment, error) {
	comments, err := s.queryComments(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE is_approved = 0 ORDER BY created_at DESC`)
	return comments, errors.Wrap(err, "list pending comments")
}

// AddComment stores c with a fresh id and creation time. A reply must point
// at a comment of the same post. Commenters who opt in are added to the
// newsletter.
func (s *Store) AddComment(ctx context.Context, c Comment) (Comment, error) {
	if c.ParentID != "" {
		n, err := s.count(ctx, `SELECT COUNT(*) FROM comments WHERE id = ? AND blog_slug = ?`, c.ParentID, c.BlogSlug)
		if err != nil {
			return Comment{}, errors.Wrap(err, "check parent comment")
		}
		if n == 0 {
			return Comment{}, ErrInvalidParent
		}
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.now()
	c.Replies = nil
	_, err := s.db.ExecContext(ctx, `INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BlogSlug, c.ParentID, c.AuthorName, c.AuthorEmail, c.CommentText,
		boolInt(c.SubscribesToNewsletter), boolInt(c.IsApproved), formatTime(c.CreatedAt))
	if err != nil {
		return Comment{}, errors.Wrap(err, "insert comment")
	}
	if c.SubscribesToNewsletter {
		if _, err := s.AddSubscriber(ctx, Subscriber{Name: c.AuthorName, Email: c.AuthorEmail, Source: "comment"}); err != nil {
			return Comment{}, err
		}
	}
	return c, nil
}

// SetCommentApproved approves or hides a comment.
func (s *Store) SetCommentApproved(ctx context.Context, id string, approved bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET is_approved = ? WHERE id = ?`, boolInt(approved), id)
	if err != nil {
		return errors.Wrap(err, "moderate comment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteComment removes a comment and its replies.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ? OR parent_id = ?`, id, id)
	if err != nil {
		return errors.Wrap(err, "delete comment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ThreadComments nests replies under their parents. Roots and replies keep
// the input order; replies whose parent is missing become roots.
func ThreadComments(comments []Comment) []Comment {
	byID := make(map[string]int, len(comments))
	for i, c := range comments {
		byID[c.ID] = i
	}
	children := make(map[string][]int)
	var roots []int
	for i, c := range comments {
		if _, ok := byID[c.ParentID]; c.ParentID != "" && ok && c.ParentID != c.ID {
			children[c.ParentID] = append(children[c.ParentID], i)
			continue
		}
		roots = append(roots, i)
	}
	var build func(i int, depth int) Comment
	build = func(i int, depth int) Comment {
		c := comments[i]
		c.Replies = nil
		if depth > len(comments) {
			return c
		}
		for _, j := range children[c.ID] {
			c.Replies = append(c.Replies, build(j, depth+1))
		}
		return c
	}
	out := make([]Comment, 0, len(roots))
	for _, i := range roots {
		out = append(out, build(i, 0))
	}
	return out
}
