package kalam

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kalam-press/kalam/notion"
)

// PostCache is an in-memory cache of published Notion posts and their tags with TTL.
type PostCache struct {
	mu      sync.RWMutex
	posts   []notion.Post
	tags    []string
	fetched time.Time
	ttl     time.Duration
	source  ContentSource
	now     func() time.Time
}

// NewPostCache creates a PostCache backed by the given content source.
func NewPostCache(src ContentSource, ttl time.Duration) *PostCache {
	return &PostCache{source: src, ttl: ttl, now: time.Now}
}

func (c *PostCache) valid() bool {
	return c.posts != nil && c.now().Sub(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.tags = nil
	c.mu.Unlock()
}

func (c *PostCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	posts, err := c.source.ListPublishedPosts(ctx)
	if err != nil {
		return errors.Wrap(err, "load posts")
	}
	if posts == nil {
		posts = []notion.Post{}
	}
	set := make(map[string]struct{})
	for _, p := range posts {
		for _, t := range p.Tags {
			if t = normalizeTag(t); t != "" {
				set[t] = struct{}{}
			}
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	c.posts = posts
	c.tags = tags
	c.fetched = c.now()
	return nil
}

// ensureLoaded returns cached posts and tags after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *PostCache) ensureLoaded(ctx context.Context) ([]notion.Post, []string, error) {
	c.mu.RLock()
	if c.valid() {
		posts, tags := c.posts, c.tags
		c.mu.RUnlock()
		return posts, tags, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, err
	}
	return c.posts, c.tags, nil
}

// PostFilter narrows a post listing.
type PostFilter struct {
	Category string
	Tag      string
	// Exclude drops the post with this id or slug.
	Exclude string
}

func (f PostFilter) match(p notion.Post) bool {
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Exclude != "" && (p.ID == f.Exclude || p.URLSlug() == f.Exclude || p.Slug == f.Exclude) {
		return false
	}
	if f.Tag != "" {
		want := normalizeTag(f.Tag)
		for _, t := range p.Tags {
			if normalizeTag(t) == want {
				return true
			}
		}
		return false
	}
	return true
}

// ListPosts returns published posts matching f, newest first.
func (c *PostCache) ListPosts(ctx context.Context, f PostFilter) ([]notion.Post, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if f == (PostFilter{}) {
		return posts, nil
	}
	filtered := []notion.Post{}
	for _, p := range posts {
		if f.match(p) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// ListTags returns all unique tags from published posts.
func (c *PostCache) ListTags(ctx context.Context) ([]string, error) {
	_, tags, err := c.ensureLoaded(ctx)
	return tags, err
}

// GetPost returns a single published post by its URL slug. The stored slug
// and the page id are accepted too.
func (c *PostCache) GetPost(ctx context.Context, slug string) (notion.Post, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return notion.Post{}, err
	}
	for _, p := range posts {
		if p.URLSlug() == slug || p.Slug == slug || p.ID == slug {
			return p, nil
		}
	}
	return notion.Post{}, ErrNotFound
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
