package kalam

import (
	"time"

	"github.com/kalam-press/kalam/content"
	"github.com/kalam-press/kalam/notion"
)

// PostStatus is the publication state of a CMS post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
	StatusScheduled PostStatus = "scheduled"
)

// CMSPost is an entry of the alternate, database-backed blog.
type CMSPost struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Slug          string     `json:"slug"`
	Excerpt       string     `json:"excerpt,omitempty"`
	FeaturedImage string     `json:"featured_image,omitempty"`
	Status        PostStatus `json:"status"`
	Category      string     `json:"category,omitempty"`
	Tags          []string   `json:"tags"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// Comment is a reader comment on a blog post. Replies is only filled in
// thread views.
type Comment struct {
	ID                     string    `json:"id"`
	BlogSlug               string    `json:"blog_slug"`
	ParentID               string    `json:"parent_id,omitempty"`
	AuthorName             string    `json:"author_name"`
	AuthorEmail            string    `json:"-"`
	CommentText            string    `json:"comment_text"`
	SubscribesToNewsletter bool      `json:"subscribes_to_newsletter"`
	IsApproved             bool      `json:"is_approved"`
	CreatedAt              time.Time `json:"created_at"`
	Replies                []Comment `json:"replies,omitempty"`
}

// Subscriber is a newsletter signup.
type Subscriber struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactMessage is a message sent through the contact form.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Image holds metadata about an uploaded image.
type Image struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
	UploadedAt   string `json:"uploaded_at"`
}

// URL returns the public path of the image.
func (i Image) URL() string {
	return "/public/" + uploadsSubdir + "/" + i.Filename
}

// Activity is one line of the dashboard's recent activity list.
type Activity struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// DashboardStats summarizes site content for the admin dashboard.
type DashboardStats struct {
	TotalBlogPosts   int        `json:"total_blog_posts"`
	PublishedPosts   int        `json:"published_posts"`
	DraftPosts       int        `json:"draft_posts"`
	ScheduledPosts   int        `json:"scheduled_posts"`
	TotalStories     int        `json:"total_stories"`
	TotalNovels      int        `json:"total_novels"`
	TotalPoems       int        `json:"total_poems"`
	NotionPosts      int        `json:"notion_posts"`
	TotalComments    int        `json:"total_comments"`
	PendingComments  int        `json:"pending_comments"`
	TotalSubscribers int        `json:"total_subscribers"`
	ContactMessages  int        `json:"contact_messages"`
	RecentActivity   []Activity `json:"recent_activity"`
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}

// Page is the context every page view receives.
type Page struct {
	Site SiteConfig
	Lang string
	T    func(key string) string
	Meta PageMeta
	CSRF string
}

// Article is a Notion post with its enriched blocks.
type Article struct {
	Post   notion.Post     `json:"post"`
	Blocks []content.Block `json:"-"`
}
