package kalam

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalam-press/kalam/notion"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("  Hello, World!  "))
	assert.Equal(t, "cover-2024", Slugify("Cover 2024"))
	assert.Equal(t, "", Slugify("వర్షం"))
	assert.Equal(t, "a-b", Slugify("a -- b --"))
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://ravi.example/blogs/", BuildURL("https://ravi.example", "blogs"))
	assert.Equal(t, "https://ravi.example/blogs/abcd1234-rain/", BuildURL("https://ravi.example/", "blogs", "abcd1234-rain"))
	assert.Equal(t, "https://ravi.example/", siteRoot("https://ravi.example"))
	assert.Equal(t, "https://ravi.example/", siteRoot("https://ravi.example/"))
}

func TestFilterEmpty(t *testing.T) {
	assert.Equal(t, []string{"rain", "river"}, FilterEmpty([]string{" rain", "", "  ", "river "}))
	assert.Nil(t, FilterEmpty(nil))
}

func TestRelatedPostsSameCategory(t *testing.T) {
	current := notion.Post{ID: "1", Category: "story"}
	posts := []notion.Post{
		{ID: "1", Category: "story"},
		{ID: "2", Category: "poem"},
		{ID: "3", Category: "Story"},
		{ID: "4", Category: "story"},
		{ID: "5", Category: "story"},
		{ID: "6", Category: "story"},
	}
	got := RelatedPosts(current, posts, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, "5", got[2].ID)

	assert.Empty(t, RelatedPosts(notion.Post{ID: "2", Category: "poem"}, posts, 3))
	assert.Len(t, RelatedPosts(notion.Post{ID: "9"}, posts, 3), 3)
}

func TestArticleJsonLD(t *testing.T) {
	post := notion.Post{ID: "abcd1234-0000", Title: "Rain", Tags: []string{"monsoon", "river"}, Category: "story"}
	site := SiteConfig{Name: "Kalam", URL: "https://ravi.example", Author: "Ravi"}

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(ArticleJsonLD(post, site)), &doc))
	assert.Equal(t, "BlogPosting", doc["@type"])
	assert.Equal(t, ArticleURL(site.URL, post), doc["url"])
	assert.Equal(t, "monsoon, river", doc["keywords"])
	assert.Equal(t, "story", doc["articleSection"])
	assert.Equal(t, "Ravi", doc["author"].(map[string]any)["name"])
}
