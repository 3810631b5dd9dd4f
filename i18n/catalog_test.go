package i18n

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := NewCatalog()
	assert.Equal(t, "No content available for this blog post.", c.T(English, "content.empty"))
	assert.Equal(t, "నాతో సంప్రదించండి", c.T(Telugu, "contact.title"))
	assert.Equal(t, "missing.key", c.T(Telugu, "missing.key"))
	assert.Equal(t, "Blog", c.T("fr", "blog.title"), "unknown languages fall back to English")
}

func TestPick(t *testing.T) {
	assert.Equal(t, Telugu, Pick(English, "", " TE "))
	assert.Equal(t, English, Pick(Telugu, "en", "te"))
	assert.Equal(t, Telugu, Pick(Telugu, "fr"))
	assert.Equal(t, English, Pick("de"))
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "copy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("te:\n  blog.title: \"రచనలు\"\n"), 0o644))

	c := NewCatalog()
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, "రచనలు", c.T(Telugu, "blog.title"))
	assert.Equal(t, "వ్యాఖ్యలు", c.T(Telugu, "comments.title"), "defaults survive overrides")

	require.NoError(t, os.WriteFile(path, []byte("te: [broken"), 0o644))
	assert.Error(t, c.LoadFile(path))
	assert.Equal(t, "రచనలు", c.T(Telugu, "blog.title"), "failed load keeps previous entries")
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "copy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("en:\n  blog.title: \"Journal\"\n"), 0o644))

	c := NewCatalog()
	require.NoError(t, c.LoadFile(path))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, path, zerolog.Nop()) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("en:\n  blog.title: \"Notebook\"\n"), 0o644)
		return c.T(English, "blog.title") == "Notebook"
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "Blog", NewCatalog().T(English, "blog.title"))
}
