// Package i18n holds the site's Telugu and English interface copy.
package i18n

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	Telugu  = "te"
	English = "en"
)

//go:embed default.yaml
var defaultCatalog []byte

// Supported reports whether lang is a site language.
func Supported(lang string) bool {
	return lang == Telugu || lang == English
}

// Pick returns the first supported language among candidates, or fallback.
func Pick(fallback string, candidates ...string) string {
	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if Supported(c) {
			return c
		}
	}
	if Supported(fallback) {
		return fallback
	}
	return English
}

// Catalog maps language and key to text. Overrides loaded from a file are
// layered on top of the embedded defaults.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
}

// NewCatalog returns a catalog holding the embedded defaults.
func NewCatalog() *Catalog {
	c := &Catalog{}
	entries, err := parse(defaultCatalog)
	if err != nil {
		panic("i18n: embedded catalog: " + err.Error())
	}
	c.entries = entries
	return c
}

func parse(data []byte) (map[string]map[string]string, error) {
	out := map[string]map[string]string{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "parse catalog")
	}
	return out, nil
}

// LoadFile replaces overrides with the contents of path, keeping defaults for
// keys the file does not define.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read catalog %s", path)
	}
	overrides, err := parse(data)
	if err != nil {
		return err
	}
	merged, _ := parse(defaultCatalog)
	for lang, kv := range overrides {
		if merged[lang] == nil {
			merged[lang] = map[string]string{}
		}
		for k, v := range kv {
			merged[lang][k] = v
		}
	}
	c.mu.Lock()
	c.entries = merged
	c.mu.Unlock()
	return nil
}

// T returns the text for key in lang, falling back to English and then to
// the key itself.
func (c *Catalog) T(lang, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.entries[lang][key]; ok {
		return v
	}
	if v, ok := c.entries[English][key]; ok {
		return v
	}
	return key
}

// Lang returns a lookup bound to one language.
func (c *Catalog) Lang(lang string) func(key string) string {
	return func(key string) string { return c.T(lang, key) }
}

// Watch reloads path whenever it changes until ctx is cancelled. The parent
// directory is watched so editors that replace the file are picked up.
func (c *Catalog) Watch(ctx context.Context, path string, log zerolog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve catalog path")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrap(err, "watch catalog dir")
	}
	log.Info().Str("path", abs).Msg("watching copy catalog")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if err := c.LoadFile(abs); err != nil {
				log.Warn().Err(err).Msg("reload copy catalog")
				continue
			}
			log.Info().Str("path", abs).Msg("copy catalog reloaded")
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(werr).Msg("catalog watcher")
		}
	}
}
