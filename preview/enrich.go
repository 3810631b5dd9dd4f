package preview

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kalam-press/kalam/content"
)

const defaultConcurrency = 8

// Enricher attaches link previews to the link-bearing blocks of a document.
// It holds no per-document state and is safe for concurrent use.
type Enricher struct {
	fetcher     Fetcher
	opts        Options
	concurrency int
	log         zerolog.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithOptions sets the per-fetch timeout and user agent.
func WithOptions(o Options) EnricherOption {
	return func(e *Enricher) { e.opts = o.withDefaults() }
}

// WithConcurrency bounds the number of in-flight fetches per document.
func WithConcurrency(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger used for per-URL failures.
func WithLogger(l zerolog.Logger) EnricherOption {
	return func(e *Enricher) { e.log = l }
}

// NewEnricher returns an Enricher backed by f.
func NewEnricher(f Fetcher, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		fetcher:     f,
		opts:        Options{}.withDefaults(),
		concurrency: defaultConcurrency,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Preview fetches one URL. It never fails: errors, timeouts and panics in the
// fetcher become a preview carrying an error marker.
func (e *Enricher) Preview(ctx context.Context, rawURL string) (p content.LinkPreview) {
	defer func() {
		if r := recover(); r != nil {
			p = content.FailedPreview(rawURL, fmt.Sprint(r))
		}
		if p.Failed() {
			e.log.Warn().Str("url", rawURL).Str("reason", p.Error).Msg("link preview failed")
		}
	}()
	if e.fetcher == nil {
		return content.FailedPreview(rawURL, "no fetcher")
	}
	got, err := e.fetcher.Fetch(ctx, rawURL, e.opts)
	if err != nil {
		return content.FailedPreview(rawURL, err.Error())
	}
	if got.Error != "" {
		return content.FailedPreview(rawURL, got.Error)
	}
	if got.URL == "" {
		got.URL = rawURL
	}
	return got
}

// Enrich returns a copy of blocks in which every link-bearing block carries a
// preview. Each distinct URL is fetched once, fetches run concurrently, and
// output order equals input order. The input slice is not modified.
func (e *Enricher) Enrich(ctx context.Context, blocks []content.Block) []content.Block {
	out := make([]content.Block, len(blocks))
	copy(out, blocks)

	type target struct {
		index int
		block content.Linked
	}
	var targets []target
	var urls []string
	byURL := map[string]int{}
	for i, b := range blocks {
		lb, ok := b.(content.Linked)
		if !ok {
			continue
		}
		u := lb.LinkURL()
		if u == "" {
			continue
		}
		if _, seen := byURL[u]; !seen {
			byURL[u] = len(urls)
			urls = append(urls, u)
		}
		targets = append(targets, target{index: i, block: lb})
	}
	if len(targets) == 0 {
		return out
	}

	results := make([]content.LinkPreview, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = e.Preview(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	for _, t := range targets {
		p := results[byURL[t.block.LinkURL()]]
		out[t.index] = t.block.WithPreview(p.Clone())
	}
	return out
}
