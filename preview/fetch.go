// Package preview fetches page metadata for links embedded in article content.
package preview

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kalam-press/kalam/content"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultUserAgent = "Googlebot/2.1 (+http://www.google.com/bot.html)"

	maxBody = 2 << 20
)

// Options control a single fetch.
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// Fetcher retrieves metadata for one URL. Implementations may return an error
// or panic; the Enricher absorbs both.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts Options) (content.LinkPreview, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, rawURL string, opts Options) (content.LinkPreview, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string, opts Options) (content.LinkPreview, error) {
	return f(ctx, rawURL, opts)
}

// HTTPFetcher reads Open Graph, Twitter and standard meta tags from a page.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher using a client that follows redirects.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{}}
}

// Fetch performs one GET with no retry.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, opts Options) (content.LinkPreview, error) {
	opts = opts.withDefaults()
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return content.LinkPreview{}, errors.New("invalid URL")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return content.LinkPreview{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return content.LinkPreview{}, errors.New("timeout")
		}
		return content.LinkPreview{}, errors.Wrap(err, "fetch")
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return content.LinkPreview{}, errors.Errorf("status %d", res.StatusCode)
	}

	final := res.Request.URL
	mediaType, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "image/") {
		return content.LinkPreview{
			URL:      rawURL,
			Images:   []string{final.String()},
			Favicons: []string{defaultFavicon(final)},
		}, nil
	}
	if mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		return content.LinkPreview{URL: rawURL, Title: final.String(), Images: []string{}, Favicons: []string{defaultFavicon(final)}}, nil
	}

	doc, err := html.Parse(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return content.LinkPreview{}, errors.Wrap(err, "parse html")
	}
	p := extract(doc, final)
	p.URL = rawURL
	return p, nil
}

type metaSet struct {
	props map[string][]string
	title string
	icons []string
	imgs  []string
}

// extract walks the document collecting head metadata and body images.
func extract(doc *html.Node, base *url.URL) content.LinkPreview {
	m := metaSet{props: map[string][]string{}}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if m.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					m.title = strings.TrimSpace(n.FirstChild.Data)
				}
			case atom.Meta:
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				if val := strings.TrimSpace(attr(n, "content")); key != "" && val != "" {
					m.props[key] = append(m.props[key], val)
				}
			case atom.Link:
				rel := strings.ToLower(attr(n, "rel"))
				if strings.Contains(rel, "icon") {
					if href := resolve(base, attr(n, "href")); href != "" {
						m.icons = append(m.icons, href)
					}
				}
			case atom.Img:
				if src := resolve(base, attr(n, "src")); src != "" {
					m.imgs = append(m.imgs, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p := content.LinkPreview{
		Title:       first(m.props["og:title"], m.props["twitter:title"], []string{m.title}),
		Description: first(m.props["og:description"], m.props["twitter:description"], m.props["description"]),
		SiteName:    first(m.props["og:site_name"]),
		Images:      []string{},
		Favicons:    []string{},
	}
	images := m.props["og:image"]
	if len(images) == 0 {
		images = m.props["twitter:image"]
	}
	if len(images) == 0 {
		images = m.imgs
	}
	seen := map[string]bool{}
	for _, img := range images {
		if abs := resolve(base, img); abs != "" && !seen[abs] {
			seen[abs] = true
			p.Images = append(p.Images, abs)
		}
	}
	p.Favicons = append(p.Favicons, m.icons...)
	if len(p.Favicons) == 0 {
		p.Favicons = append(p.Favicons, defaultFavicon(base))
	}
	return p
}

func first(lists ...[]string) string {
	for _, l := range lists {
		for _, v := range l {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

func defaultFavicon(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/favicon.ico"}).String()
}
