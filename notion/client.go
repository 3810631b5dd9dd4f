// Package notion is the content source for the Notion-backed blog. It lists
// published posts from a database and fetches a page's blocks, decoding them at
// the boundary into content.Block values.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kalam-press/kalam/content"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"
	pageSize       = 100
)

// ErrNotFound is returned when a page or database does not exist.
var ErrNotFound = errors.New("notion: not found")

// Config holds client credentials and endpoints.
type Config struct {
	Token         string
	DatabaseID    string
	BaseURL       string
	Version       string
	DefaultAuthor string
}

// Client talks to the Notion REST API.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a Client for cfg.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queryRequest struct {
	Filter      any    `json:"filter,omitempty"`
	Sorts       []any  `json:"sorts,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

type listResponse[T any] struct {
	Results    []T    `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// ListPublishedPosts returns database pages whose Status is Published, newest
// first by Published Date.
func (c *Client) ListPublishedPosts(ctx context.Context) ([]Post, error) {
	if c.cfg.DatabaseID == "" {
		return nil, errors.New("notion: database id not configured")
	}
	var posts []Post
	cursor := ""
	for {
		req := queryRequest{
			Filter: map[string]any{
				"property": "Status",
				"select":   map[string]string{"equals": "Published"},
			},
			Sorts: []any{map[string]string{
				"property":  "Published Date",
				"direction": "descending",
			}},
			StartCursor: cursor,
			PageSize:    pageSize,
		}
		var resp listResponse[rawPage]
		path := "/databases/" + url.PathEscape(c.cfg.DatabaseID) + "/query"
		if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
			return nil, errors.Wrap(err, "query database")
		}
		for _, p := range resp.Results {
			posts = append(posts, p.toPost(c.cfg.DefaultAuthor))
		}
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return posts, nil
}

// GetBlocks returns the decoded top-level blocks of a page. Unrecognized or
// malformed blocks are dropped.
func (c *Client) GetBlocks(ctx context.Context, pageID string) ([]content.Block, error) {
	var blocks []content.Block
	cursor := ""
	for {
		q := url.Values{}
		q.Set("page_size", fmt.Sprint(pageSize))
		if cursor != "" {
			q.Set("start_cursor", cursor)
		}
		path := "/blocks/" + url.PathEscape(pageID) + "/children?" + q.Encode()
		var resp listResponse[RawBlock]
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, errors.Wrapf(err, "list blocks of %s", pageID)
		}
		for _, raw := range resp.Results {
			b, ok := DecodeBlock(raw)
			if !ok {
				c.log.Debug().Str("block", raw.ID).Str("type", raw.Type).Msg("skipping block")
				continue
			}
			blocks = append(blocks, b)
		}
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return blocks, nil
}

type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, r)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Notion-Version", c.cfg.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.StatusCode >= 300 {
		var ae apiError
		_ = json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&ae)
		return errors.Errorf("notion api %d %s: %s", res.StatusCode, ae.Code, ae.Message)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
