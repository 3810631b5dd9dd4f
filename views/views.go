// Package views holds the default pages of a kalam site. Pages are Go
// html/template files wrapped as templ components, so a site can swap any of
// them for its own templ views one field at a time.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/kalam-press/kalam"
	"github.com/kalam-press/kalam/notion"
)

//go:embed templates/*.html
var files embed.FS

var pages = template.Must(template.New("kalam").Funcs(funcs).ParseFS(files, "templates/*.html"))

// data is what every page template receives. Views fill only the fields
// their page shows.
type data struct {
	Page      kalam.Page
	Featured  []notion.Post
	Posts     []notion.Post
	Related   []notion.Post
	Tags      []string
	ActiveTag string
	Category  string
	Article   kalam.Article
	Comments  []kalam.Comment
	CMSPosts  []kalam.CMSPost
	CMSPost   kalam.CMSPost
	Body      template.HTML
	ShowError bool
	Dashboard kalam.Dashboard
	Images    []kalam.Image
	JSONLD    template.JS
}

// Default returns the built-in views for every page.
func Default() kalam.ViewFuncs {
	return kalam.ViewFuncs{
		Home: func(p kalam.Page, featured []notion.Post, latest []kalam.CMSPost) templ.Component {
			return view("home", data{Page: p, Featured: featured, CMSPosts: latest, JSONLD: template.JS(kalam.WebsiteJsonLD(p.Site))}, nil)
		},
		BlogList: func(p kalam.Page, posts []notion.Post, tags []string, activeTag string) templ.Component {
			return view("blogs", data{Page: p, Posts: posts, Tags: tags, ActiveTag: activeTag}, nil)
		},
		Article: func(p kalam.Page, a kalam.Article, body templ.Component, related []notion.Post, comments []kalam.Comment) templ.Component {
			return view("article", data{
				Page:     p,
				Article:  a,
				Related:  related,
				Comments: comments,
				JSONLD:   template.JS(kalam.ArticleJsonLD(a.Post, p.Site)),
			}, body)
		},
		Category: func(p kalam.Page, category string, posts []notion.Post) templ.Component {
			return view("category", data{Page: p, Category: category, Posts: posts}, nil)
		},
		CMSList: func(p kalam.Page, posts []kalam.CMSPost) templ.Component {
			return view("cms_list", data{Page: p, CMSPosts: posts}, nil)
		},
		CMSPost: func(p kalam.Page, post kalam.CMSPost, body templ.Component) templ.Component {
			return view("cms_post", data{Page: p, CMSPost: post}, body)
		},
		About: func(p kalam.Page) templ.Component {
			return view("about", data{Page: p}, nil)
		},
		Contact: func(p kalam.Page) templ.Component {
			return view("contact", data{Page: p}, nil)
		},
		AdminLogin: func(p kalam.Page, showError bool) templ.Component {
			return view("admin_login", data{Page: p, ShowError: showError}, nil)
		},
		AdminDashboard: func(p kalam.Page, d kalam.Dashboard) templ.Component {
			return view("admin_dashboard", data{Page: p, Dashboard: d}, nil)
		},
		AdminPostForm: func(p kalam.Page, post kalam.CMSPost) templ.Component {
			return view("admin_post", data{Page: p, CMSPost: post}, nil)
		},
		AdminImages: func(p kalam.Page, images []kalam.Image) templ.Component {
			return view("admin_images", data{Page: p, Images: images}, nil)
		},
		NotFound: func(p kalam.Page) templ.Component {
			return view("not_found", data{Page: p}, nil)
		},
		ServerError: func(p kalam.Page) templ.Component {
			return view("server_error", data{Page: p}, nil)
		},
	}
}

// view renders the named page template. A body component is rendered first
// and handed to the template as trusted HTML.
func view(name string, d data, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if body != nil {
			html, err := templ.ToGoHTML(ctx, body)
			if err != nil {
				return err
			}
			d.Body = html
		}
		return templ.FromGoHTML(pages.Lookup(name), d).Render(ctx, w)
	})
}
