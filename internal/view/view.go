// Package view renders the site's HTML pages and fragments from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"time"

	"github.com/spacetraveling/internal/locale"
	"github.com/spacetraveling/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

const ContentTypeHTML = "text/html; charset=utf-8"

// 页面共用 layout；片段可单独渲染
var (
	pageFiles = map[string]string{
		"home":      "templates/home.html",
		"post":      "templates/post.html",
		"not_found": "templates/not_found.html",
		"error":     "templates/error.html",
	}
	sharedFiles = []string{
		"templates/layout.html",
		"templates/post_cards.html",
		"templates/comments.html",
		"templates/load_more_error.html",
	}
	fragments = map[string]bool{
		"post_cards":      true,
		"load_more_error": true,
	}
)

var templates = mustParse()

func funcMap() template.FuncMap {
	return template.FuncMap{
		"t": locale.Text,
		"formatDate": func(t time.Time, lang string) string {
			return locale.FormatDate(t, lang)
		},
		"formatEdited": func(t *time.Time, lang string) string {
			if t == nil {
				return ""
			}
			return locale.FormatEdited(*t, lang)
		},
		"readingTime": locale.FormatReadingTime,
		"iso": func(t time.Time) string {
			return t.UTC().Format(time.RFC3339)
		},
	}
}

func mustParse() map[string]*template.Template {
	base := template.Must(template.New("base").Funcs(funcMap()).ParseFS(templateFS, sharedFiles...))

	out := make(map[string]*template.Template, len(pageFiles)+1)
	for name, file := range pageFiles {
		page := template.Must(template.Must(base.Clone()).ParseFS(templateFS, file))
		out[name] = page
	}
	out[""] = base
	return out
}

// Render writes the named page (wrapped in the layout) or fragment to w.
func Render(w io.Writer, name string, data interface{}) error {
	if fragments[name] {
		return templates[""].ExecuteTemplate(w, name, data)
	}
	page, ok := templates[name]
	if !ok || name == "" {
		return fmt.Errorf("view: unknown template %q", name)
	}
	return page.ExecuteTemplate(w, "layout", data)
}

// RenderPage renders name into a cacheable page with the given status.
func RenderPage(status int, name string, data interface{}) (*service.RenderedPage, error) {
	var buf bytes.Buffer
	if err := Render(&buf, name, data); err != nil {
		return nil, err
	}
	return &service.RenderedPage{Status: status, ContentType: ContentTypeHTML, Body: buf.Bytes()}, nil
}

// LoadMoreURL is the fragment endpoint that loads the page at cursor.
func LoadMoreURL(cursor string) string {
	if cursor == "" {
		return ""
	}
	return "/posts/more?" + url.Values{"cursor": {cursor}}.Encode()
}

// Base carries the fields every page layout reads.
type Base struct {
	Title    string
	Lang     string
	HTMLLang string
	Preview  bool
	SiteURL  string
	Path     string
	// LangSwitch maps a language code to the current page in that language.
	LangSwitch map[string]string
}

// Cards is a run of post cards followed by the load-more button when more remain.
type Cards struct {
	Lang    string
	Posts   []service.PostSummary
	MoreURL string
}

// NewCards builds the cards for posts, linking the button to cursor.
func NewCards(lang string, posts []service.PostSummary, cursor string) Cards {
	return Cards{Lang: lang, Posts: posts, MoreURL: LoadMoreURL(cursor)}
}

type HomePage struct {
	Base
	Cards Cards
}

// Comments configures the utterances widget. Key identifies the post it belongs to.
type Comments struct {
	Repo      string
	IssueTerm string
	Label     string
	Theme     string
	Key       string
}

func (c Comments) Enabled() bool {
	return c.Repo != ""
}

type PostPage struct {
	Base
	Detail   *service.PostDetail
	Comments Comments
}

type ErrorPage struct {
	Base
	Status  int
	Message string
}

// LoadMoreError is the fragment shown in place of the button when loading fails.
type LoadMoreError struct {
	Lang      string
	RetryURL  string
	Retryable bool
}
