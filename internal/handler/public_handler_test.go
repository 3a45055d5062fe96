package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/spacetraveling/internal/config"
	"github.com/spacetraveling/internal/db"
	"github.com/spacetraveling/internal/handler"
	"github.com/spacetraveling/internal/localcms"
	"github.com/spacetraveling/internal/prismic"
	"github.com/spacetraveling/internal/router"
	"github.com/spacetraveling/internal/service"
)

var ginOnce sync.Once

func postFile(uid, title, date string, draft bool) string {
	draftLine := ""
	if draft {
		draftLine = "draft: true\n"
	}
	return "---\nid: id-" + uid + "\nuid: " + uid + "\ntitle: " + title + "\nsubtitle: Subtítulo de " + uid +
		"\nauthor: Joseph Oliveira\nbanner: https://images.prismic.io/" + uid + ".png\nfirst_publication_date: " + date +
		"\n" + draftLine + "---\n## Proin et varius\n\nNullam dolor sapien, **vulputate** eu diam at.\n"
}

type testSite struct {
	router http.Handler
	api    *handler.API
	cache  *service.PageCache
}

type siteOption func(*config.AppConfig, *service.ContentClient)

func setupSite(t *testing.T, opts ...siteOption) *testSite {
	t.Helper()

	ginOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})

	dir := t.TempDir()
	files := map[string]string{
		"p1.md":    postFile("p1", "Primeiro post", "2021-01-01T00:00:00+0000", false),
		"p2.md":    postFile("p2", "Segundo post", "2021-02-01T00:00:00+0000", false),
		"draft.md": postFile("draft", "Rascunho", "2021-03-01T00:00:00+0000", true),
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	store, err := localcms.Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	gdb, err := db.Open(fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := config.AppConfig{
		ContentDir:        dir,
		HomePageSize:      1,
		ListingRevalidate: time.Hour,
		PostRevalidate:    30 * time.Minute,
		DefaultLanguage:   "pt",
		Comments: config.CommentsConfig{
			Repo:  config.DefaultCommentsRepo,
			Theme: config.DefaultCommentsTheme,
			Label: config.DefaultCommentsLabel,
		},
	}
	var content service.ContentClient = store
	for _, opt := range opts {
		opt(&cfg, &content)
	}

	cache := service.NewPageCache(gdb, nil)
	t.Cleanup(cache.Wait)
	api := handler.NewAPI(service.NewPostService(content, nil), cache, cfg, nil)
	return &testSite{
		router: router.SetupRouter(api, router.Options{SessionSecret: "test-secret"}),
		api:    api,
		cache:  cache,
	}
}

func (s *testSite) get(t *testing.T, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func parse(t *testing.T, w *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(w.Body.String()))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestShowHomeListsNewestPostWithLoadMore(t *testing.T) {
	site := setupSite(t)

	w := site.get(t, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-Page-Cache"); got != "miss" {
		t.Fatalf("expected cache miss, got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}

	doc := parse(t, w)
	cards := doc.Find("a.post-card")
	if cards.Length() != 1 || !strings.Contains(cards.Text(), "Segundo post") {
		t.Fatalf("expected newest post only, got %q", cards.Text())
	}
	if strings.Contains(w.Body.String(), "Rascunho") {
		t.Fatalf("draft should not be rendered on public home")
	}
	more, ok := doc.Find("button.load-more").Attr("hx-get")
	if !ok || !strings.HasPrefix(more, "/posts/more?cursor=") {
		t.Fatalf("expected load more button, got %q", more)
	}

	w = site.get(t, "/")
	if got := w.Header().Get("X-Page-Cache"); got != "fresh" {
		t.Fatalf("expected cache hit, got %q", got)
	}
}

func TestLoadMorePostsFollowsCursor(t *testing.T) {
	site := setupSite(t)

	more, _ := parse(t, site.get(t, "/")).Find("button.load-more").Attr("hx-get")
	w := site.get(t, more)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "<html") {
		t.Fatalf("expected a fragment without layout")
	}
	doc := parse(t, w)
	if got := doc.Find("a.post-card h1").Text(); got != "Primeiro post" {
		t.Fatalf("expected second page card, got %q", got)
	}
	if doc.Find("button.load-more").Length() != 0 {
		t.Fatalf("expected no button once exhausted")
	}
}

func TestLoadMorePostsWithoutCursor(t *testing.T) {
	site := setupSite(t)
	if w := site.get(t, "/posts/more"); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestLoadMorePostsRejectsForeignCursor(t *testing.T) {
	site := setupSite(t)
	w := site.get(t, "/posts/more?cursor="+"https%3A%2F%2Fevil.example%2Fapi")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if parse(t, w).Find("button").Length() != 0 {
		t.Fatalf("foreign cursor should not offer a retry")
	}
}

type failingPages struct {
	service.ContentClient
}

func (failingPages) FetchPage(context.Context, string) (*prismic.Response, error) {
	return nil, &prismic.APIError{StatusCode: http.StatusServiceUnavailable, Message: "unavailable"}
}

func TestLoadMorePostsFailureOffersRetry(t *testing.T) {
	site := setupSite(t, func(_ *config.AppConfig, content *service.ContentClient) {
		*content = failingPages{ContentClient: *content}
	})

	w := site.get(t, "/posts/more?cursor=local%3A%2F%2Fdocuments%2Fsearch%3Fpage%3D2")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	doc := parse(t, w)
	if !strings.Contains(doc.Find(".load-more-error p").Text(), "Não foi possível") {
		t.Fatalf("unexpected error fragment %q", w.Body.String())
	}
	retry, ok := doc.Find(".load-more-error button").Attr("hx-get")
	if !ok || !strings.HasPrefix(retry, "/posts/more?cursor=local") {
		t.Fatalf("expected retry for the same cursor, got %q", retry)
	}
}

func TestShowPostNavigation(t *testing.T) {
	site := setupSite(t)

	w := site.get(t, "/post/p1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	doc := parse(t, w)
	if doc.Find(".post-navigation .prev").Length() != 0 {
		t.Fatalf("earliest post should have no previous link")
	}
	next := doc.Find(".post-navigation .next")
	if href, _ := next.Find("a").Attr("href"); href != "/post/p2" {
		t.Fatalf("expected next link to p2, got %q", href)
	}
	if got := next.Find("span").Text(); got != "Segundo post" {
		t.Fatalf("expected next title, got %q", got)
	}
	if got := doc.Find(".reading-time").Text(); got != "1 min" {
		t.Fatalf("unexpected reading time %q", got)
	}
	if got := doc.Find("header time").Text(); got != "01 jan 2021" {
		t.Fatalf("unexpected date %q", got)
	}
	script := doc.Find("#inject-comment script")
	if script.Length() != 1 {
		t.Fatalf("expected one comments script")
	}
	if repo, _ := script.Attr("repo"); repo != "paulabonini/ignite-create-Project-from-0" {
		t.Fatalf("unexpected comments repo %q", repo)
	}
	if theme, _ := script.Attr("theme"); theme != "dark-blue" {
		t.Fatalf("unexpected comments theme %q", theme)
	}

	doc = parse(t, site.get(t, "/post/p2"))
	if doc.Find(".post-navigation .next").Length() != 0 {
		t.Fatalf("latest post should have no next link")
	}
	if href, _ := doc.Find(".post-navigation .prev a").Attr("href"); href != "/post/p1" {
		t.Fatalf("expected previous link to p1, got %q", href)
	}
}

func TestShowPostNotFoundIsNotCached(t *testing.T) {
	site := setupSite(t)

	for i := 0; i < 2; i++ {
		w := site.get(t, "/post/nao-existe")
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
		if got := w.Header().Get("X-Page-Cache"); got != "miss" {
			t.Fatalf("request %d: expected miss, got %q", i, got)
		}
	}
	if w := site.get(t, "/post/draft"); w.Code != http.StatusNotFound {
		t.Fatalf("draft should be hidden outside preview, got %d", w.Code)
	}
}

func TestShowHomeInEnglish(t *testing.T) {
	site := setupSite(t)

	w := site.get(t, "/?lang=en")
	doc := parse(t, w)
	if lang, _ := doc.Find("html").Attr("lang"); lang != "en-US" {
		t.Fatalf("expected en-US, got %q", lang)
	}
	if !strings.Contains(doc.Find("button.load-more").Text(), "Load more posts") {
		t.Fatalf("expected english button")
	}
	if w.Header().Get("X-Page-Cache") != "miss" {
		t.Fatalf("expected english page cached separately")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	w = httptest.NewRecorder()
	site.router.ServeHTTP(w, req)
	if w.Header().Get("X-Page-Cache") != "fresh" {
		t.Fatalf("expected cached english page for Accept-Language, got %q", w.Header().Get("X-Page-Cache"))
	}
}

func TestPrerenderFillsCache(t *testing.T) {
	site := setupSite(t)

	n, err := site.api.Prerender(context.Background())
	if err != nil {
		t.Fatalf("prerender: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected home plus two posts in two languages, got %d", n)
	}
	for _, path := range []string{"/", "/post/p1", "/post/p2"} {
		if got := site.get(t, path).Header().Get("X-Page-Cache"); got != "fresh" {
			t.Fatalf("%s: expected fresh, got %q", path, got)
		}
	}
}

func TestPrerenderSkipsMalformedPost(t *testing.T) {
	site := setupSite(t, func(cfg *config.AppConfig, content *service.ContentClient) {
		// 缺少 banner 的旧文章
		broken := "---\nid: id-broken\nuid: broken\ntitle: Quebrado\nauthor: Joseph Oliveira\nfirst_publication_date: 2020-06-01T00:00:00+0000\n---\nSem banner.\n"
		if err := os.WriteFile(filepath.Join(cfg.ContentDir, "broken.md"), []byte(broken), 0o644); err != nil {
			t.Fatalf("write broken post: %v", err)
		}
		if err := (*content).(*localcms.Store).Reload(); err != nil {
			t.Fatalf("reload store: %v", err)
		}
	})

	n, err := site.api.Prerender(context.Background())
	if err != nil {
		t.Fatalf("prerender should skip malformed posts, got %v", err)
	}
	if n != 6 {
		t.Fatalf("expected home plus two valid posts in two languages, got %d", n)
	}
	if got := site.get(t, "/post/p1").Header().Get("X-Page-Cache"); got != "fresh" {
		t.Fatalf("expected valid post prerendered, got %q", got)
	}
}
