package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spacetraveling/internal/localcms"
)

func postFile(uid, date string, draft bool) string {
	draftLine := ""
	if draft {
		draftLine = "draft: true\n"
	}
	return "---\nid: id-" + uid + "\nuid: " + uid + "\ntitle: Post " + uid + "\nauthor: Autor\nbanner: https://img/" + uid + ".png\nfirst_publication_date: " + date + "\n" + draftLine + "---\n## Seção\n\nCorpo do post com algumas palavras.\n"
}

func setupPostService(t *testing.T, files map[string]string) *PostService {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	store, err := localcms.Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return NewPostService(store, nil)
}

func TestPostServiceAdjacencyTwoPosts(t *testing.T) {
	svc := setupPostService(t, map[string]string{
		"p1.md": postFile("p1", "2021-01-01T00:00:00+0000", false),
		"p2.md": postFile("p2", "2021-02-01T00:00:00+0000", false),
	})

	detail, err := svc.LoadPost(context.Background(), "p1", "")
	if err != nil {
		t.Fatalf("load post: %v", err)
	}
	if detail.Navigation.PrevPage != nil {
		t.Fatalf("expected no previous post, got %+v", detail.Navigation.PrevPage)
	}
	next := detail.Navigation.NextPage
	if next == nil || next.Href != "/post/p2" || next.Title != "Post p2" {
		t.Fatalf("expected next post p2, got %+v", next)
	}
	if detail.ReadingTime != 1 || detail.Preview {
		t.Fatalf("unexpected detail: reading=%d preview=%v", detail.ReadingTime, detail.Preview)
	}

	detail, err = svc.LoadPost(context.Background(), "p2", "")
	if err != nil {
		t.Fatalf("load post: %v", err)
	}
	if detail.Navigation.NextPage != nil || detail.Navigation.PrevPage == nil || detail.Navigation.PrevPage.Href != "/post/p1" {
		t.Fatalf("unexpected navigation: %+v", detail.Navigation)
	}
}

func TestPostServiceLoadPostNotFound(t *testing.T) {
	svc := setupPostService(t, map[string]string{
		"p1.md": postFile("p1", "2021-01-01T00:00:00+0000", false),
	})
	for _, slug := range []string{"missing", "  "} {
		if _, err := svc.LoadPost(context.Background(), slug, ""); !errors.Is(err, ErrPostNotFound) {
			t.Fatalf("slug %q: expected ErrPostNotFound, got %v", slug, err)
		}
	}
}

func TestPostServiceHomePagesThroughListing(t *testing.T) {
	svc := setupPostService(t, map[string]string{
		"p1.md": postFile("p1", "2021-01-01T00:00:00+0000", false),
		"p2.md": postFile("p2", "2021-02-01T00:00:00+0000", false),
		"p3.md": postFile("p3", "2021-03-01T00:00:00+0000", false),
	})

	listing, err := svc.Home(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	defer listing.Close()

	if got := listing.Results(); len(got) != 1 || got[0].UID != "p3" {
		t.Fatalf("expected newest post first, got %+v", got)
	}
	for listing.HasMore() {
		if _, err := listing.LoadMore(context.Background()); err != nil {
			t.Fatalf("load more: %v", err)
		}
	}
	got := listing.Results()
	if len(got) != 3 || got[1].UID != "p2" || got[2].UID != "p1" {
		t.Fatalf("unexpected listing: %+v", got)
	}

	wide, err := svc.Home(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("home with page size: %v", err)
	}
	defer wide.Close()
	if len(wide.Results()) != 3 || wide.HasMore() {
		t.Fatalf("expected all posts on one page, got %d", len(wide.Results()))
	}

	more := svc.ListingAt("")
	if more.HasMore() {
		t.Fatalf("expected empty cursor listing to be exhausted")
	}
}

func TestPostServiceSlugsSkipsDrafts(t *testing.T) {
	svc := setupPostService(t, map[string]string{
		"p1.md":    postFile("p1", "2021-01-01T00:00:00+0000", false),
		"p2.md":    postFile("p2", "2021-02-01T00:00:00+0000", false),
		"draft.md": postFile("draft", "2021-03-01T00:00:00+0000", true),
	})
	slugs, err := svc.Slugs(context.Background())
	if err != nil {
		t.Fatalf("slugs: %v", err)
	}
	sort.Strings(slugs)
	if len(slugs) != 2 || slugs[0] != "p1" || slugs[1] != "p2" {
		t.Fatalf("unexpected slugs %v", slugs)
	}
}

func TestPostServicePreviewSeesDrafts(t *testing.T) {
	svc := setupPostService(t, map[string]string{
		"p1.md":    postFile("p1", "2021-01-01T00:00:00+0000", false),
		"draft.md": postFile("draft", "2021-03-01T00:00:00+0000", true),
	})
	ctx := context.Background()

	if _, err := svc.LoadPost(ctx, "draft", ""); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected draft hidden, got %v", err)
	}
	detail, err := svc.LoadPost(ctx, "draft", localcms.PreviewRef)
	if err != nil {
		t.Fatalf("load draft in preview: %v", err)
	}
	if !detail.Preview {
		t.Fatalf("expected preview flag")
	}

	dest, err := svc.ResolvePreview(ctx, localcms.PreviewRef, "id-draft")
	if err != nil || dest != "/post/draft" {
		t.Fatalf("resolve preview: dest=%q err=%v", dest, err)
	}
	dest, err = svc.ResolvePreview(ctx, localcms.PreviewRef, "")
	if err != nil || dest != "/" {
		t.Fatalf("resolve preview without document: dest=%q err=%v", dest, err)
	}
	dest, err = svc.ResolvePreview(ctx, localcms.PreviewRef, "id-gone")
	if err != nil || dest != "/" {
		t.Fatalf("resolve preview of missing document: dest=%q err=%v", dest, err)
	}
	if _, err := svc.ResolvePreview(ctx, "", "id-draft"); !errors.Is(err, ErrInvalidPreview) {
		t.Fatalf("expected ErrInvalidPreview, got %v", err)
	}
}
