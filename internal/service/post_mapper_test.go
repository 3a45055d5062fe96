package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/spacetraveling/internal/prismic"
)

const hooksData = `{
  "title": " Como utilizar Hooks ",
  "subtitle": "Pensando em sincronização em vez de ciclos de vida.",
  "author": "Joseph Oliveira",
  "banner": {"url": "https://images.prismic.io/hooks.png", "alt": "banner"},
  "content": [
    {"heading": "Proin et varius", "body": [
      {"type": "paragraph", "text": "Nullam dolor sapien", "spans": [{"start": 7, "end": 12, "type": "strong"}]},
      {"type": "paragraph", "text": "<script>alert(1)</script>", "spans": []}
    ]}
  ]
}`

func TestMapPost(t *testing.T) {
	doc := &prismic.Document{
		ID:                   "YEUwAhIAACUAqJbZ",
		UID:                  "como-utilizar-hooks",
		FirstPublicationDate: "2021-03-15T19:25:28+0000",
		LastPublicationDate:  "2021-03-19T15:49:00+0000",
		Data:                 []byte(hooksData),
	}

	post, err := MapPost(doc)
	if err != nil {
		t.Fatalf("map post: %v", err)
	}
	if post.Title != "Como utilizar Hooks" || post.Author != "Joseph Oliveira" {
		t.Fatalf("unexpected fields: %+v", post)
	}
	if post.BannerURL != "https://images.prismic.io/hooks.png" {
		t.Fatalf("unexpected banner %q", post.BannerURL)
	}
	if post.LastPublicationDate == nil || post.LastPublicationDate.Day() != 19 {
		t.Fatalf("expected edited date, got %v", post.LastPublicationDate)
	}
	if len(post.Content) != 1 || post.Content[0].Heading != "Proin et varius" {
		t.Fatalf("unexpected content: %+v", post.Content)
	}
	html := string(post.Content[0].BodyHTML)
	if !strings.Contains(html, "<strong>dolor</strong>") {
		t.Fatalf("expected strong span in %q", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("expected script escaped, got %q", html)
	}
	if len(post.Content[0].BodyText) != 2 {
		t.Fatalf("expected two body texts, got %v", post.Content[0].BodyText)
	}
}

func TestMapPostUneditedHasNoLastPublication(t *testing.T) {
	doc := &prismic.Document{
		UID:                  "x",
		FirstPublicationDate: "2021-03-15T19:25:28+0000",
		LastPublicationDate:  "2021-03-15T19:25:28+0000",
		Data:                 []byte(hooksData),
	}
	post, err := MapPost(doc)
	if err != nil {
		t.Fatalf("map post: %v", err)
	}
	if post.LastPublicationDate != nil {
		t.Fatalf("expected nil last publication, got %v", post.LastPublicationDate)
	}
}

func TestMapPostRequiresBannerAndContent(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "no banner", data: `{"title":"t","content":[]}`},
		{name: "empty banner", data: `{"title":"t","banner":{"url":" "},"content":[]}`},
		{name: "no content", data: `{"title":"t","banner":{"url":"https://img"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MapPost(&prismic.Document{UID: "x", Data: []byte(tt.data)})
			if !errors.Is(err, ErrMalformedPost) {
				t.Fatalf("expected ErrMalformedPost, got %v", err)
			}
		})
	}
}

func TestMapSummary(t *testing.T) {
	summary, err := MapSummary(&prismic.Document{
		UID:                  "como-utilizar-hooks",
		FirstPublicationDate: "2021-03-15T19:25:28+0000",
		Data:                 []byte(`{"title":"Como utilizar Hooks","subtitle":"s","author":"a"}`),
	})
	if err != nil {
		t.Fatalf("map summary: %v", err)
	}
	if summary.Href() != "/post/como-utilizar-hooks" {
		t.Fatalf("unexpected href %q", summary.Href())
	}
	if summary.FirstPublicationDate.Year() != 2021 || summary.Title != "Como utilizar Hooks" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
