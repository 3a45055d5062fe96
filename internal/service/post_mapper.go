package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/spacetraveling/internal/prismic"
	"github.com/spacetraveling/internal/richtext"
)

// ErrMalformedPost means a published document lacks fields every post must carry.
var ErrMalformedPost = errors.New("post document is missing required fields")

var sanitizer = bluemonday.UGCPolicy()

// Post is a fully mapped post document.
type Post struct {
	ID                   string
	UID                  string
	FirstPublicationDate time.Time
	// LastPublicationDate is nil unless the post was edited after first publication.
	LastPublicationDate *time.Time
	Title               string
	Subtitle            string
	Author              string
	BannerURL           string
	BannerAlt           string
	Content             []ContentGroup
}

// ContentGroup is one heading with its body.
type ContentGroup struct {
	Heading  string
	BodyHTML template.HTML
	// BodyText holds the plain text of each body block, for word counts.
	BodyText []string
}

// PostSummary is the listing view of a post.
type PostSummary struct {
	UID                  string
	FirstPublicationDate time.Time
	Title                string
	Subtitle             string
	Author               string
}

// Href is the post's page path.
func (p PostSummary) Href() string {
	return PostPath(p.UID)
}

// PostPath returns the page path of the post with the given uid.
func PostPath(uid string) string {
	return "/post/" + uid
}

type rawPostData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
	Banner   *struct {
		URL string `json:"url"`
		Alt string `json:"alt"`
	} `json:"banner"`
	Content []struct {
		Heading string           `json:"heading"`
		Body    []richtext.Block `json:"body"`
	} `json:"content"`
}

func decodePostData(doc *prismic.Document) (rawPostData, error) {
	var data rawPostData
	if len(doc.Data) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(doc.Data, &data); err != nil {
		return data, fmt.Errorf("decode post %q: %w", doc.UID, err)
	}
	return data, nil
}

// MapSummary maps a raw document to its listing view.
func MapSummary(doc *prismic.Document) (PostSummary, error) {
	data, err := decodePostData(doc)
	if err != nil {
		return PostSummary{}, err
	}
	first, err := prismic.ParseTime(doc.FirstPublicationDate)
	if err != nil {
		return PostSummary{}, err
	}
	return PostSummary{
		UID:                  doc.UID,
		FirstPublicationDate: first,
		Title:                strings.TrimSpace(data.Title),
		Subtitle:             strings.TrimSpace(data.Subtitle),
		Author:               strings.TrimSpace(data.Author),
	}, nil
}

// MapPost maps a raw document to a Post. A missing banner or content is an error.
func MapPost(doc *prismic.Document) (Post, error) {
	data, err := decodePostData(doc)
	if err != nil {
		return Post{}, err
	}
	if data.Banner == nil || strings.TrimSpace(data.Banner.URL) == "" {
		return Post{}, fmt.Errorf("%w: %q has no banner", ErrMalformedPost, doc.UID)
	}
	if data.Content == nil {
		return Post{}, fmt.Errorf("%w: %q has no content", ErrMalformedPost, doc.UID)
	}

	first, err := prismic.ParseTime(doc.FirstPublicationDate)
	if err != nil {
		return Post{}, err
	}
	last, err := prismic.ParseTime(doc.LastPublicationDate)
	if err != nil {
		return Post{}, err
	}

	post := Post{
		ID:                   doc.ID,
		UID:                  doc.UID,
		FirstPublicationDate: first,
		Title:                strings.TrimSpace(data.Title),
		Subtitle:             strings.TrimSpace(data.Subtitle),
		Author:               strings.TrimSpace(data.Author),
		BannerURL:            strings.TrimSpace(data.Banner.URL),
		BannerAlt:            strings.TrimSpace(data.Banner.Alt),
		Content:              make([]ContentGroup, 0, len(data.Content)),
	}
	if !last.IsZero() && !last.Equal(first) {
		post.LastPublicationDate = &last
	}

	for _, group := range data.Content {
		texts := make([]string, 0, len(group.Body))
		for _, block := range group.Body {
			if block.Text != "" {
				texts = append(texts, block.Text)
			}
		}
		post.Content = append(post.Content, ContentGroup{
			Heading:  strings.TrimSpace(group.Heading),
			BodyHTML: renderBody(group.Body),
			BodyText: texts,
		})
	}
	return post, nil
}

func renderBody(blocks []richtext.Block) template.HTML {
	safe := sanitizer.Sanitize(richtext.AsHTML(blocks))
	return template.HTML(safe)
}
