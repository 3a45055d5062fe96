package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spacetraveling/internal/prismic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrInvalidPreview = errors.New("preview token is invalid")
)

const (
	// DefaultPostType is the Prismic custom type holding blog posts.
	DefaultPostType = "posts"
	// DefaultHomePageSize is how many posts the home page shows before loadMore.
	DefaultHomePageSize = 1

	slugsPageSize = 100
)

// ContentClient is the read surface shared by prismic.Client and localcms.Store.
type ContentClient interface {
	PageFetcher
	Query(ctx context.Context, predicates []prismic.Predicate, opts prismic.QueryOptions) (*prismic.Response, error)
	GetByUID(ctx context.Context, docType, uid string, opts prismic.QueryOptions) (*prismic.Document, error)
	GetByID(ctx context.Context, id string, opts prismic.QueryOptions) (*prismic.Document, error)
}

// PostService loads posts for the listing and detail pages.
type PostService struct {
	content  ContentClient
	docType  string
	pageSize int
	logger   *zap.Logger
}

// AdjacentPostRef links to a neighbouring post.
type AdjacentPostRef struct {
	Title string
	Href  string
}

// Navigation holds the chronological neighbours of a post.
type Navigation struct {
	// PrevPage is the closest earlier post.
	PrevPage *AdjacentPostRef
	// NextPage is the closest later post.
	NextPage *AdjacentPostRef
}

// PostDetail 是详情页需要的全部数据
type PostDetail struct {
	Post        Post
	ReadingTime int
	Navigation  Navigation
	Preview     bool
}

// NewPostService creates a PostService instance.
func NewPostService(content ContentClient, logger *zap.Logger) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{
		content:  content,
		docType:  DefaultPostType,
		pageSize: DefaultHomePageSize,
		logger:   logger,
	}
}

// WithPageSize sets the home page size. Non-positive values are ignored.
func (s *PostService) WithPageSize(n int) *PostService {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

// PageSize returns the home page size.
func (s *PostService) PageSize() int {
	return s.pageSize
}

// Home fetches the first page of posts, newest first. A non-positive
// pageSize falls back to the service page size.
func (s *PostService) Home(ctx context.Context, ref string, pageSize int) (*Listing, error) {
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	resp, err := s.content.Query(ctx,
		[]prismic.Predicate{prismic.At("document.type", s.docType)},
		prismic.QueryOptions{
			Ref:       ref,
			PageSize:  pageSize,
			Orderings: []string{"document.first_publication_date desc"},
			Fetch: []string{
				s.docType + ".title",
				s.docType + ".subtitle",
				s.docType + ".author",
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}

	summaries, err := mapSummaries(resp.Results)
	if err != nil {
		return nil, err
	}
	return NewListing(s.content, summaries, resp.NextPage), nil
}

// ListingAt starts a listing that has nothing loaded yet and will fetch from cursor.
func (s *PostService) ListingAt(cursor string) *Listing {
	return NewListing(s.content, nil, strings.TrimSpace(cursor))
}

func mapSummaries(docs []prismic.Document) ([]PostSummary, error) {
	out := make([]PostSummary, 0, len(docs))
	for i := range docs {
		summary, err := MapSummary(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// LoadPost fetches the post with the given slug plus its neighbours.
func (s *PostService) LoadPost(ctx context.Context, slug, ref string) (*PostDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrPostNotFound
	}

	doc, err := s.content.GetByUID(ctx, s.docType, slug, prismic.QueryOptions{Ref: ref})
	if err != nil {
		if errors.Is(err, prismic.ErrDocumentNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post %q: %w", slug, err)
	}

	post, err := MapPost(doc)
	if err != nil {
		return nil, err
	}

	detail := &PostDetail{
		Post:        post,
		ReadingTime: ReadingTime(post.Content),
		Preview:     ref != "",
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		next, err := s.adjacent(gctx, doc.ID, ref, "document.first_publication_date")
		detail.Navigation.NextPage = next
		return err
	})
	g.Go(func() error {
		prev, err := s.adjacent(gctx, doc.ID, ref, "document.first_publication_date desc")
		detail.Navigation.PrevPage = prev
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return detail, nil
}

// adjacent returns the first post after id under the given ordering, or nil.
func (s *PostService) adjacent(ctx context.Context, id, ref, ordering string) (*AdjacentPostRef, error) {
	resp, err := s.content.Query(ctx,
		[]prismic.Predicate{prismic.At("document.type", s.docType)},
		prismic.QueryOptions{
			Ref:       ref,
			PageSize:  1,
			After:     id,
			Orderings: []string{ordering},
			Fetch:     []string{s.docType + ".title"},
		})
	if err != nil {
		return nil, fmt.Errorf("query adjacent post: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	summary, err := MapSummary(&resp.Results[0])
	if err != nil {
		return nil, err
	}
	return &AdjacentPostRef{Title: summary.Title, Href: summary.Href()}, nil
}

// Slugs returns the uid of every published post, following cursors to the end.
func (s *PostService) Slugs(ctx context.Context) ([]string, error) {
	resp, err := s.content.Query(ctx,
		[]prismic.Predicate{prismic.At("document.type", s.docType)},
		prismic.QueryOptions{PageSize: slugsPageSize, Fetch: []string{s.docType + ".uid"}})
	if err != nil {
		return nil, fmt.Errorf("query slugs: %w", err)
	}

	var slugs []string
	seen := make(map[string]struct{})
	for {
		for _, doc := range resp.Results {
			if doc.UID == "" {
				continue
			}
			if _, ok := seen[doc.UID]; ok {
				continue
			}
			seen[doc.UID] = struct{}{}
			slugs = append(slugs, doc.UID)
		}
		if resp.NextPage == "" {
			return slugs, nil
		}
		if resp, err = s.content.FetchPage(ctx, resp.NextPage); err != nil {
			return nil, fmt.Errorf("follow slugs cursor: %w", err)
		}
	}
}

// ResolvePreview maps a preview token and document id to the page that shows it.
// Without a document id the preview opens on the home page.
func (s *PostService) ResolvePreview(ctx context.Context, token, documentID string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidPreview
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return "/", nil
	}

	doc, err := s.content.GetByID(ctx, documentID, prismic.QueryOptions{Ref: token})
	if err != nil {
		if errors.Is(err, prismic.ErrDocumentNotFound) {
			s.logger.Warn("preview document not found", zap.String("document_id", documentID))
			return "/", nil
		}
		var apiErr *prismic.APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return "", fmt.Errorf("%w: %v", ErrInvalidPreview, err)
		}
		return "", fmt.Errorf("resolve preview: %w", err)
	}
	if doc.Type != s.docType || doc.UID == "" {
		return "/", nil
	}
	return PostPath(doc.UID), nil
}
