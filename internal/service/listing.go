package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spacetraveling/internal/prismic"
	"golang.org/x/sync/singleflight"
)

// ErrListingClosed is returned by LoadMore after Close.
var ErrListingClosed = errors.New("listing is closed")

// PageFetcher follows pagination cursors.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor string) (*prismic.Response, error)
}

// LoadError reports a failed LoadMore. The listing is left unchanged.
type LoadError struct {
	Cursor string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load posts page: %v", e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Retryable reports whether calling LoadMore again may succeed.
func (e *LoadError) Retryable() bool {
	if errors.Is(e.Err, ErrMalformedPost) {
		return false
	}
	return prismic.IsTemporary(e.Err)
}

// Listing is the post list of one view: the results so far plus the cursor
// of the next page. It is owned by its caller and discarded with it.
type Listing struct {
	fetcher PageFetcher
	group   singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	results    []PostSummary
	nextCursor string
	closed     bool
}

// NewListing starts a listing from an initial page.
func NewListing(fetcher PageFetcher, results []PostSummary, nextCursor string) *Listing {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listing{
		fetcher:    fetcher,
		ctx:        ctx,
		cancel:     cancel,
		results:    append([]PostSummary(nil), results...),
		nextCursor: nextCursor,
	}
}

// Results returns a copy of the loaded summaries in source order.
func (l *Listing) Results() []PostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]PostSummary(nil), l.results...)
}

// NextCursor returns the cursor of the next page, or "" when exhausted.
func (l *Listing) NextCursor() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextCursor
}

// HasMore reports whether LoadMore would fetch anything.
func (l *Listing) HasMore() bool {
	return l.NextCursor() != ""
}

// LoadMore fetches the page at the current cursor and appends its posts.
// It returns how many posts were appended. Without a cursor it does nothing.
// Concurrent calls for the same cursor share a single fetch and append once.
func (l *Listing) LoadMore(ctx context.Context) (int, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, ErrListingClosed
	}
	cursor := l.nextCursor
	l.mu.Unlock()

	if cursor == "" {
		return 0, nil
	}

	v, err, _ := l.group.Do(cursor, func() (interface{}, error) {
		return l.loadPage(ctx, cursor)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (l *Listing) loadPage(ctx context.Context, cursor string) (int, error) {
	fetchCtx, cancel := context.WithCancel(l.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := l.fetcher.FetchPage(fetchCtx, cursor)
	if err != nil {
		if l.isClosed() {
			return 0, ErrListingClosed
		}
		return 0, &LoadError{Cursor: cursor, Err: err}
	}

	page := make([]PostSummary, 0, len(resp.Results))
	for i := range resp.Results {
		summary, err := MapSummary(&resp.Results[i])
		if err != nil {
			return 0, &LoadError{Cursor: cursor, Err: err}
		}
		page = append(page, summary)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrListingClosed
	}
	if l.nextCursor != cursor {
		// another load already consumed this page
		return 0, nil
	}
	l.results = append(l.results, page...)
	l.nextCursor = resp.NextPage
	return len(page), nil
}

func (l *Listing) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close aborts any in-flight fetch. Later results are discarded.
func (l *Listing) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()
}
