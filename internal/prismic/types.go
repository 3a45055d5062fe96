package prismic

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrDocumentNotFound is returned when a lookup by uid or id matches nothing.
	ErrDocumentNotFound = errors.New("prismic: document not found")
	// ErrForeignCursor is returned when a pagination cursor does not point at the configured repository.
	ErrForeignCursor = errors.New("prismic: cursor does not belong to this repository")
	// ErrNoMasterRef is returned when the API root lists no master ref.
	ErrNoMasterRef = errors.New("prismic: api has no master ref")
)

// Document is a raw CMS document. Data holds the custom type's fields verbatim.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	Href                 string          `json:"href,omitempty"`
	Lang                 string          `json:"lang,omitempty"`
	FirstPublicationDate string          `json:"first_publication_date"`
	LastPublicationDate  string          `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// Response is one page of search results.
type Response struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         string     `json:"next_page"`
	PrevPage         string     `json:"prev_page"`
	Results          []Document `json:"results"`
}

// QueryOptions carries the optional search parameters.
type QueryOptions struct {
	// Ref pins the query to a content release or preview. Empty means the master ref.
	Ref       string
	PageSize  int
	Page      int
	Orderings []string
	// After restricts results to those following the document with this id.
	After string
	Fetch []string
}

// Ref is a content version advertised by the API root.
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiRoot struct {
	Refs []Ref `json:"refs"`
}

// APIError is a non-2xx answer from the CMS.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("prismic: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("prismic: status %d: %s", e.StatusCode, msg)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

const timeLayout = "2006-01-02T15:04:05-0700"

// ParseTime parses a publication date as the API emits it ("2021-03-15T19:25:28+0000").
// RFC 3339 is accepted too. An empty string yields the zero time.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("prismic: invalid date %q: %w", raw, err)
	}
	return t, nil
}

// FormatTime renders t the way the API does.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
