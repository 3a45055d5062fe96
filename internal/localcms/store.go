// Package localcms serves posts from a directory of Markdown files with the
// same query surface as the Prismic client, for local development and tests.
package localcms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spacetraveling/internal/prismic"
)

const (
	// PreviewRef makes drafts visible, like a Prismic preview ref.
	PreviewRef = "local-preview"
	// MasterRef is the ref reported for published content.
	MasterRef = "local-master"

	defaultType     = "posts"
	defaultPageSize = 20
	maxPageSize     = 100
	cursorScheme    = "local"
)

type entry struct {
	doc   prismic.Document
	draft bool
	first time.Time
	last  time.Time
	title string
}

// Store holds the parsed documents of one directory.
type Store struct {
	dir string

	mu      sync.RWMutex
	entries []entry
}

// Open reads every *.md file under dir.
func Open(dir string) (*Store, error) {
	s := &Store{dir: dir}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the directory, replacing the current documents.
func (s *Store) Reload() error {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.md"))
	if err != nil {
		return fmt.Errorf("localcms: list %s: %w", s.dir, err)
	}
	sort.Strings(paths)

	entries := make([]entry, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("localcms: read %s: %w", path, err)
		}
		e, err := parseEntry(path, src)
		if err != nil {
			return fmt.Errorf("localcms: %s: %w", filepath.Base(path), err)
		}
		key := e.doc.Type + "/" + e.doc.UID
		if other, dup := seen[key]; dup {
			return fmt.Errorf("localcms: uid %q used by %s and %s", e.doc.UID, other, filepath.Base(path))
		}
		seen[key] = filepath.Base(path)
		entries = append(entries, e)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

func parseEntry(path string, src []byte) (entry, error) {
	fm, body, err := splitFrontMatter(src)
	if err != nil {
		return entry{}, err
	}
	title, groups := convertMarkdown(body)

	uid := strings.TrimSpace(fm.UID)
	if uid == "" {
		uid = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	docType := strings.TrimSpace(fm.Type)
	if docType == "" {
		docType = defaultType
	}
	id := strings.TrimSpace(fm.ID)
	if id == "" {
		id = uid
	}
	if t := strings.TrimSpace(fm.Title); t != "" {
		title = t
	}

	first, err := prismic.ParseTime(fm.FirstPublicationDate)
	if err != nil {
		return entry{}, err
	}
	last, err := prismic.ParseTime(fm.LastPublicationDate)
	if err != nil {
		return entry{}, err
	}
	if last.IsZero() {
		last = first
	}

	data, err := json.Marshal(postData{
		Title:    title,
		Subtitle: strings.TrimSpace(fm.Subtitle),
		Author:   strings.TrimSpace(fm.Author),
		Banner:   bannerField{URL: strings.TrimSpace(fm.Banner), Alt: strings.TrimSpace(fm.BannerAlt)},
		Content:  groups,
	})
	if err != nil {
		return entry{}, err
	}

	return entry{
		doc: prismic.Document{
			ID:                   id,
			UID:                  uid,
			Type:                 docType,
			FirstPublicationDate: prismic.FormatTime(first),
			LastPublicationDate:  prismic.FormatTime(last),
			Data:                 data,
		},
		draft: fm.Draft,
		first: first,
		last:  last,
		title: title,
	}, nil
}

// Query mirrors prismic.Client.Query over the local documents.
func (s *Store) Query(ctx context.Context, predicates []prismic.Predicate, opts prismic.QueryOptions) (*prismic.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	candidates := make([]entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.draft && opts.Ref != PreviewRef {
			continue
		}
		ok, err := matchesAll(e, predicates)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if ok {
			candidates = append(candidates, e)
		}
	}
	s.mu.RUnlock()

	less, err := orderingFunc(opts.Orderings)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool { return less(candidates[i], candidates[j]) })

	if opts.After != "" {
		for i, e := range candidates {
			if e.doc.ID == opts.After {
				candidates = candidates[i+1:]
				break
			}
		}
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}

	total := len(candidates)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	resp := &prismic.Response{
		Page:             page,
		ResultsPerPage:   pageSize,
		ResultsSize:      end - start,
		TotalResultsSize: total,
		TotalPages:       totalPages,
		Results:          make([]prismic.Document, 0, end-start),
	}
	for _, e := range candidates[start:end] {
		resp.Results = append(resp.Results, e.doc)
	}
	if page < totalPages {
		resp.NextPage = cursorFor(predicates, opts, pageSize, page+1)
	}
	if page > 1 && totalPages > 0 {
		resp.PrevPage = cursorFor(predicates, opts, pageSize, page-1)
	}
	return resp, nil
}

// GetByUID mirrors prismic.Client.GetByUID.
func (s *Store) GetByUID(ctx context.Context, docType, uid string, opts prismic.QueryOptions) (*prismic.Document, error) {
	return s.first(ctx, []prismic.Predicate{prismic.At("my."+docType+".uid", uid)}, opts)
}

// GetByID mirrors prismic.Client.GetByID.
func (s *Store) GetByID(ctx context.Context, id string, opts prismic.QueryOptions) (*prismic.Document, error) {
	return s.first(ctx, []prismic.Predicate{prismic.At("document.id", id)}, opts)
}

func (s *Store) first(ctx context.Context, predicates []prismic.Predicate, opts prismic.QueryOptions) (*prismic.Document, error) {
	opts.PageSize = 1
	opts.Page = 1
	resp, err := s.Query(ctx, predicates, opts)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, prismic.ErrDocumentNotFound
	}
	doc := resp.Results[0]
	return &doc, nil
}

// FetchPage follows a cursor produced by Query.
func (s *Store) FetchPage(ctx context.Context, cursor string) (*prismic.Response, error) {
	u, err := url.Parse(strings.TrimSpace(cursor))
	if err != nil || u.Scheme != cursorScheme {
		return nil, fmt.Errorf("%w: %q", prismic.ErrForeignCursor, cursor)
	}
	values := u.Query()

	var predicates []prismic.Predicate
	for _, raw := range values["q"] {
		p, err := prismic.ParsePredicate(raw)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, p)
	}

	opts := prismic.QueryOptions{
		Ref:   values.Get("ref"),
		After: values.Get("after"),
	}
	if raw := values.Get("orderings"); raw != "" {
		opts.Orderings = strings.Split(raw, ",")
	}
	if opts.PageSize, err = atoiDefault(values.Get("pageSize")); err != nil {
		return nil, fmt.Errorf("%w: %q", prismic.ErrForeignCursor, cursor)
	}
	if opts.Page, err = atoiDefault(values.Get("page")); err != nil {
		return nil, fmt.Errorf("%w: %q", prismic.ErrForeignCursor, cursor)
	}
	return s.Query(ctx, predicates, opts)
}

// MasterRef reports the ref used for published content.
func (s *Store) MasterRef(context.Context) (string, error) {
	return MasterRef, nil
}

func cursorFor(predicates []prismic.Predicate, opts prismic.QueryOptions, pageSize, page int) string {
	values := url.Values{}
	for _, p := range predicates {
		values.Add("q", p.String())
	}
	if opts.Ref != "" {
		values.Set("ref", opts.Ref)
	}
	if len(opts.Orderings) > 0 {
		values.Set("orderings", strings.Join(opts.Orderings, ","))
	}
	if opts.After != "" {
		values.Set("after", opts.After)
	}
	values.Set("pageSize", strconv.Itoa(pageSize))
	values.Set("page", strconv.Itoa(page))
	u := url.URL{Scheme: cursorScheme, Host: "documents", Path: "/search", RawQuery: values.Encode()}
	return u.String()
}

func atoiDefault(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func matchesAll(e entry, predicates []prismic.Predicate) (bool, error) {
	for _, p := range predicates {
		value, err := fieldValue(e, p.Path())
		if err != nil {
			return false, err
		}
		if !p.Matches(value) {
			return false, nil
		}
	}
	return true, nil
}

func fieldValue(e entry, path string) (string, error) {
	switch path {
	case "document.type":
		return e.doc.Type, nil
	case "document.id":
		return e.doc.ID, nil
	}
	if strings.HasPrefix(path, "my.") && strings.HasSuffix(path, ".uid") {
		docType := strings.TrimSuffix(strings.TrimPrefix(path, "my."), ".uid")
		if docType != e.doc.Type {
			return "", nil
		}
		return e.doc.UID, nil
	}
	return "", fmt.Errorf("localcms: unsupported predicate path %q", path)
}

type entryLess func(a, b entry) bool

// orderingFunc builds a comparator from Prismic orderings. Without orderings
// the newest first publication comes first.
func orderingFunc(orderings []string) (entryLess, error) {
	if len(orderings) == 0 {
		orderings = []string{"document.first_publication_date desc"}
	}

	type key struct {
		field string
		desc  bool
	}
	keys := make([]key, 0, len(orderings))
	for _, raw := range orderings {
		fields := strings.Fields(strings.Trim(strings.TrimSpace(raw), "[]"))
		if len(fields) == 0 {
			continue
		}
		k := key{field: fields[0]}
		if len(fields) > 1 {
			k.desc = strings.EqualFold(fields[1], "desc")
		}
		switch {
		case k.field == "document.first_publication_date", k.field == "document.last_publication_date":
		case strings.HasPrefix(k.field, "my.") && strings.HasSuffix(k.field, ".title"):
		default:
			return nil, fmt.Errorf("localcms: unsupported ordering %q", raw)
		}
		keys = append(keys, k)
	}

	return func(a, b entry) bool {
		for _, k := range keys {
			c := compareField(a, b, k.field)
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return a.doc.ID < b.doc.ID
	}, nil
}

func compareField(a, b entry, field string) int {
	switch field {
	case "document.first_publication_date":
		return a.first.Compare(b.first)
	case "document.last_publication_date":
		return a.last.Compare(b.last)
	default:
		return strings.Compare(a.title, b.title)
	}
}
