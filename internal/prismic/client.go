// Package prismic is a small client for the Prismic REST API (v2).
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single HTTP exchange with the CMS.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 8 << 20
	masterRefTTL     = 5 * time.Second
	userAgent        = "spacetraveling/1.0"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives one call per CMS request.
type Observer interface {
	ObserveRequest(operation, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, string, time.Duration) {}

// Client talks to one Prismic repository.
type Client struct {
	endpoint    *url.URL
	accessToken string
	http        httpDoer
	retry       RetryConfig
	logger      *zap.Logger
	observer    Observer
	now         func() time.Time

	mu        sync.Mutex
	masterRef string
	refAt     time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithAccessToken sets the token sent with every request.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.accessToken = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the HTTP client. nil restores the default.
func WithHTTPClient(doer httpDoer) Option {
	return func(c *Client) {
		if doer == nil {
			doer = &http.Client{Timeout: DefaultTimeout}
		}
		c.http = doer
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a request observer, typically the metrics recorder.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// NewClient creates a client for the API root at endpoint, e.g.
// https://spacetraveling.cdn.prismic.io/api/v2.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return nil, errors.New("prismic: endpoint is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("prismic: invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("prismic: endpoint must be http(s), got %q", endpoint)
	}

	c := &Client{
		endpoint: u,
		http:     &http.Client{Timeout: DefaultTimeout},
		retry:    DefaultRetryConfig(),
		logger:   zap.NewNop(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MasterRef returns the current master ref, cached for a few seconds.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.masterRef != "" && c.now().Sub(c.refAt) < masterRefTTL {
		ref := c.masterRef
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	var root apiRoot
	if err := c.getJSON(ctx, "api", c.withToken(*c.endpoint), &root); err != nil {
		return "", err
	}
	for _, r := range root.Refs {
		if r.IsMasterRef {
			c.mu.Lock()
			c.masterRef = r.Ref
			c.refAt = c.now()
			c.mu.Unlock()
			return r.Ref, nil
		}
	}
	return "", ErrNoMasterRef
}

// Query runs a predicate search.
func (c *Client) Query(ctx context.Context, predicates []Predicate, opts QueryOptions) (*Response, error) {
	u, err := c.searchURL(ctx, predicates, opts)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := c.getJSON(ctx, "query", u, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetByUID returns the document of docType whose uid is uid.
func (c *Client) GetByUID(ctx context.Context, docType, uid string, opts QueryOptions) (*Document, error) {
	return c.first(ctx, []Predicate{At("my."+docType+".uid", uid)}, opts)
}

// GetByID returns the document with the given id.
func (c *Client) GetByID(ctx context.Context, id string, opts QueryOptions) (*Document, error) {
	return c.first(ctx, []Predicate{At("document.id", id)}, opts)
}

func (c *Client) first(ctx context.Context, predicates []Predicate, opts QueryOptions) (*Document, error) {
	opts.PageSize = 1
	opts.Page = 0
	resp, err := c.Query(ctx, predicates, opts)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrDocumentNotFound
	}
	doc := resp.Results[0]
	return &doc, nil
}

// FetchPage follows a next_page cursor exactly as the API returned it.
// Cursors pointing at another host are rejected.
func (c *Client) FetchPage(ctx context.Context, cursor string) (*Response, error) {
	u, err := url.Parse(strings.TrimSpace(cursor))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrForeignCursor, cursor)
	}
	if !strings.EqualFold(u.Host, c.endpoint.Host) || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrForeignCursor, cursor)
	}
	var resp Response
	if err := c.getJSON(ctx, "fetch_page", *u, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) searchURL(ctx context.Context, predicates []Predicate, opts QueryOptions) (url.URL, error) {
	ref := strings.TrimSpace(opts.Ref)
	if ref == "" {
		master, err := c.MasterRef(ctx)
		if err != nil {
			return url.URL{}, err
		}
		ref = master
	}

	u := *c.endpoint
	u.Path = strings.TrimRight(u.Path, "/") + "/documents/search"

	values := url.Values{}
	values.Set("ref", ref)
	if len(predicates) > 0 {
		values.Set("q", encodeQuery(predicates))
	}
	if opts.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		values.Set("page", strconv.Itoa(opts.Page))
	}
	if len(opts.Orderings) > 0 {
		values.Set("orderings", "["+strings.Join(opts.Orderings, ",")+"]")
	}
	if opts.After != "" {
		values.Set("after", opts.After)
	}
	if len(opts.Fetch) > 0 {
		values.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	u.RawQuery = values.Encode()
	return c.withToken(u), nil
}

func (c *Client) withToken(u url.URL) url.URL {
	if c.accessToken == "" {
		return u
	}
	values := u.Query()
	if values.Get("access_token") == "" {
		values.Set("access_token", c.accessToken)
		u.RawQuery = values.Encode()
	}
	return u
}

func (c *Client) getJSON(ctx context.Context, operation string, u url.URL, dst interface{}) error {
	start := c.now()
	attempts := 0
	err := retry(ctx, c.retry, func() error {
		attempts++
		return c.doGet(ctx, u, dst)
	})

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "canceled"
	default:
		outcome = "error"
	}
	elapsed := c.now().Sub(start)
	c.observer.ObserveRequest(operation, outcome, elapsed)

	if err != nil {
		c.logger.Warn("cms request failed",
			zap.String("operation", operation),
			zap.String("path", u.Path),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}
	c.logger.Debug("cms request",
		zap.String("operation", operation),
		zap.String("path", u.Path),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (c *Client) doGet(ctx context.Context, u url.URL, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("prismic: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("prismic: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("prismic: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(body, &payload)
		msg := payload.Message
		if msg == "" {
			msg = payload.Error
		}
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("prismic: decode response: %w", err)
	}
	return nil
}
