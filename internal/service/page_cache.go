package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spacetraveling/internal/db"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheState describes how a page request was answered.
type CacheState string

const (
	CacheFresh  CacheState = "fresh"
	CacheStale  CacheState = "stale"
	CacheMiss   CacheState = "miss"
	CacheBypass CacheState = "bypass"
)

// DefaultRegenerateTimeout bounds one background regeneration.
const DefaultRegenerateTimeout = 30 * time.Second

// RenderedPage is a complete HTTP response body ready to be served or stored.
type RenderedPage struct {
	Status      int
	ContentType string
	Body        []byte
}

// Renderer produces a page from the content source.
type Renderer func(ctx context.Context) (*RenderedPage, error)

// CacheObserver receives cache lookups and regeneration outcomes.
type CacheObserver interface {
	ObserveCacheLookup(state string)
	ObserveRegeneration(outcome string, elapsed time.Duration)
}

type nopCacheObserver struct{}

func (nopCacheObserver) ObserveCacheLookup(string)                  {}
func (nopCacheObserver) ObserveRegeneration(string, time.Duration) {}

// PageCache stores rendered pages and regenerates them after their revalidation
// window. Stale pages keep being served while one regeneration runs.
type PageCache struct {
	db       *gorm.DB
	logger   *zap.Logger
	observer CacheObserver
	now      func() time.Time
	timeout  time.Duration

	group singleflight.Group
	wg    sync.WaitGroup

	mu           sync.Mutex
	regenerating map[string]struct{}
}

// NewPageCache creates a PageCache over the generated_pages table.
func NewPageCache(gdb *gorm.DB, logger *zap.Logger) *PageCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageCache{
		db:           gdb,
		logger:       logger,
		observer:     nopCacheObserver{},
		now:          time.Now,
		timeout:      DefaultRegenerateTimeout,
		regenerating: make(map[string]struct{}),
	}
}

// WithObserver sets the metrics sink.
func (c *PageCache) WithObserver(o CacheObserver) *PageCache {
	if o != nil {
		c.observer = o
	}
	return c
}

// WithRegenerateTimeout bounds background regenerations.
func (c *PageCache) WithRegenerateTimeout(d time.Duration) *PageCache {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// Serve answers key from the cache, rendering on a miss.
// Only 200 responses are stored; anything else is returned once and forgotten.
func (c *PageCache) Serve(ctx context.Context, key string, revalidate time.Duration, render Renderer) (*RenderedPage, CacheState, error) {
	row, err := c.lookup(ctx, key)
	if err != nil {
		c.logger.Warn("page cache lookup failed", zap.String("key", key), zap.Error(err))
	}

	if row != nil {
		page := &RenderedPage{Status: row.Status, ContentType: row.ContentType, Body: row.Body}
		if !row.Stale(c.now()) {
			c.observer.ObserveCacheLookup(string(CacheFresh))
			return page, CacheFresh, nil
		}
		c.observer.ObserveCacheLookup(string(CacheStale))
		c.regenerate(ctx, key, revalidate, render)
		return page, CacheStale, nil
	}

	c.observer.ObserveCacheLookup(string(CacheMiss))
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// 合并的请求共享这次渲染，不能随第一个请求断开而取消
		renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.renderAndStore(renderCtx, key, revalidate, render)
	})
	if err != nil {
		return nil, CacheMiss, err
	}
	return v.(*RenderedPage), CacheMiss, nil
}

// Bypass renders without reading or writing the cache.
func (c *PageCache) Bypass(ctx context.Context, render Renderer) (*RenderedPage, CacheState, error) {
	c.observer.ObserveCacheLookup(string(CacheBypass))
	page, err := render(ctx)
	return page, CacheBypass, err
}

func (c *PageCache) lookup(ctx context.Context, key string) (*db.GeneratedPage, error) {
	var row db.GeneratedPage
	err := c.db.WithContext(ctx).Where("path = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (c *PageCache) renderAndStore(ctx context.Context, key string, revalidate time.Duration, render Renderer) (*RenderedPage, error) {
	page, err := render(ctx)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("render %s: no page", key)
	}
	if page.Status == http.StatusOK {
		if err := c.Store(ctx, key, revalidate, page); err != nil {
			c.logger.Warn("page cache store failed", zap.String("key", key), zap.Error(err))
		}
	}
	return page, nil
}

// regenerate starts a background render of key unless one is already running.
func (c *PageCache) regenerate(ctx context.Context, key string, revalidate time.Duration, render Renderer) {
	c.mu.Lock()
	if _, running := c.regenerating[key]; running {
		c.mu.Unlock()
		return
	}
	c.regenerating[key] = struct{}{}
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.regenerating, key)
			c.mu.Unlock()
		}()

		regenCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		start := c.now()
		page, err := render(regenCtx)
		elapsed := c.now().Sub(start)
		switch {
		case err != nil:
			// 保留旧页面，下次请求再试
			c.observer.ObserveRegeneration("error", elapsed)
			c.logger.Warn("page regeneration failed", zap.String("key", key), zap.Error(err))
		case page == nil || page.Status != http.StatusOK:
			c.observer.ObserveRegeneration("dropped", elapsed)
			if err := c.Invalidate(regenCtx, key); err != nil {
				c.logger.Warn("page cache invalidate failed", zap.String("key", key), zap.Error(err))
			}
		default:
			if err := c.Store(regenCtx, key, revalidate, page); err != nil {
				c.observer.ObserveRegeneration("error", elapsed)
				c.logger.Warn("page cache store failed", zap.String("key", key), zap.Error(err))
				return
			}
			c.observer.ObserveRegeneration("ok", elapsed)
			c.logger.Debug("page regenerated", zap.String("key", key), zap.Duration("elapsed", elapsed))
		}
	}()
}

// Store writes page under key, replacing any previous version.
func (c *PageCache) Store(ctx context.Context, key string, revalidate time.Duration, page *RenderedPage) error {
	now := c.now()
	row := db.GeneratedPage{
		Path:            key,
		Status:          page.Status,
		ContentType:     page.ContentType,
		Body:            page.Body,
		GeneratedAt:     now,
		RevalidateAfter: now.Add(revalidate),
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "content_type", "body", "generated_at", "revalidate_after", "updated_at", "deleted_at",
		}),
	}).Create(&row).Error
}

// Invalidate removes key so the next request renders it again.
func (c *PageCache) Invalidate(ctx context.Context, key string) error {
	return c.db.WithContext(ctx).Unscoped().Where("path = ?", key).Delete(&db.GeneratedPage{}).Error
}

// Purge removes every stored page and returns how many were removed.
func (c *PageCache) Purge(ctx context.Context) (int64, error) {
	res := c.db.WithContext(ctx).Unscoped().Where("1 = 1").Delete(&db.GeneratedPage{})
	return res.RowsAffected, res.Error
}

// Wait blocks until running regenerations finish.
func (c *PageCache) Wait() {
	c.wg.Wait()
}
