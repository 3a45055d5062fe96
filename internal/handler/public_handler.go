package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spacetraveling/internal/locale"
	"github.com/spacetraveling/internal/prismic"
	"github.com/spacetraveling/internal/service"
	"github.com/spacetraveling/internal/view"
	"go.uber.org/zap"
)

// ShowHome renders the first page of posts with the load-more button.
func (a *API) ShowHome(c *gin.Context) {
	pref := a.requestLocale(c)
	ref := previewRef(c)
	a.serve(c, pref, "/", a.cfg.ListingRevalidate, ref, a.homeRenderer(pref, ref))
}

// LoadMorePosts returns the next run of post cards for the HTMX button.
func (a *API) LoadMorePosts(c *gin.Context) {
	cursor := strings.TrimSpace(c.Query("cursor"))
	if cursor == "" {
		c.Status(http.StatusNoContent)
		return
	}

	pref := a.requestLocale(c)
	listing := a.posts.ListingAt(cursor)
	defer listing.Close()

	if _, err := listing.LoadMore(c.Request.Context()); err != nil {
		c.Error(err)
		status := http.StatusBadGateway
		if errors.Is(err, prismic.ErrForeignCursor) {
			status = http.StatusBadRequest
		}
		var loadErr *service.LoadError
		retryable := errors.As(err, &loadErr) && loadErr.Retryable()
		renderFragment(c, status, "load_more_error", view.LoadMoreError{
			Lang:      pref.Language,
			RetryURL:  view.LoadMoreURL(cursor),
			Retryable: retryable,
		})
		return
	}

	c.Header("Cache-Control", "no-store")
	renderFragment(c, http.StatusOK, "post_cards", view.NewCards(pref.Language, listing.Results(), listing.NextCursor()))
}

// ShowPost renders a post by slug, or the 404 page.
func (a *API) ShowPost(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	pref := a.requestLocale(c)
	ref := previewRef(c)
	a.serve(c, pref, service.PostPath(slug), a.cfg.PostRevalidate, ref, a.postRenderer(pref, slug, ref))
}

// serve answers from the page cache, or renders directly in preview.
func (a *API) serve(c *gin.Context, pref locale.Preference, path string, revalidate time.Duration, ref string, render service.Renderer) {
	var (
		page  *service.RenderedPage
		state service.CacheState
		err   error
	)
	if ref != "" {
		page, state, err = a.cache.Bypass(c.Request.Context(), render)
	} else {
		page, state, err = a.cache.Serve(c.Request.Context(), cacheKey(path, pref.Language), revalidate, render)
	}
	if err != nil {
		c.Error(err)
		a.logger.Error("render page failed", zap.String("path", path), zap.Error(err))
		a.renderError(c, http.StatusInternalServerError, pref, "Erro", "")
		return
	}
	writePage(c, page, state)
}

// homeRenderer captures only plain values so it can outlive the request.
func (a *API) homeRenderer(pref locale.Preference, ref string) service.Renderer {
	return func(ctx context.Context) (*service.RenderedPage, error) {
		listing, err := a.posts.Home(ctx, ref, a.cfg.HomePageSize)
		if err != nil {
			return nil, err
		}
		defer listing.Close()

		return view.RenderPage(http.StatusOK, "home", view.HomePage{
			Base:  a.base(pref, localizeFixedTitle(pref.Language, "Home"), "/", ref != ""),
			Cards: view.NewCards(pref.Language, listing.Results(), listing.NextCursor()),
		})
	}
}

func (a *API) postRenderer(pref locale.Preference, slug, ref string) service.Renderer {
	path := service.PostPath(slug)
	return func(ctx context.Context) (*service.RenderedPage, error) {
		detail, err := a.posts.LoadPost(ctx, slug, ref)
		if errors.Is(err, service.ErrPostNotFound) {
			return view.RenderPage(http.StatusNotFound, "not_found", view.ErrorPage{
				Base:   a.base(pref, localizeFixedTitle(pref.Language, "Post não encontrado"), path, ref != ""),
				Status: http.StatusNotFound,
			})
		}
		if err != nil {
			return nil, err
		}

		return view.RenderPage(http.StatusOK, "post", view.PostPage{
			Base:     a.base(pref, detail.Post.Title, path, ref != ""),
			Detail:   detail,
			Comments: a.comments(slug),
		})
	}
}

// Prerender stores the home page and every post in each supported language.
// It returns the number of pages written.
func (a *API) Prerender(ctx context.Context) (int, error) {
	slugs, err := a.posts.Slugs(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, language := range []string{locale.LanguagePortuguese, locale.LanguageEnglish} {
		pref := locale.PreferenceForLanguage(language)

		page, err := a.homeRenderer(pref, "")(ctx)
		if err != nil {
			return written, err
		}
		if err := a.cache.Store(ctx, cacheKey("/", language), a.cfg.ListingRevalidate, page); err != nil {
			return written, err
		}
		written++

		for _, slug := range slugs {
			page, err := a.postRenderer(pref, slug, "")(ctx)
			if errors.Is(err, service.ErrMalformedPost) {
				a.logger.Warn("skip malformed post", zap.String("slug", slug), zap.Error(err))
				continue
			}
			if err != nil {
				return written, err
			}
			if page.Status != http.StatusOK {
				a.logger.Warn("skip prerender", zap.String("slug", slug), zap.Int("status", page.Status))
				continue
			}
			if err := a.cache.Store(ctx, cacheKey(service.PostPath(slug), language), a.cfg.PostRevalidate, page); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}
