package handler

import (
	"net/url"
	"strings"

	"github.com/spacetraveling/internal/config"
	"github.com/spacetraveling/internal/locale"
	"github.com/spacetraveling/internal/service"
	"github.com/spacetraveling/internal/view"
	"go.uber.org/zap"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	posts  *service.PostService
	cache  *service.PageCache
	cfg    config.AppConfig
	logger *zap.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(posts *service.PostService, cache *service.PageCache, cfg config.AppConfig, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HomePageSize <= 0 {
		cfg.HomePageSize = config.DefaultHomePageSize
	}
	if cfg.ListingRevalidate <= 0 {
		cfg.ListingRevalidate = config.DefaultListingRevalidate
	}
	if cfg.PostRevalidate <= 0 {
		cfg.PostRevalidate = config.DefaultPostRevalidate
	}
	return &API{
		posts:  posts,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

// base fills the layout fields for a page at path. Fixed page titles are
// localized by the caller.
func (a *API) base(pref locale.Preference, title, path string, preview bool) view.Base {
	return view.Base{
		Title:      title,
		Lang:       pref.Language,
		HTMLLang:   pref.HTMLLang,
		Preview:    preview,
		SiteURL:    a.cfg.SiteBaseURL,
		Path:       path,
		LangSwitch: buildLanguageSwitch(path),
	}
}

func (a *API) comments(slug string) view.Comments {
	return view.Comments{
		Repo:      strings.TrimSpace(a.cfg.Comments.Repo),
		IssueTerm: "pathname",
		Label:     a.cfg.Comments.Label,
		Theme:     a.cfg.Comments.Theme,
		Key:       slug,
	}
}

// cacheKey 区分语言，同一路径的不同语言各自缓存
func cacheKey(path, language string) string {
	return path + "|" + language
}

func buildLanguageSwitch(path string) map[string]string {
	if path == "" {
		path = "/"
	}
	return map[string]string{
		locale.LanguagePortuguese: path + "?" + url.Values{"lang": {locale.LanguagePortuguese}}.Encode(),
		locale.LanguageEnglish:    path + "?" + url.Values{"lang": {locale.LanguageEnglish}}.Encode(),
	}
}
