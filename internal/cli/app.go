package cli

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spacetraveling/internal/config"
	"github.com/spacetraveling/internal/db"
	"github.com/spacetraveling/internal/handler"
	"github.com/spacetraveling/internal/localcms"
	"github.com/spacetraveling/internal/logging"
	"github.com/spacetraveling/internal/metrics"
	"github.com/spacetraveling/internal/prismic"
	"github.com/spacetraveling/internal/router"
	"github.com/spacetraveling/internal/service"
	"go.uber.org/zap"
)

// app 是所有子命令共享的运行时依赖
type app struct {
	cfg     config.AppConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	cache   *service.PageCache
	api     *handler.API
	close   func()
}

// bootstrap 读取配置并组装内容源、页面缓存与 handler
func bootstrap() (*app, error) {
	if err := config.LoadDotenv(envFiles...); err != nil {
		return nil, err
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	m := metrics.New()

	content, err := openContent(cfg, logger, m)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	if err := db.Init(cfg.DatabasePath); err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open page cache: %w", err)
	}

	cache := service.NewPageCache(db.DB, logger.Named("cache")).WithObserver(m)
	posts := service.NewPostService(content, logger.Named("posts")).WithPageSize(cfg.HomePageSize)
	api := handler.NewAPI(posts, cache, cfg, logger.Named("http"))

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		cache:   cache,
		api:     api,
		close: func() {
			cache.Wait()
			if sqlDB, err := db.DB.DB(); err == nil {
				_ = sqlDB.Close()
			}
			_ = logger.Sync()
		},
	}, nil
}

// openContent 选择本地 Markdown 目录或 Prismic 仓库
func openContent(cfg config.AppConfig, logger *zap.Logger, m *metrics.Metrics) (service.ContentClient, error) {
	if cfg.UsesLocalContent() {
		store, err := localcms.Open(cfg.ContentDir)
		if err != nil {
			return nil, fmt.Errorf("open content dir: %w", err)
		}
		logger.Info("using local content", zap.String("dir", cfg.ContentDir))
		return store, nil
	}

	client, err := prismic.NewClient(cfg.PrismicEndpoint,
		prismic.WithAccessToken(cfg.PrismicAccessToken),
		prismic.WithTimeout(cfg.CMSTimeout),
		prismic.WithLogger(logger.Named("prismic")),
		prismic.WithObserver(m),
	)
	if err != nil {
		return nil, fmt.Errorf("create prismic client: %w", err)
	}
	logger.Info("using prismic", zap.String("endpoint", cfg.PrismicEndpoint))
	return client, nil
}

func (a *app) router() *gin.Engine {
	if a.cfg.GinMode != "" {
		gin.SetMode(a.cfg.GinMode)
	}
	return router.SetupRouter(a.api, router.Options{
		SessionSecret: a.cfg.SessionSecret,
		SecureCookies: isHTTPS(a.cfg.SiteBaseURL),
		Metrics:       a.metrics,
		Logger:        a.logger.Named("http"),
	})
}

func isHTTPS(baseURL string) bool {
	return strings.HasPrefix(baseURL, "https://")
}
