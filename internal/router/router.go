package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/spacetraveling/internal/handler"
	"github.com/spacetraveling/internal/metrics"
	"go.uber.org/zap"
)

const sessionName = "spacetraveling_session"

// Options 是路由层的可选依赖
type Options struct {
	SessionSecret string
	SecureCookies bool
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(handler.RequestIDMiddleware())
	r.Use(handler.RecoveryMiddleware(logger))
	r.Use(handler.LoggerMiddleware(logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}

	// 配置会话中间件，只保存预览 ref
	secret := opts.SessionSecret
	if secret == "" {
		secret = "spacetraveling-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// 前台页面
	public := r.Group("")
	public.Use(api.LocaleMiddleware())
	{
		public.GET("/", api.ShowHome)
		public.GET("/posts/more", api.LoadMorePosts)
		public.GET("/post/:slug", api.ShowPost)
		public.GET("/api/preview", api.EnterPreview)
		public.GET("/api/exit-preview", api.ExitPreview)
	}

	return r
}
