package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	DatabasePath  string
	SessionSecret string
	GinMode       string
	SiteBaseURL   string

	// 内容来源：CONTENT_DIR 非空时使用本地 Markdown，否则使用 Prismic
	PrismicEndpoint    string
	PrismicAccessToken string
	ContentDir         string
	CMSTimeout         time.Duration

	PreviewSecret string
	HomePageSize  int

	ListingRevalidate time.Duration
	PostRevalidate    time.Duration

	Comments CommentsConfig

	DefaultLanguage string
	LogLevel        string
}

// CommentsConfig configures the utterances widget under each post.
type CommentsConfig struct {
	Repo  string
	Theme string
	Label string
}

// Enabled reports whether a comments repository is configured.
func (c CommentsConfig) Enabled() bool {
	return c.Repo != ""
}

const (
	DefaultListingRevalidate = time.Hour
	DefaultPostRevalidate    = 30 * time.Minute
	DefaultCMSTimeout        = 10 * time.Second
	DefaultHomePageSize      = 1

	DefaultCommentsRepo  = "paulabonini/ignite-create-Project-from-0"
	DefaultCommentsTheme = "dark-blue"
	DefaultCommentsLabel = "comment :speech_balloon:"
)

// LoadDotenv 读取 .env 文件到进程环境，已存在的变量不会被覆盖。
// 文件不存在时静默跳过。
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := env("PORT", "3000")

	listenAddr := env("LISTEN_ADDR", fmt.Sprintf(":%s", port))

	return AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		DatabasePath:  env("DATABASE_PATH", "spacetraveling.db"),
		SessionSecret: env("SESSION_SECRET", "spacetraveling-dev-secret"),
		GinMode:       env("GIN_MODE", "release"),
		SiteBaseURL:   strings.TrimRight(env("SITE_BASE_URL", "http://localhost:"+port), "/"),

		PrismicEndpoint:    env("PRISMIC_API_ENDPOINT", ""),
		PrismicAccessToken: env("PRISMIC_ACCESS_TOKEN", ""),
		ContentDir:         env("CONTENT_DIR", ""),
		CMSTimeout:         durationEnv("CMS_TIMEOUT", DefaultCMSTimeout),

		PreviewSecret: env("PREVIEW_SECRET", ""),
		HomePageSize:  intEnv("HOME_PAGE_SIZE", DefaultHomePageSize),

		ListingRevalidate: durationEnv("LISTING_REVALIDATE", DefaultListingRevalidate),
		PostRevalidate:    durationEnv("POST_REVALIDATE", DefaultPostRevalidate),

		Comments: CommentsConfig{
			Repo:  env("COMMENTS_REPO", DefaultCommentsRepo),
			Theme: env("COMMENTS_THEME", DefaultCommentsTheme),
			Label: env("COMMENTS_LABEL", DefaultCommentsLabel),
		},

		DefaultLanguage: env("DEFAULT_LANGUAGE", "pt"),
		LogLevel:        env("LOG_LEVEL", "info"),
	}
}

// Validate 检查必须成对出现或互斥的配置项
func (c AppConfig) Validate() error {
	if c.ContentDir == "" && c.PrismicEndpoint == "" {
		return errors.New("either PRISMIC_API_ENDPOINT or CONTENT_DIR must be set")
	}
	if c.HomePageSize < 1 || c.HomePageSize > 100 {
		return fmt.Errorf("HOME_PAGE_SIZE must be between 1 and 100, got %d", c.HomePageSize)
	}
	if c.ListingRevalidate <= 0 || c.PostRevalidate <= 0 {
		return errors.New("revalidate windows must be positive")
	}
	return nil
}

// UsesLocalContent reports whether posts come from CONTENT_DIR.
func (c AppConfig) UsesLocalContent() bool {
	return c.ContentDir != ""
}

func env(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

// durationEnv 接受 Go 时长（"30m"）或纯秒数（"1800"）
func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := env(key, "")
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := env(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
