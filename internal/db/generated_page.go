package db

import (
	"time"

	"gorm.io/gorm"
)

// GeneratedPage 保存一次渲染后的完整页面，供增量再生成使用
type GeneratedPage struct {
	gorm.Model
	// Path 是缓存键，通常为 "路径|语言"
	Path        string `gorm:"size:512;uniqueIndex;not null"`
	Status      int    `gorm:"not null;default:200"`
	ContentType string `gorm:"size:128"`
	Body        []byte
	GeneratedAt time.Time
	// RevalidateAfter 之后的请求会触发后台重新生成
	RevalidateAfter time.Time `gorm:"index"`
}

// Stale reports whether the page is past its revalidation time at now.
func (p *GeneratedPage) Stale(now time.Time) bool {
	return !now.Before(p.RevalidateAfter)
}
