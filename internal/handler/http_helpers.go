package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spacetraveling/internal/locale"
	"github.com/spacetraveling/internal/service"
	"github.com/spacetraveling/internal/view"
)

const pageCacheHeader = "X-Page-Cache"

// writePage sends a rendered page. Preview responses must never be shared.
func writePage(c *gin.Context, page *service.RenderedPage, state service.CacheState) {
	c.Header(pageCacheHeader, string(state))
	if state == service.CacheBypass {
		c.Header("Cache-Control", "private, no-store")
	}
	contentType := page.ContentType
	if contentType == "" {
		contentType = view.ContentTypeHTML
	}
	c.Data(page.Status, contentType, page.Body)
}

// renderFragment writes an HTML fragment with no layout.
func renderFragment(c *gin.Context, status int, name string, data interface{}) {
	c.Header("Content-Type", view.ContentTypeHTML)
	c.Status(status)
	if err := view.Render(c.Writer, name, data); err != nil {
		c.Error(err)
	}
}

// renderError renders the full error page, falling back to plain text.
func (a *API) renderError(c *gin.Context, status int, pref locale.Preference, title, message string) {
	page, err := view.RenderPage(status, "error", view.ErrorPage{
		Base:    a.base(pref, localizeFixedTitle(pref.Language, title), c.Request.URL.Path, false),
		Status:  status,
		Message: message,
	})
	if err != nil {
		c.Error(err)
		c.String(status, http.StatusText(status))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(page.Status, page.ContentType, page.Body)
}
