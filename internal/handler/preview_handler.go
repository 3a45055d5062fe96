package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/spacetraveling/internal/locale"
	"github.com/spacetraveling/internal/service"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const previewSessionKey = "preview_ref"

// EnterPreview 保存预览 ref 到会话并跳转到被预览的文章
func (a *API) EnterPreview(c *gin.Context) {
	pref := a.requestLocale(c)
	invalid := locale.Text(pref.Language, "invalid_preview")

	if !a.previewSecretMatches(c.Query("secret")) {
		a.renderError(c, http.StatusUnauthorized, pref, "Preview inválido", invalid)
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	dest, err := a.posts.ResolvePreview(c.Request.Context(), token, c.Query("documentId"))
	if err != nil {
		c.Error(err)
		if errors.Is(err, service.ErrInvalidPreview) {
			a.renderError(c, http.StatusUnauthorized, pref, "Preview inválido", invalid)
			return
		}
		a.renderError(c, http.StatusBadGateway, pref, "Erro", "")
		return
	}

	session := sessions.Default(c)
	session.Set(previewSessionKey, token)
	if err := session.Save(); err != nil {
		c.Error(err)
		a.renderError(c, http.StatusInternalServerError, pref, "Erro", "")
		return
	}

	a.logger.Info("preview started", zap.String("destination", dest))
	c.Redirect(http.StatusTemporaryRedirect, dest)
}

// ExitPreview 清除会话中的预览 ref
func (a *API) ExitPreview(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete(previewSessionKey)
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	c.Redirect(http.StatusTemporaryRedirect, "/")
}

// previewRef returns the preview ref of the current session, or "".
func previewRef(c *gin.Context) string {
	ref, _ := sessions.Default(c).Get(previewSessionKey).(string)
	return ref
}

// previewSecretMatches 未配置 PREVIEW_SECRET 时放行；支持明文或 bcrypt 哈希
func (a *API) previewSecretMatches(given string) bool {
	secret := strings.TrimSpace(a.cfg.PreviewSecret)
	if secret == "" {
		return true
	}
	if given == "" {
		return false
	}
	if isBcryptHash(secret) {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(given)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
