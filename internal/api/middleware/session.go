package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recipe-keeper/internal/core/session"
	"recipe-keeper/internal/pkg/common"
)

// SessionKey gin context 中存放階段的鍵
const SessionKey = "session"

// BearerToken 取出 Authorization: Bearer <token>
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// Session 依權杖載入階段。required 為 true 時沒有有效階段回傳 401；
// 否則以匿名身分繼續。
func Session(m *session.Manager, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c); token != "" {
			if sess, ok := m.Get(token); ok {
				c.Set(SessionKey, sess)
				c.Next()
				return
			}
		}

		if required {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   common.ErrUnauthorized.Message,
				"code":    common.ErrCodeUnauthorized,
			})
			return
		}
		c.Next()
	}
}

// SessionFrom 取得目前請求的階段；匿名時為 nil
func SessionFrom(c *gin.Context) *session.Session {
	if v, ok := c.Get(SessionKey); ok {
		if sess, ok := v.(*session.Session); ok {
			return sess
		}
	}
	return nil
}
