// Package session 提供登入與登出端點。
package session

import (
	"net/http"

	"recipe-keeper/internal/api/handlers"
	"recipe-keeper/internal/api/middleware"
	"recipe-keeper/internal/core/session"
	"recipe-keeper/internal/core/users"

	"github.com/gin-gonic/gin"
)

// LoginRequest 以 email 登入既有帳號
type LoginRequest struct {
	Email string `json:"email" binding:"required"`
}

// Handler 階段處理程序
type Handler struct {
	users    *users.Service
	sessions *session.Manager
}

// NewHandler 創建階段處理程序
func NewHandler(u *users.Service, m *session.Manager) *Handler {
	return &Handler{users: u, sessions: m}
}

// HandleLogin 為既有使用者建立階段並回傳權杖
func (h *Handler) HandleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}

	u, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		handlers.Fail(c, err)
		return
	}

	sess := h.sessions.Start(*u)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   sess.Token(),
		"user":    u,
	})
}

// HandleLogout 結束目前的階段；清除使用者與目前食譜
func (h *Handler) HandleLogout(c *gin.Context) {
	ended := h.sessions.End(middleware.BearerToken(c))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ended":   ended,
	})
}

// HandleMe 目前登入的使用者與剛生成的食譜
func (h *Handler) HandleMe(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	u, _ := sess.User()
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"user":          u,
		"currentRecipe": sess.CurrentRecipe(),
	})
}
