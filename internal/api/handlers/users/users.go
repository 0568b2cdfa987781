// Package users 提供帳號相關的代理端點。
package users

import (
	"errors"
	"net/http"

	"recipe-keeper/internal/api/handlers"
	"recipe-keeper/internal/core/users"
	"recipe-keeper/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// FindRequest 依 email 查詢
type FindRequest struct {
	Email string `json:"email"`
}

// FindGoogleRequest 依 Google ID 查詢
type FindGoogleRequest struct {
	GoogleID string `json:"googleId"`
}

// Handler 使用者處理程序
type Handler struct {
	users *users.Service
}

// NewHandler 創建使用者處理程序
func NewHandler(s *users.Service) *Handler {
	return &Handler{users: s}
}

// found 查無資料不是錯誤，回傳 user: null
func found(c *gin.Context, u *users.User, err error) {
	if errors.Is(err, common.ErrNotFound) {
		handlers.Success(c, http.StatusOK, "user", nil)
		return
	}
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	handlers.Success(c, http.StatusOK, "user", u)
}

// HandleCreate 建立帳號
func (h *Handler) HandleCreate(c *gin.Context) {
	var req users.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	u, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	handlers.Success(c, http.StatusOK, "user", u)
}

// HandleFind 依 email 查詢
func (h *Handler) HandleFind(c *gin.Context) {
	var req FindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	u, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	found(c, u, err)
}

// HandleFindGoogle 依 Google ID 查詢
func (h *Handler) HandleFindGoogle(c *gin.Context) {
	var req FindGoogleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	u, err := h.users.FindByGoogleID(c.Request.Context(), req.GoogleID)
	found(c, u, err)
}

// HandleCreateGoogle Google 登入：更新既有帳號或建立新帳號
func (h *Handler) HandleCreateGoogle(c *gin.Context) {
	var req users.GoogleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	u, err := h.users.CreateOrUpdateGoogle(c.Request.Context(), req)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	handlers.Success(c, http.StatusOK, "user", u)
}

// HandleUpdate 更新帳號欄位
func (h *Handler) HandleUpdate(c *gin.Context) {
	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	u, err := h.users.Update(c.Request.Context(), c.Param("userId"), updates)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	handlers.Success(c, http.StatusOK, "user", u)
}
