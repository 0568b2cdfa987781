// Package handlers 放置各處理器共用的回應格式。
package handlers

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipe-keeper/internal/pkg/common"
)

// Success 回傳 {success: true, <key>: value}
func Success(c *gin.Context, status int, key string, value any) {
	c.JSON(status, gin.H{
		"success": true,
		key:       value,
	})
}

// Fail 依錯誤類型回傳 {success: false, error, code}
func Fail(c *gin.Context, err error) {
	status := common.StatusOf(err)
	fields := []zap.Field{
		zap.Error(err),
		zap.Int("status", status),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", requestid.Get(c)),
	}
	if status >= 500 {
		common.LogError("請求處理失敗", fields...)
	} else {
		common.LogWarn("請求處理失敗", fields...)
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    common.CodeOf(err),
	})
}

// BadRequest 請求格式錯誤
func BadRequest(c *gin.Context, err error) {
	Fail(c, common.NewValidationError("invalid request format: "+err.Error()))
}
