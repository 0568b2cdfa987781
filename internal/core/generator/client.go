// Package generator 呼叫外部的食譜生成服務並回傳原始回應內容。
package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"recipe-keeper/internal/core/cache"
	"recipe-keeper/internal/infrastructure/config"
	"recipe-keeper/internal/pkg/common"
)

// 錯誤訊息中保留的回應長度
const maxErrorBody = 200

// UpstreamError 生成服務回傳非 2xx 狀態
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation service returned status %d: %s", e.Status, e.Body)
}

// Unwrap 讓 API 層將它對應為 502
func (e *UpstreamError) Unwrap() error {
	return common.ErrUpstream
}

// Client 食譜生成服務客戶端
type Client struct {
	client *resty.Client
	url    string
	cache  *cache.Manager
}

// NewClient 創建生成服務客戶端；cache 可為 nil
func NewClient(cfg *config.Config, c *cache.Manager) *Client {
	client := resty.New().
		SetTimeout(cfg.Generator.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json, text/plain, */*")
	if cfg.Generator.Referer != "" {
		client.SetHeader("HTTP-Referer", cfg.Generator.Referer)
	}

	return &Client{
		client: client,
		url:    cfg.Generator.URL,
		cache:  c,
	}
}

// Generate 將食材以逗號合併後送出，回傳原始回應
func (c *Client) Generate(ctx context.Context, ingredients []string) ([]byte, error) {
	menu := strings.Join(ingredients, ",")

	if body, err := c.cache.Get(ctx, menu); err == nil {
		return body, nil
	}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"menu": menu}).
		Post(c.url)
	duration := time.Since(start)
	requestID := common.RequestIDFrom(ctx)

	if err != nil {
		err = classify(err)
		common.LogUpstreamCall(duration, err, requestID)
		return nil, err
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		upstreamErr := &UpstreamError{
			Status: resp.StatusCode(),
			Body:   common.Truncate(resp.String(), maxErrorBody),
		}
		common.LogUpstreamCall(duration, upstreamErr, requestID)
		return nil, upstreamErr
	}

	common.LogUpstreamCall(duration, nil, requestID)
	body := resp.Body()
	common.LogDebug("食譜生成服務回應",
		zap.Int("bytes", len(body)),
		zap.String("content_type", resp.Header().Get("Content-Type")),
	)

	if err := c.cache.Set(ctx, menu, body); err != nil {
		common.LogWarn("無法快取生成結果", zap.Error(err))
	}
	return body, nil
}

func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return common.ErrGatewayTimeout.Wrap(err)
	}
	return common.ErrUpstream.Wrap(fmt.Errorf("failed to reach generation service: %w", err))
}
