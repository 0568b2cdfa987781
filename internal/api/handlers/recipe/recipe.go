package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"recipe-keeper/internal/api/handlers"
	"recipe-keeper/internal/api/middleware"
	"recipe-keeper/internal/core/collection"
	"recipe-keeper/internal/core/generation"
	"recipe-keeper/internal/core/library"
	"recipe-keeper/internal/core/store"
	"recipe-keeper/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 等待即時查詢第一次完成的上限
const snapshotTimeout = 10 * time.Second

// IngredientList 接受字串陣列或以逗號分隔的字串
type IngredientList []string

// UnmarshalJSON 實現 json.Unmarshaler
func (l *IngredientList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("ingredients must be a string or an array of strings")
	}
	*l = IngredientList{s}
	return nil
}

// GenerateRequest 以食材生成食譜
type GenerateRequest struct {
	Menu        string         `json:"menu"`        // 以逗號分隔的食材
	Ingredients IngredientList `json:"ingredients"` // 或食材陣列
}

// SaveRequest 將食譜存入使用者的食譜庫
type SaveRequest struct {
	RecipeData map[string]any `json:"recipeData"`
	UserID     string         `json:"userId"`
}

// ListRequest 查詢使用者的食譜
type ListRequest struct {
	UserID string `json:"userId"`
}

// Handler 食譜處理程序
type Handler struct {
	generation *generation.Service
	library    *library.Service
	store      store.Store
	fallback   string
}

// NewHandler 創建新的食譜處理程序
func NewHandler(g *generation.Service, l *library.Service, st store.Store, fallbackImageURL string) *Handler {
	return &Handler{
		generation: g,
		library:    l,
		store:      st,
		fallback:   fallbackImageURL,
	}
}

// HandleGenerate 生成食譜。寫入在背景進行；?wait=true 時等待寫入結果並回報 persisted。
func (h *Handler) HandleGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}

	sess := middleware.SessionFrom(c)
	ingredients := append([]string{req.Menu}, req.Ingredients...)

	common.LogInfo("開始處理食譜生成請求",
		zap.Strings("ingredients", generation.SplitIngredients(ingredients...)),
		zap.Bool("authenticated", sess.UserID() != ""),
		zap.String("request_id", common.RequestIDFrom(c.Request.Context())),
	)

	result, err := h.generation.GenerateRecipe(c.Request.Context(), sess, ingredients...)
	if err != nil {
		handlers.Fail(c, err)
		return
	}

	response := gin.H{
		"success": true,
		"recipe":  result.Recipe,
	}
	if c.Query("wait") == "true" {
		err := result.Persisted.Wait(c.Request.Context())
		response["persisted"] = err == nil
	}
	c.JSON(http.StatusOK, response)
}

// HandleSave 儲存食譜並等待寫入完成
func (h *Handler) HandleSave(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.SessionFrom(c).UserID()
	}

	r, err := h.library.Save(c.Request.Context(), req.RecipeData, req.UserID)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	handlers.Success(c, http.StatusOK, "recipe", r)
}

// HandleList 依使用者查詢食譜
func (h *Handler) HandleList(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, err)
		return
	}

	recipes, err := h.library.ByUser(c.Request.Context(), req.UserID)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	handlers.Success(c, http.StatusOK, "recipes", recipes)
}

// snapshot 開啟即時集合並等待第一次完成的結果；呼叫端負責 Stop
func (h *Handler) snapshot(c *gin.Context) (*collection.Live, collection.Collection, error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), snapshotTimeout)
	defer cancel()

	live := collection.NewLive(h.store, middleware.SessionFrom(c), h.fallback)
	if err := live.Start(ctx); err != nil {
		return nil, collection.Collection{}, err
	}

	for coll := range live.Updates() {
		if !coll.IsLoading {
			return live, coll, nil
		}
	}
	live.Stop()
	return nil, collection.Collection{}, common.ErrServiceUnavailable.Wrap(errors.New("recipe collection did not load"))
}

// HandleCollection 回傳目前使用者的食譜集合
func (h *Handler) HandleCollection(c *gin.Context) {
	live, coll, err := h.snapshot(c)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	live.Stop()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   coll.State,
		"recipes": collection.Sorted(coll.Recipes),
	})
}

// HandleGet 依 recipeId 取得單一食譜；剛生成的食譜即使尚未寫入也能取得
func (h *Handler) HandleGet(c *gin.Context) {
	live, _, err := h.snapshot(c)
	if err != nil {
		handlers.Fail(c, err)
		return
	}
	defer live.Stop()

	view, ok := live.Get(c.Param("recipeId"))
	if !ok {
		handlers.Fail(c, common.ErrNotFound)
		return
	}
	handlers.Success(c, http.StatusOK, "recipe", view)
}

// HandleLive 以 SSE 推送食譜集合，每次遠端變更或登入狀態變更都送出一次 recipes 事件
func (h *Handler) HandleLive(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	live := collection.NewLive(h.store, sess, h.fallback)
	if err := live.Start(c.Request.Context()); err != nil {
		handlers.Fail(c, err)
		return
	}
	defer live.Stop()

	common.LogInfo("即時食譜訂閱開始", zap.String("user_id", sess.UserID()))

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		coll, ok := <-live.Updates()
		if !ok {
			return false
		}
		c.SSEvent("recipes", coll)
		return true
	})

	common.LogInfo("即時食譜訂閱結束", zap.String("user_id", sess.UserID()))
}
