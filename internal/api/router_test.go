package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-keeper/internal/core/store"
	"recipe-keeper/internal/core/users"
	"recipe-keeper/internal/infrastructure/config"
	"recipe-keeper/internal/pkg/common"
)

const scenarioA = `{"recipe": {"dish_name": "Lemon Tuna", "instructions": ["Sear tuna for 5 minutes", "Add lemon"]}, "nutrition": {"calories": 310.4}}`

type generatorFunc func(ctx context.Context, ingredients []string) ([]byte, error)

func (f generatorFunc) Generate(ctx context.Context, ingredients []string) ([]byte, error) {
	return f(ctx, ingredients)
}

func fixedGenerator(body string) generatorFunc {
	return func(ctx context.Context, ingredients []string) ([]byte, error) {
		return []byte(body), nil
	}
}

func testConfig() *config.Config {
	return &config.Config{
		App:         config.AppConfig{Env: "test", Version: "test"},
		Queue:       config.QueueConfig{Workers: 2, MaxSize: 20},
		Store:       config.StoreConfig{Backend: "memory", SettleDelay: time.Millisecond},
		Collection:  config.CollectionConfig{FallbackImageURL: "https://example.com/fallback.png"},
		DedupWindow: time.Second,
	}
}

func setup(t *testing.T, gen generatorFunc) (*gin.Engine, *Dependencies) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	st := store.NewMemoryStore()
	deps := NewDependencies(cfg, st, gen, nil)
	t.Cleanup(func() {
		deps.Close()
		st.Close()
	})
	return SetupRouter(cfg, deps), deps
}

func do(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func login(t *testing.T, r http.Handler, deps *Dependencies, email string) (string, string) {
	u, err := deps.Users.Create(context.Background(), users.CreateInput{Email: email, Name: "Cook"})
	require.NoError(t, err)

	w := do(r, http.MethodPost, "/api/session/login", "", gin.H{"email": email})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string), u.ID
}

func TestHealthEndpoints(t *testing.T) {
	r, _ := setup(t, fixedGenerator(`{}`))

	w := do(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["store"].(map[string]any)["backend"])
	assert.Equal(t, float64(2), body["queue"].(map[string]any)["workers"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/live", "", nil).Code)
}

func TestGenerateAnonymous(t *testing.T) {
	var got []string
	r, _ := setup(t, func(ctx context.Context, ingredients []string) ([]byte, error) {
		got = ingredients
		return []byte(scenarioA), nil
	})

	w := do(r, http.MethodPost, "/api/recipes/generate?wait=true", "", gin.H{"menu": "tuna, lemon ,onion"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"tuna", "lemon", "onion"}, got)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["persisted"])
	rec := body["recipe"].(map[string]any)
	assert.Equal(t, "Lemon Tuna", rec["dishName"])
	assert.Equal(t, "", rec["userId"])
	assert.Equal(t, float64(5), rec["prepTimeMinutes"])
	assert.Equal(t, float64(310), rec["nutrition"].(map[string]any)["calories"])
}

func TestGenerateIngredientShapes(t *testing.T) {
	var got []string
	r, _ := setup(t, func(ctx context.Context, ingredients []string) ([]byte, error) {
		got = ingredients
		return []byte(`{"dishName":"Soup"}`), nil
	})

	w := do(r, http.MethodPost, "/api/recipes/generate", "", gin.H{"ingredients": []string{" carrot", "", "leek"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"carrot", "leek"}, got)

	w = do(r, http.MethodPost, "/api/recipes/generate", "", gin.H{"ingredients": "rice,beans"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"rice", "beans"}, got)

	w = do(r, http.MethodPost, "/api/recipes/generate", "", gin.H{"ingredients": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateValidation(t *testing.T) {
	r, _ := setup(t, fixedGenerator(`{}`))

	w := do(r, http.MethodPost, "/api/recipes/generate", "", gin.H{"menu": " , "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, common.ErrCodeInvalidRequest, body["code"])
	assert.Contains(t, body["error"], "at least one ingredient")
}

func TestGenerateUpstreamFailure(t *testing.T) {
	r, _ := setup(t, func(ctx context.Context, ingredients []string) ([]byte, error) {
		return nil, common.ErrUpstream.Wrap(errors.New("connection refused"))
	})

	w := do(r, http.MethodPost, "/api/recipes/generate", "", gin.H{"menu": "tuna"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, common.ErrCodeUpstreamError, decode(t, w)["code"])
}

func TestGenerateDeduplicates(t *testing.T) {
	r, _ := setup(t, fixedGenerator(`{"dishName":"Soup"}`))

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/recipes/generate", "", gin.H{"menu": "kale"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/recipes/generate", "", gin.H{"menu": "kale"}).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/recipes/generate", "", gin.H{"menu": "chard"}).Code)
}

func TestSessionCollectionFlow(t *testing.T) {
	r, deps := setup(t, fixedGenerator(scenarioA))
	token, userID := login(t, r, deps, "Cook@Example.com")

	w := do(r, http.MethodGet, "/api/session/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cook@example.com", decode(t, w)["user"].(map[string]any)["email"])

	w = do(r, http.MethodPost, "/api/recipes/generate?wait=true", token, gin.H{"menu": "tuna,lemon"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decode(t, w)["recipe"].(map[string]any)
	assert.Equal(t, userID, rec["userId"])
	recipeID := rec["recipeId"].(string)

	w = do(r, http.MethodGet, "/api/recipes/collection", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "ready", body["state"])
	list := body["recipes"].([]any)
	require.Len(t, list, 1)
	view := list[0].(map[string]any)
	assert.Equal(t, recipeID, view["recipeId"])
	assert.Equal(t, map[string]any{"type": "url", "value": "https://example.com/fallback.png"}, view["image"])

	w = do(r, http.MethodGet, "/api/recipes/collection/"+recipeID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Lemon Tuna", decode(t, w)["recipe"].(map[string]any)["dishName"])

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/recipes/collection/missing", token, nil).Code)

	w = do(r, http.MethodPost, "/api/session/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ended"])

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/session/me", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/recipes/collection", token, nil).Code)
}

func TestUserProxyEndpoints(t *testing.T) {
	r, _ := setup(t, fixedGenerator(`{}`))

	w := do(r, http.MethodPost, "/api/users/create", "", gin.H{"email": " A@B.com ", "name": "Ann", "passwordHash": "h", "passwordSalt": "s"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, "a@b.com", created["email"])
	assert.NotContains(t, created, "passwordHash")
	userID := created["id"].(string)

	w = do(r, http.MethodPost, "/api/users/create", "", gin.H{"email": "a@b.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	w = do(r, http.MethodPost, "/api/users/find", "", gin.H{"email": "A@B.COM"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, decode(t, w)["user"].(map[string]any)["id"])

	w = do(r, http.MethodPost, "/api/users/find", "", gin.H{"email": "nobody@b.com"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Nil(t, body["user"])

	w = do(r, http.MethodPost, "/api/users/create-google", "", gin.H{"email": "a@b.com", "googleId": "g-1", "name": "Ann G"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, userID, decode(t, w)["user"].(map[string]any)["id"])

	w = do(r, http.MethodPost, "/api/users/find-google", "", gin.H{"googleId": "g-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, decode(t, w)["user"].(map[string]any)["id"])

	w = do(r, http.MethodPut, "/api/users/update/"+userID, "", gin.H{"name": "Annie"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Annie", decode(t, w)["user"].(map[string]any)["name"])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/api/users/update/"+userID, "", gin.H{"id": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPut, "/api/users/update/missing", "", gin.H{"name": "x"}).Code)
}

func TestRecipeProxyEndpoints(t *testing.T) {
	r, _ := setup(t, fixedGenerator(`{}`))

	w := do(r, http.MethodPost, "/api/recipes/save", "", gin.H{
		"userId":     "user-1",
		"recipeData": gin.H{"dishName": "Pasta", "ingredients": []string{"pasta"}, "difficulty": "Easy"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode(t, w)["recipe"].(map[string]any)
	assert.Equal(t, "easy", saved["difficulty"])

	w = do(r, http.MethodPost, "/api/recipes/get", "", gin.H{"userId": "user-1"})
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["recipes"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, saved["recipeId"], list[0].(map[string]any)["recipeId"])

	w = do(r, http.MethodPost, "/api/recipes/get", "", gin.H{"userId": "user-2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["recipes"])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/recipes/save", "", gin.H{"userId": "user-1"}).Code)
}

func TestLiveFeed(t *testing.T) {
	r, deps := setup(t, fixedGenerator(scenarioA))
	srv := httptest.NewServer(r)
	defer srv.Close()
	token, _ := login(t, r, deps, "live@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/recipes/live", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := make(chan string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data:"); ok {
				events <- data
			}
		}
	}()

	waitFor := func(match func(map[string]any) bool) {
		timeout := time.After(5 * time.Second)
		for {
			select {
			case data, ok := <-events:
				require.True(t, ok, "stream closed")
				var coll map[string]any
				require.NoError(t, json.Unmarshal([]byte(data), &coll))
				if match(coll) {
					return
				}
			case <-timeout:
				t.Fatal("timed out waiting for event")
			}
		}
	}

	waitFor(func(c map[string]any) bool { return c["state"] == "ready" })

	w := do(r, http.MethodPost, "/api/recipes/generate", token, gin.H{"menu": "tuna"})
	require.Equal(t, http.StatusOK, w.Code)

	waitFor(func(c map[string]any) bool {
		for _, v := range c["recipes"].(map[string]any) {
			if v.(map[string]any)["dishName"] == "Lemon Tuna" {
				return true
			}
		}
		return false
	})
}
