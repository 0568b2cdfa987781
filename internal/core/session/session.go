// Package session 保存每個登入者的狀態：目前使用者與剛生成的食譜。
package session

import (
	"sync"

	"recipe-keeper/internal/core/recipe"
	"recipe-keeper/internal/core/users"
)

// Session 登入階段。登入時設定使用者，登出時清除使用者與目前的食譜。
type Session struct {
	token string

	mu       sync.RWMutex
	user     *users.User
	current  *recipe.Recipe
	watchers map[chan struct{}]struct{}
}

// New 創建未登入的階段
func New(token string) *Session {
	return &Session{
		token:    token,
		watchers: make(map[chan struct{}]struct{}),
	}
}

// Token 階段識別碼
func (s *Session) Token() string {
	return s.token
}

// Login 設定目前使用者
func (s *Session) Login(u users.User) {
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	s.broadcast()
}

// Logout 清除使用者與目前的食譜
func (s *Session) Logout() {
	s.mu.Lock()
	s.user = nil
	s.current = nil
	s.mu.Unlock()
	s.broadcast()
}

// User 目前使用者
func (s *Session) User() (users.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return users.User{}, false
	}
	return *s.user, true
}

// UserID 未登入時為空字串
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// SetCurrentRecipe 記錄剛生成的食譜；在遠端儲存可見之前以它為準
func (s *Session) SetCurrentRecipe(r *recipe.Recipe) {
	s.mu.Lock()
	s.current = r
	s.mu.Unlock()
}

// CurrentRecipe 目前的食譜，可能為 nil
func (s *Session) CurrentRecipe() *recipe.Recipe {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ClearCurrentRecipe 清除目前的食譜
func (s *Session) ClearCurrentRecipe() {
	s.SetCurrentRecipe(nil)
}

// Watch 使用者變更時通知；回傳的函式用來取消監聽
func (s *Session) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
	}
}

func (s *Session) broadcast() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
