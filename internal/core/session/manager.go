package session

import (
	"sync"

	"go.uber.org/zap"

	"recipe-keeper/internal/core/users"
	"recipe-keeper/internal/pkg/common"
)

// Manager 以 token 管理登入階段
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager 創建階段管理器
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Start 為使用者建立新的階段
func (m *Manager) Start(u users.User) *Session {
	s := New(common.GenerateUUID())
	s.Login(u)

	m.mu.Lock()
	m.sessions[s.token] = s
	m.mu.Unlock()

	common.LogInfo("登入", zap.String("user_id", u.ID))
	return s
}

// Get 依 token 取得階段
func (m *Manager) Get(token string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	return s, ok
}

// End 登出並移除階段
func (m *Manager) End(token string) bool {
	m.mu.Lock()
	s, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()

	if !ok {
		return false
	}
	userID := s.UserID()
	s.Logout()
	common.LogInfo("登出", zap.String("user_id", userID))
	return true
}

// Count 目前的階段數
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
