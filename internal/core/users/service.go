// Package users 提供後端代理的使用者操作，資料存放於遠端儲存的 users namespace。
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"recipe-keeper/internal/core/store"
	"recipe-keeper/internal/infrastructure/config"
	"recipe-keeper/internal/pkg/common"
)

// User 使用者
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	GoogleID     string `json:"googleId,omitempty"`
	PhotoURL     string `json:"photoUrl,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	PasswordHash string `json:"-"`
	PasswordSalt string `json:"-"`
}

// CreateInput 建立帳號
type CreateInput struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	PasswordSalt string `json:"passwordSalt"`
	Name         string `json:"name"`
}

// GoogleInput Google 登入
type GoogleInput struct {
	Email    string `json:"email"`
	GoogleID string `json:"googleId"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

// 可透過 Update 修改的欄位
var updatableFields = map[string]bool{
	"name":         true,
	"email":        true,
	"photoUrl":     true,
	"googleId":     true,
	"passwordHash": true,
	"passwordSalt": true,
}

// Service 使用者服務
type Service struct {
	store  store.Store
	settle time.Duration
	now    func() time.Time

	// 同一執行個體內避免重複建立同一個 email
	mu sync.Mutex
}

// NewService 創建使用者服務
func NewService(cfg *config.Config, st store.Store) *Service {
	return &Service{
		store:  st,
		settle: cfg.Store.SettleDelay,
		now:    time.Now,
	}
}

// NormalizeEmail email 不分大小寫
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create 建立帳號；email 已存在時回傳 ErrAlreadyExists
func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return nil, common.NewValidationError("email is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email %s: %w", email, common.ErrAlreadyExists)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	u := &User{
		ID:           common.GenerateUUID(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: in.PasswordHash,
		PasswordSalt: in.PasswordSalt,
		CreatedAt:    s.now().UnixMilli(),
	}
	if err := s.write(ctx, u.ID, u.fields()); err != nil {
		return nil, err
	}

	common.LogInfo("使用者已建立", zap.String("user_id", u.ID))
	return u, nil
}

// FindByEmail 依 email 查詢
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, common.NewValidationError("email is required")
	}
	return s.findOne(ctx, func(u *User) bool { return u.Email == email })
}

// FindByGoogleID 依 Google ID 查詢
func (s *Service) FindByGoogleID(ctx context.Context, googleID string) (*User, error) {
	googleID = strings.TrimSpace(googleID)
	if googleID == "" {
		return nil, common.NewValidationError("googleId is required")
	}
	return s.findOne(ctx, func(u *User) bool { return u.GoogleID == googleID })
}

// FindByID 依 ID 查詢
func (s *Service) FindByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, common.NewValidationError("userId is required")
	}
	return s.findOne(ctx, func(u *User) bool { return u.ID == id })
}

// CreateOrUpdateGoogle 先依 Google ID 找，再依 email 找並綁定，都找不到才建立
func (s *Service) CreateOrUpdateGoogle(ctx context.Context, in GoogleInput) (*User, error) {
	email := NormalizeEmail(in.Email)
	googleID := strings.TrimSpace(in.GoogleID)
	if googleID == "" {
		return nil, common.NewValidationError("googleId is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.FindByGoogleID(ctx, googleID)
	switch {
	case err == nil:
		mergeProfile(u, in)
		if err := s.write(ctx, u.ID, map[string]any{"name": u.Name, "photoUrl": u.PhotoURL}); err != nil {
			return nil, err
		}
		return u, nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}

	if email == "" {
		return nil, common.NewValidationError("email is required")
	}

	u, err = s.FindByEmail(ctx, email)
	switch {
	case err == nil:
		u.GoogleID = googleID
		mergeProfile(u, in)
		fields := map[string]any{"googleId": googleID, "name": u.Name, "photoUrl": u.PhotoURL}
		if err := s.write(ctx, u.ID, fields); err != nil {
			return nil, err
		}
		common.LogInfo("已綁定 Google 帳號", zap.String("user_id", u.ID))
		return u, nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}

	u = &User{
		ID:        common.GenerateUUID(),
		Email:     email,
		GoogleID:  googleID,
		Name:      strings.TrimSpace(in.Name),
		PhotoURL:  in.PhotoURL,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.write(ctx, u.ID, u.fields()); err != nil {
		return nil, err
	}
	common.LogInfo("使用者已建立", zap.String("user_id", u.ID), zap.String("provider", "google"))
	return u, nil
}

// Update 合併更新欄位並回傳最新資料
func (s *Service) Update(ctx context.Context, id string, updates map[string]any) (*User, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(updates))
	for k, v := range updates {
		if !updatableFields[k] {
			return nil, common.NewValidationError(fmt.Sprintf("field %q cannot be updated", k))
		}
		str, ok := v.(string)
		if !ok {
			return nil, common.NewValidationError(fmt.Sprintf("field %q must be a string", k))
		}
		if k == "email" {
			str = NormalizeEmail(str)
		}
		fields[k] = str
	}
	if len(fields) > 0 {
		if err := s.write(ctx, id, fields); err != nil {
			return nil, err
		}
	}

	return s.FindByID(ctx, id)
}

func (s *Service) write(ctx context.Context, id string, fields map[string]any) error {
	if err := s.store.Transact(ctx, store.Update(store.NamespaceUsers, id, fields)); err != nil {
		return fmt.Errorf("failed to write user: %w", err)
	}
	// 與食譜寫入相同，等待遠端儲存生效
	return common.Sleep(ctx, s.settle, nil)
}

func (s *Service) findOne(ctx context.Context, match func(*User) bool) (*User, error) {
	entities, err := s.store.Query(ctx, store.NamespaceUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	for _, e := range entities {
		u := fromEntity(e)
		if match(u) {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

func mergeProfile(u *User, in GoogleInput) {
	if name := strings.TrimSpace(in.Name); name != "" {
		u.Name = name
	}
	if in.PhotoURL != "" {
		u.PhotoURL = in.PhotoURL
	}
}

func (u *User) fields() map[string]any {
	return map[string]any{
		"id":           u.ID,
		"email":        u.Email,
		"name":         u.Name,
		"googleId":     u.GoogleID,
		"photoUrl":     u.PhotoURL,
		"passwordHash": u.PasswordHash,
		"passwordSalt": u.PasswordSalt,
		"createdAt":    u.CreatedAt,
	}
}

func fromEntity(e store.Entity) *User {
	str := func(key string) string {
		s, _ := e.Fields[key].(string)
		return s
	}
	u := &User{
		ID:           e.ID,
		Email:        str("email"),
		Name:         str("name"),
		GoogleID:     str("googleId"),
		PhotoURL:     str("photoUrl"),
		PasswordHash: str("passwordHash"),
		PasswordSalt: str("passwordSalt"),
	}
	if n, ok := e.Fields["createdAt"].(interface{ Int64() (int64, error) }); ok {
		u.CreatedAt, _ = n.Int64()
	}
	return u
}
