package collection

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"recipe-keeper/internal/core/session"
	"recipe-keeper/internal/core/store"
	"recipe-keeper/internal/pkg/common"
)

// State 訂閱狀態
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateUnsubscribed  State = "unsubscribed"
)

// Collection 推送給前端的一次結果
type Collection struct {
	State     State                 `json:"state"`
	IsLoading bool                  `json:"isLoading"`
	Recipes   map[string]RecipeView `json:"recipes"`
}

// Live 綁定一個階段的即時食譜集合。
// 每次即時結果或登入狀態變更都會重新投影；結果依 (版本, 使用者) 快取。
type Live struct {
	store    store.Store
	session  *session.Session
	fallback string

	mu       sync.Mutex
	state    State
	version  uint64
	entities []store.Entity
	memo     memo

	updates chan Collection
	sub     *store.Subscription
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

type memo struct {
	valid   bool
	version uint64
	userID  string
	views   map[string]RecipeView
}

// NewLive 創建即時集合；呼叫 Start 後才開始訂閱
func NewLive(st store.Store, sess *session.Session, fallbackImageURL string) *Live {
	return &Live{
		store:    st,
		session:  sess,
		fallback: fallbackImageURL,
		state:    StateUninitialized,
		updates:  make(chan Collection, 1),
		stop:     make(chan struct{}),
	}
}

// Start 開始訂閱遠端的食譜
func (l *Live) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateUninitialized {
		l.mu.Unlock()
		return nil
	}
	sub, err := l.store.Subscribe(ctx, store.NamespaceRecipes)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.sub = sub
	l.state = StateLoading
	l.mu.Unlock()

	var userChanged <-chan struct{}
	unwatch := func() {}
	if l.session != nil {
		userChanged, unwatch = l.session.Watch()
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(l.updates)
		defer unwatch()
		defer l.setState(StateUnsubscribed)

		for {
			select {
			case snap, ok := <-sub.Updates():
				if !ok {
					return
				}
				l.apply(snap)
			case <-userChanged:
				l.publish()
			case <-ctx.Done():
				sub.Close()
				return
			case <-l.stop:
				sub.Close()
				return
			}
		}
	}()
	return nil
}

func (l *Live) apply(snap store.Snapshot) {
	l.mu.Lock()
	if snap.IsLoading {
		if l.state == StateReady {
			l.mu.Unlock()
			return
		}
		l.state = StateLoading
	} else {
		l.entities = snap.Entities
		l.version++
		l.state = StateReady
	}
	l.mu.Unlock()

	common.LogDebug("食譜集合更新",
		zap.Int("entities", len(snap.Entities)),
		zap.Bool("loading", snap.IsLoading),
	)
	l.publish()
}

func (l *Live) publish() {
	c := l.Current()
	// 只保留最新一筆
	for {
		select {
		case l.updates <- c:
			return
		default:
		}
		select {
		case <-l.updates:
		default:
		}
	}
}

// Current 目前的結果
func (l *Live) Current() Collection {
	views := l.Recipes()
	state := l.State()
	return Collection{State: state, IsLoading: state != StateReady, Recipes: views}
}

// Recipes 目前使用者的食譜；回傳的 map 為唯讀
func (l *Live) Recipes() map[string]RecipeView {
	userID := l.session.UserID()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.memo.valid && l.memo.version == l.version && l.memo.userID == userID {
		return l.memo.views
	}
	views := Reconstruct(l.entities, userID, l.fallback)
	l.memo = memo{valid: true, version: l.version, userID: userID, views: views}
	return views
}

// Get 依 recipeId 取得食譜；剛生成還沒出現在即時結果的食譜從階段取得
func (l *Live) Get(recipeID string) (RecipeView, bool) {
	if v, ok := l.Recipes()[recipeID]; ok {
		return v, true
	}
	if current := l.session.CurrentRecipe(); current != nil && current.RecipeID == recipeID {
		return FromRecipe(current, l.fallback), true
	}
	return RecipeView{}, false
}

// State 訂閱狀態
func (l *Live) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Updates 每次變更推送最新結果，訂閱結束時關閉
func (l *Live) Updates() <-chan Collection {
	return l.updates
}

// Stop 結束訂閱
func (l *Live) Stop() {
	l.stopped.Do(func() { close(l.stop) })
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	// 從未開始訂閱時由這裡關閉通道
	if l.sub == nil && l.state != StateUnsubscribed {
		close(l.updates)
	}
	l.state = StateUnsubscribed
}

func (l *Live) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}
