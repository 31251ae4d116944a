package messaging

import (
	"log/slog"
	"sync"

	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/security"
)

// Manager は現在のユーザーのStoreを保持する。
// ユーザーまたは役割が変わると作り直し、ログアウトすると破棄する。
type Manager struct {
	api       API
	sanitizer *security.Sanitizer
	logger    *slog.Logger
	metrics   metrics.MetricsCollector

	mu     sync.Mutex
	store  *Store
	userID int64
}

// NewManager はManagerを生成する。
func NewManager(api API, sanitizer *security.Sanitizer, logger *slog.Logger, m metrics.MetricsCollector) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{api: api, sanitizer: sanitizer, logger: logger, metrics: m}
}

// SetUser は現在のユーザーの変化を反映する。auth.Service.OnChangeに登録して使う。
// メッセージ機能を使わない役割（管理者など）の場合はStoreを持たない。
func (m *Manager) SetUser(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u == nil {
		if m.store != nil {
			m.logger.Debug("ログアウトのためメッセージの状態を破棄しました")
		}
		m.store, m.userID = nil, 0
		return
	}
	if m.store != nil && m.userID == u.ID && m.store.Role() == u.Role {
		return
	}

	store, err := NewStore(m.api, u.Role, m.sanitizer, m.logger, m.metrics)
	if err != nil {
		m.store, m.userID = nil, 0
		return
	}
	m.store, m.userID = store, u.ID
}

// Store は現在のユーザーのStoreを返す。存在しない場合はfalse。
func (m *Manager) Store() (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store, m.store != nil
}
