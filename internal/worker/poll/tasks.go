package poll

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/jobboard/internal/live"
	"github.com/hitoshi/jobboard/internal/messaging"
	"github.com/hitoshi/jobboard/internal/model"
)

// Publisher はブラウザへのイベント配信のインターフェース。live.Hubが実装する。
type Publisher interface {
	Publish(eventType string, data any)
}

// MessageStores は現在のユーザーのメッセージStoreを返すインターフェース。
type MessageStores interface {
	Store() (*messaging.Store, bool)
}

// ConversationTask は会話一覧と未読数を取得し直し、ブラウザへ配信する。
// 未読数はサーバーの値が変わったときのみ配信する。
// ユーザーの切り替えでStoreが変わった場合は、最初の未読数を必ず配信する。
type ConversationTask struct {
	stores    MessageStores
	publisher Publisher

	mu         sync.Mutex
	lastStore  *messaging.Store
	lastUnread int
}

// NewConversationTask はConversationTaskを生成する。
func NewConversationTask(stores MessageStores, publisher Publisher) *ConversationTask {
	return &ConversationTask{stores: stores, publisher: publisher, lastUnread: -1}
}

// Name はタスク名を返す。
func (t *ConversationTask) Name() string { return "conversations" }

// Run は会話一覧と未読数を1回取得する。メッセージ機能を使うユーザーがいなければ何もしない。
func (t *ConversationTask) Run(ctx context.Context) error {
	store, ok := t.stores.Store()
	if !ok {
		return nil
	}

	unread, err := store.UnreadTotal(ctx)
	if err != nil {
		return err
	}
	store.Refresh(ctx)
	t.publisher.Publish(live.EventConversations, store.Snapshot().Conversations)

	t.mu.Lock()
	if store != t.lastStore {
		t.lastStore = store
		t.lastUnread = -1
	}
	changed := unread != t.lastUnread
	t.lastUnread = unread
	t.mu.Unlock()
	if changed {
		t.publisher.Publish(live.EventUnread, map[string]int{"unread_total": unread})
	}
	return nil
}

// SessionUser は現在のユーザーの参照と再取得のインターフェース。auth.Serviceが実装する。
// RefreshCurrentUserは一時的な失敗ではログアウトしない。
type SessionUser interface {
	CurrentUser() *model.User
	RefreshCurrentUser(ctx context.Context) (*model.User, error)
}

// RecruiterProfiles は採用担当プロフィールの取得のインターフェース。profile.Serviceが実装する。
type RecruiterProfiles interface {
	Recruiter(ctx context.Context) (*model.RecruiterProfile, error)
}

// ApprovalTask は承認待ちの採用担当のプロフィールを確認し、承認状態が変わったら
// 現在のユーザーを再取得してブラウザへ配信する。
type ApprovalTask struct {
	users     SessionUser
	profiles  RecruiterProfiles
	publisher Publisher
	logger    *slog.Logger
}

// NewApprovalTask はApprovalTaskを生成する。
func NewApprovalTask(users SessionUser, profiles RecruiterProfiles, publisher Publisher, logger *slog.Logger) *ApprovalTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalTask{users: users, profiles: profiles, publisher: publisher, logger: logger}
}

// Name はタスク名を返す。
func (t *ApprovalTask) Name() string { return "recruiter_approval" }

// Run は承認状態を1回確認する。採用担当以外、または承認済みの場合は何もしない。
// プロフィールの取得失敗ではログアウトしない。
// ユーザーの再取得が一時的な失敗で終わった場合はセッションを保持し、配信せずに次回の実行で再試行する。
func (t *ApprovalTask) Run(ctx context.Context) error {
	user := t.users.CurrentUser()
	if !user.IsRecruiter() || user.IsApproved() {
		return nil
	}

	p, err := t.profiles.Recruiter(ctx)
	if err != nil {
		return err
	}
	if !p.IsApproved {
		return nil
	}

	updated, err := t.users.RefreshCurrentUser(ctx)
	if err != nil {
		return err
	}
	t.logger.Info("採用担当が承認されました", slog.Int64("user_id", updated.ID))
	t.publisher.Publish(live.EventApproval, map[string]bool{"is_approved": updated.IsApproved()})
	return nil
}
