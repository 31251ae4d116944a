// Package messaging は学生と採用担当の間の会話一覧、スレッド、既読管理、送信を扱う。
//
// Store は閲覧者1人分の状態を保持する。スレッドの取得は選択ごとの世代番号で識別し、
// 選択が変わった後に届いた古い応答は破棄する。既読化はスレッド表示後にバックグラウンドで行い、
// 失敗しても表示を妨げない。
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/security"
)

const (
	conversationsPath = "/messaging/conversations/"
	messagesPath      = "/messaging/messages/"
	unreadCountPath   = "/messaging/unread_count/"
)

// State はスレッド表示の状態。
type State string

const (
	StateUnselected    State = "unselected"
	StateLoadingThread State = "loading-thread"
	StateThreadLoaded  State = "thread-loaded"
	StateSending       State = "sending"
)

// API はメッセージ機能が使用する外部APIクライアントのインターフェース。
// apiclient.Clientが実装する。
type API interface {
	Get(ctx context.Context, path string, out any, opts ...apiclient.RequestOption) error
	Post(ctx context.Context, path string, body, out any, opts ...apiclient.RequestOption) error
}

// Store は閲覧者1人分の会話の状態を保持する。複数のゴルーチンから安全に使用できる。
type Store struct {
	api       API
	viewer    viewer
	sanitizer *security.Sanitizer
	logger    *slog.Logger
	metrics   metrics.MetricsCollector

	mu            sync.Mutex
	conversations []model.Conversation
	listErr       error
	selected      int64
	counterpart   int64
	thread        []model.Message
	threadLoaded  bool
	generation    uint64
	scrollToken   uint64
	draft         string
	sending       bool
	sendErr       string

	// background は実行中の既読化を追跡する。
	background sync.WaitGroup
}

// NewStore は役割に応じたStoreを生成する。学生と採用担当以外はエラーを返す。
func NewStore(api API, role model.Role, sanitizer *security.Sanitizer, logger *slog.Logger, m metrics.MetricsCollector) (*Store, error) {
	v, err := viewerFor(role)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if sanitizer == nil {
		sanitizer = security.NewSanitizer()
	}
	return &Store{
		api:           api,
		viewer:        v,
		sanitizer:     sanitizer,
		logger:        logger.With(slog.String("component", "messaging"), slog.String("role", string(role))),
		metrics:       m,
		conversations: []model.Conversation{},
		thread:        []model.Message{},
	}, nil
}

// Role は閲覧者の役割を返す。
func (s *Store) Role() model.Role {
	return s.viewer.role
}

// Mount は会話一覧を取得し、初期選択を決める。
// counterpartが0以外の場合は、その相手との会話があれば選択する。
// 採用担当の場合、相手との会話がまだなければ未選択のままとし、送信時にその相手との会話を作成する。
// それ以外で未選択なら先頭の会話を選択する。
func (s *Store) Mount(ctx context.Context, counterpart int64) Snapshot {
	s.mu.Lock()
	s.counterpart = counterpart
	s.mu.Unlock()

	convs := s.loadConversations(ctx)
	if id := s.initialSelection(convs); id != 0 {
		s.Select(ctx, id)
	}
	return s.Snapshot()
}

func (s *Store) initialSelection(convs []model.Conversation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counterpart != 0 {
		for _, c := range convs {
			if s.viewer.counterpart(c) == s.counterpart {
				if c.ID == s.selected {
					return 0
				}
				return c.ID
			}
		}
		if s.viewer.canStart {
			return 0
		}
	}
	if s.selected == 0 && len(convs) > 0 {
		return convs[0].ID
	}
	return 0
}

// Refresh は会話一覧を取得し直す。選択中の会話とスレッドは変更しない。
func (s *Store) Refresh(ctx context.Context) []model.Conversation {
	return s.loadConversations(ctx)
}

// loadConversations は会話一覧を取得して保持する。失敗した場合は空の一覧とする。
func (s *Store) loadConversations(ctx context.Context) []model.Conversation {
	var list conversationList
	err := s.api.Get(ctx, conversationsPath, &list)
	if err != nil {
		s.logger.Warn("会話一覧の取得に失敗しました", slog.String("error", err.Error()))
		list = conversationList{}
	}
	convs := []model.Conversation(list)
	if convs == nil {
		convs = []model.Conversation{}
	}
	for i := range convs {
		if convs[i].LastMessage != nil {
			convs[i].LastMessage.Content = s.sanitizer.Plain(convs[i].LastMessage.Content)
		}
	}

	s.mu.Lock()
	s.conversations = convs
	s.listErr = err
	out := make([]model.Conversation, len(convs))
	copy(out, convs)
	s.mu.Unlock()
	return out
}

// Select は会話を選択してスレッドを取得する。
// 取得に成功するとスクロールトークンを進め、バックグラウンドで既読化を行う。
// 取得中に別の会話が選択された場合、この応答は破棄する。
func (s *Store) Select(ctx context.Context, id int64) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.selected = id
	s.thread = []model.Message{}
	s.threadLoaded = false
	s.mu.Unlock()

	s.loadThread(ctx, id, gen, true)
}

// reloadActive は選択中の会話のスレッドを取得し直す。既読化は行わない。
func (s *Store) reloadActive(ctx context.Context) {
	s.mu.Lock()
	id := s.selected
	if id == 0 {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	s.loadThread(ctx, id, gen, false)
}

func (s *Store) loadThread(ctx context.Context, id int64, gen uint64, markRead bool) {
	var detail model.ConversationDetail
	err := s.api.Get(ctx, conversationPath(id), &detail)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.metrics.RecordStaleResponse()
		s.logger.Debug("選択が変わったため古いスレッドの応答を破棄しました", slog.Int64("conversation_id", id))
		return
	}
	if err != nil {
		s.thread = []model.Message{}
		s.threadLoaded = true
		s.mu.Unlock()
		s.logger.Warn("スレッドの取得に失敗しました",
			slog.Int64("conversation_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	msgs := detail.Messages
	if msgs == nil {
		msgs = []model.Message{}
	}
	s.sanitizer.Messages(msgs)
	s.thread = msgs
	s.threadLoaded = true
	s.scrollToken++
	s.mu.Unlock()

	if markRead {
		s.markRead(ctx, id)
	}
}

// markRead はバックグラウンドで会話を既読にする。
// 成功した場合は一覧上の未読数を0にする。失敗はログとメトリクスに記録するのみ。
func (s *Store) markRead(ctx context.Context, id int64) {
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		if err := s.api.Post(ctx, conversationPath(id)+"mark_read/", nil, nil); err != nil {
			s.metrics.RecordMarkReadFailure()
			s.logger.Warn("既読化に失敗しました",
				slog.Int64("conversation_id", id),
				slog.String("error", err.Error()),
			)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.conversations {
			if s.conversations[i].ID == id {
				s.conversations[i].UnreadCount = 0
			}
		}
	}()
}

// SetDraft は入力中の本文を設定する。
func (s *Store) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Target は現在の状態から送信先を決める。
// 会話を選択中ならその会話、未選択でも相手が指定されていて会話を作成できる場合はその相手。
// どちらもなければ送信先未選択のエラーを返す。
func (s *Store) Target() (Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetLocked()
}

func (s *Store) targetLocked() (Target, error) {
	if s.selected != 0 {
		for _, c := range s.conversations {
			if c.ID == s.selected {
				return ToConversation{ID: c.ID, StudentID: c.Student}, nil
			}
		}
	}
	if s.counterpart != 0 && s.viewer.canStart {
		return ToCounterpart{StudentID: s.counterpart}, nil
	}
	return nil, model.NewNoRecipientError()
}

// Send は入力中の本文を送信する。
// 本文が空白のみの場合は何もしない。失敗した場合は本文を残し、サーバーのメッセージを返す。
// 成功した場合は本文を消去し、会話一覧を取得し直してから、スレッドを取得し直す。
func (s *Store) Send(ctx context.Context) error {
	s.mu.Lock()
	content := s.draft
	if strings.TrimSpace(content) == "" || s.sending {
		s.mu.Unlock()
		return nil
	}
	target, err := s.targetLocked()
	if err != nil {
		s.sendErr = model.UserMessage(err)
		s.mu.Unlock()
		return err
	}
	s.sending = true
	s.sendErr = ""
	s.mu.Unlock()

	var sent model.Message
	err = s.api.Post(ctx, messagesPath, s.viewer.request(target, content), &sent)

	s.mu.Lock()
	s.sending = false
	if err != nil {
		s.sendErr = model.UserMessage(err)
		s.mu.Unlock()
		s.metrics.RecordMessageSent(false)
		s.logger.Warn("メッセージの送信に失敗しました", slog.String("error", err.Error()))
		return err
	}
	if s.draft == content {
		s.draft = ""
	}
	s.mu.Unlock()
	s.metrics.RecordMessageSent(true)

	convs := s.loadConversations(ctx)

	if t, ok := target.(ToCounterpart); ok {
		for _, c := range convs {
			if c.Student == t.StudentID {
				s.mu.Lock()
				unselected := s.selected == 0
				s.mu.Unlock()
				if unselected {
					s.Select(ctx, c.ID)
				}
				return nil
			}
		}
		s.logger.Warn("作成した会話が一覧に見つかりません", slog.Int64("student_id", t.StudentID))
		return nil
	}

	s.reloadActive(ctx)
	return nil
}

// UnreadTotal はサーバーに未読メッセージの総数を問い合わせる。
func (s *Store) UnreadTotal(ctx context.Context) (int, error) {
	var resp struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := s.api.Get(ctx, unreadCountPath, &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

// WaitIdle は実行中のバックグラウンド処理の完了を待つ。
func (s *Store) WaitIdle() {
	s.background.Wait()
}

// Item は会話一覧の1行の表示内容。
type Item struct {
	ID          int64      `json:"id"`
	Counterpart int64      `json:"counterpart_id"`
	Label       string     `json:"label"`
	Preview     string     `json:"preview"`
	Unread      int        `json:"unread_count"`
	Selected    bool       `json:"selected"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Snapshot は画面表示用の状態のコピー。
type Snapshot struct {
	Role          model.Role      `json:"role"`
	State         State           `json:"state"`
	Conversations []Item          `json:"conversations"`
	ListError     string          `json:"list_error,omitempty"`
	SelectedID    int64           `json:"selected_id,omitempty"`
	Counterpart   int64           `json:"counterpart_id,omitempty"`
	Title         string          `json:"title"`
	Messages      []model.Message `json:"messages"`
	Draft         string          `json:"draft"`
	CanSend       bool            `json:"can_send"`
	SendError     string          `json:"send_error,omitempty"`
	ScrollToken   uint64          `json:"scroll_token"`
	UnreadTotal   int             `json:"unread_total"`
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Role:          s.viewer.role,
		State:         s.stateLocked(),
		Conversations: make([]Item, 0, len(s.conversations)),
		SelectedID:    s.selected,
		Counterpart:   s.counterpart,
		Messages:      make([]model.Message, len(s.thread)),
		Draft:         s.draft,
		SendError:     s.sendErr,
		ScrollToken:   s.scrollToken,
	}
	copy(snap.Messages, s.thread)
	if s.listErr != nil {
		snap.ListError = model.UserMessage(s.listErr)
	}

	for _, c := range s.conversations {
		item := Item{
			ID:          c.ID,
			Counterpart: s.viewer.counterpart(c),
			Label:       s.viewer.label(c),
			Preview:     "No messages yet",
			Unread:      c.UnreadCount,
			Selected:    c.ID == s.selected,
			UpdatedAt:   c.UpdatedAt,
		}
		if c.LastMessage != nil && c.LastMessage.Content != "" {
			item.Preview = c.LastMessage.Content
		}
		if item.Selected {
			snap.Title = item.Label
		}
		snap.UnreadTotal += c.UnreadCount
		snap.Conversations = append(snap.Conversations, item)
	}
	if snap.Title == "" && s.selected == 0 && s.counterpart != 0 && s.viewer.canStart {
		snap.Title = "New Message"
	}

	_, err := s.targetLocked()
	snap.CanSend = err == nil && !s.sending
	return snap
}

func (s *Store) stateLocked() State {
	switch {
	case s.sending:
		return StateSending
	case s.selected == 0:
		return StateUnselected
	case !s.threadLoaded:
		return StateLoadingThread
	default:
		return StateThreadLoaded
	}
}

func conversationPath(id int64) string {
	return fmt.Sprintf("%s%d/", conversationsPath, id)
}
