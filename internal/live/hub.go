// Package live はブラウザへ会話や承認状態の更新をWebSocketでプッシュする。
package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// イベント種別
const (
	EventConversations = "conversations"
	EventUnread        = "unread"
	EventApproval      = "approval"
	EventSession       = "session"
)

// Event はクライアントへ送るメッセージ。
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// sendBuffer はクライアントごとの送信待ちイベント数の上限。
const sendBuffer = 16

// Hub は接続中のクライアントを管理し、イベントを配信する。
type Hub struct {
	logger *slog.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan Event
	done       chan struct{}

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub はHubを生成する。配信を始めるにはRunを呼ぶ。
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, sendBuffer),
		done:       make(chan struct{}),
		clients:    make(map[string]*client),
	}
}

// Run はctxがキャンセルされるまでクライアントの登録と配信を行う。
// 終了時はすべてのクライアントの送信チャネルを閉じる。
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("WebSocketクライアントを登録しました", slog.String("client_id", c.id), slog.Int("total", n))

		case c := <-h.unregister:
			h.remove(c)

		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

// Publish はイベントを全クライアントに配信する。配信待ちが溢れている場合は破棄する。
func (h *Hub) Publish(eventType string, data any) {
	ev := Event{Type: eventType, Data: data, At: time.Now()}
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("配信待ちが上限に達したためイベントを破棄しました", slog.String("type", eventType))
	}
}

// ClientCount は接続中のクライアント数を返す。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(ev Event) {
	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients {
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// 受信が追いつかないクライアントは切断する
	for _, c := range slow {
		h.logger.Warn("送信チャネルが満杯のためクライアントを切断します", slog.String("client_id", c.id))
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		close(c.send)
		delete(h.clients, c.id)
		h.logger.Debug("WebSocketクライアントの登録を解除しました", slog.String("client_id", c.id), slog.Int("total", len(h.clients)))
	}
}

func newClientID() string {
	return uuid.NewString()
}
