package handler

import (
	"net/http"
	"strconv"

	"github.com/hitoshi/jobboard/internal/messaging"
	"github.com/hitoshi/jobboard/internal/model"
)

// MessageStoreProvider は現在のユーザーのメッセージストアを返す。
// messaging.Managerが実装する。
type MessageStoreProvider interface {
	Store() (*messaging.Store, bool)
}

// MessageHandler はメッセージ画面のHTTPハンドラー。
// 応答はすべてストアの表示用スナップショット。
type MessageHandler struct {
	stores MessageStoreProvider
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(stores MessageStoreProvider) *MessageHandler {
	return &MessageHandler{stores: stores}
}

type selectRequest struct {
	ConversationID int64 `json:"conversation_id"`
}

type draftRequest struct {
	Content *string `json:"content"`
}

// store はリクエストのユーザーに対応するストアを返す。
func (h *MessageHandler) store(r *http.Request) (*messaging.Store, error) {
	s, ok := h.stores.Store()
	user := currentUser(r)
	if !ok || user == nil || s.Role() != user.Role {
		return nil, model.NewPermissionError("メッセージ機能を利用できません。")
	}
	return s, nil
}

// Mount は会話一覧を取得して初期選択を行う。
// 選択した会話は既読化されるため、状態変更リクエストとしてCSRF検証を通す。
// ?counterpart= に学生IDを指定すると、その学生との会話を開く。
// POST /api/{role}/messages/mount
func (h *MessageHandler) Mount(w http.ResponseWriter, r *http.Request) {
	s, err := h.store(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var counterpart int64
	if v := r.URL.Query().Get("counterpart"); v != "" {
		counterpart, err = strconv.ParseInt(v, 10, 64)
		if err != nil || counterpart < 0 {
			writeServiceError(w, r, model.NewValidationError("counterpartの形式が正しくありません。", nil))
			return
		}
	}
	writeJSON(w, http.StatusOK, s.Mount(r.Context(), counterpart))
}

// State は現在の状態を返す。上流APIは呼ばない。
// GET /api/{role}/messages
// GET /api/{role}/messages/state
func (h *MessageHandler) State(w http.ResponseWriter, r *http.Request) {
	s, err := h.store(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Refresh は会話一覧を取得し直す。
// POST /api/{role}/messages/refresh
func (h *MessageHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, err := h.store(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.Refresh(r.Context())
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Select は会話を選択してスレッドを取得する。
// POST /api/{role}/messages/select
func (h *MessageHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, err := h.store(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.ConversationID <= 0 {
		writeServiceError(w, r, model.NewValidationError("会話を選択してください。", nil))
		return
	}

	s.Select(r.Context(), req.ConversationID)
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Draft は入力中の本文を更新する。
// PUT /api/{role}/messages/draft
func (h *MessageHandler) Draft(w http.ResponseWriter, r *http.Request) {
	s, err := h.store(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req draftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Content != nil {
		s.SetDraft(*req.Content)
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Send は本文を送信する。ボディにcontentがあれば先に入力中の本文を置き換える。
// 失敗した場合は本文を残したままエラーを返す。
// POST /api/{role}/messages/send
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	s, err := h.store(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req draftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Content != nil {
		s.SetDraft(*req.Content)
	}

	if err := s.Send(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}
