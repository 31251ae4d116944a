package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/messaging"
	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/security"
)

// --- モック定義 ---

// fakeMessagingAPI は会話一覧を固定で返すmessaging.APIの実装。
type fakeMessagingAPI struct {
	conversations []model.Conversation

	mu    sync.Mutex
	posts []string
}

func (f *fakeMessagingAPI) Get(ctx context.Context, path string, out any, opts ...apiclient.RequestOption) error {
	var v any = f.conversations
	if path != "/messaging/conversations/" {
		v = model.ConversationDetail{}
	}
	b, _ := json.Marshal(v)
	return json.Unmarshal(b, out)
}

func (f *fakeMessagingAPI) Post(ctx context.Context, path string, body, out any, opts ...apiclient.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, path)
	return nil
}

func (f *fakeMessagingAPI) postList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

// staticStores は固定のストアを返すMessageStoreProvider。
type staticStores struct {
	store *messaging.Store
}

func (s staticStores) Store() (*messaging.Store, bool) {
	return s.store, s.store != nil
}

func newTestStore(t *testing.T, api messaging.API, role model.Role) *messaging.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := messaging.NewStore(api, role, security.NewSanitizer(), logger, metrics.Nop{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

// --- テスト ---

func TestMessageHandler_NoStore_Returns403(t *testing.T) {
	h := NewMessageHandler(staticStores{})

	req := httptest.NewRequest(http.MethodPost, "/api/student/messages/mount", nil)
	req = withUser(req, testStudent)
	w := httptest.NewRecorder()
	h.Mount(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestMessageHandler_RoleMismatch_Returns403(t *testing.T) {
	store := newTestStore(t, &fakeMessagingAPI{}, model.RoleRecruiter)
	h := NewMessageHandler(staticStores{store: store})

	req := httptest.NewRequest(http.MethodGet, "/api/student/messages/state", nil)
	req = withUser(req, testStudent)
	w := httptest.NewRecorder()
	h.State(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestMessageHandler_Mount_SelectsFirstConversation(t *testing.T) {
	api := &fakeMessagingAPI{conversations: []model.Conversation{
		{ID: 10, Student: 1, Recruiter: 2},
		{ID: 11, Student: 1, Recruiter: 4},
	}}
	store := newTestStore(t, api, model.RoleStudent)
	h := NewMessageHandler(staticStores{store: store})

	req := httptest.NewRequest(http.MethodPost, "/api/student/messages/mount", nil)
	req = withUser(req, testStudent)
	w := httptest.NewRecorder()
	h.Mount(w, req)
	store.WaitIdle()

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var snap messaging.Snapshot
	decodeBody(t, w, &snap)
	if snap.SelectedID != 10 {
		t.Errorf("SelectedID = %d, want %d", snap.SelectedID, 10)
	}
	if len(snap.Conversations) != 2 {
		t.Errorf("len(Conversations) = %d, want 2", len(snap.Conversations))
	}
}

func TestMessageHandler_Mount_InvalidCounterpart_Returns400(t *testing.T) {
	store := newTestStore(t, &fakeMessagingAPI{}, model.RoleRecruiter)
	h := NewMessageHandler(staticStores{store: store})

	req := httptest.NewRequest(http.MethodPost, "/api/recruiter/messages/mount?counterpart=abc", nil)
	req = withUser(req, testRecruiter)
	w := httptest.NewRecorder()
	h.Mount(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestMessageHandler_Send_StudentWithoutConversation_Returns400AndKeepsDraft(t *testing.T) {
	api := &fakeMessagingAPI{}
	store := newTestStore(t, api, model.RoleStudent)
	h := NewMessageHandler(staticStores{store: store})

	req := httptest.NewRequest(http.MethodPost, "/api/student/messages/send", bytes.NewBufferString(`{"content":"hello"}`))
	req = withUser(req, testStudent)
	w := httptest.NewRecorder()
	h.Send(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	store.WaitIdle()
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.posts) != 0 {
		t.Errorf("posts = %d, want 0", len(api.posts))
	}
	if got := store.Snapshot().Draft; got != "hello" {
		t.Errorf("draft = %q, want %q", got, "hello")
	}
}

func TestMessageHandler_Select_ZeroID_Returns400(t *testing.T) {
	store := newTestStore(t, &fakeMessagingAPI{}, model.RoleStudent)
	h := NewMessageHandler(staticStores{store: store})

	req := httptest.NewRequest(http.MethodPost, "/api/student/messages/select", bytes.NewBufferString(`{}`))
	req = withUser(req, testStudent)
	w := httptest.NewRecorder()
	h.Select(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
