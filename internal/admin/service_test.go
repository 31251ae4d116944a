package admin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/listing"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/security"
)

// recorder はテストサーバーへのリクエストを記録する。
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) count(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

const usersJSON = `[
	{"id":1,"username":"root","role":"admin","is_staff":true},
	{"id":2,"username":"acme","email":"hr@acme.test","role":"recruiter","recruiter_profile":{"id":7,"is_approved":false,"company_name":"Acme"}},
	{"id":3,"username":"ann","email":"ann@uni.test","role":"student"}
]`

func newTestService(t *testing.T, rec *recorder, h http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := r.Method + " " + r.URL.Path
		if q := r.URL.RawQuery; q != "" {
			call += "?" + q
		}
		rec.add(call)
		if h != nil {
			h(w, r)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/admin/users/":
			w.Write([]byte(usersJSON))
		case r.Method == http.MethodGet && r.URL.Path == "/admin/jobs/":
			w.Write([]byte(`[{"id":10,"title":"Go intern"}]`))
		case r.Method == http.MethodPut:
			w.Write([]byte(`{"id":7,"is_approved":true}`))
		default:
			w.Write([]byte(`{"message":"ok"}`))
		}
	}))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := apiclient.New(apiclient.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, nil, logger, nil)
	return NewService(api, security.NewSanitizer(), logger)
}

func confirmAll(answer bool) listing.Confirmer {
	return listing.ConfirmerFunc(func(ctx context.Context, p listing.Prompt) (bool, error) {
		return answer, nil
	})
}

func TestListUsers_RoleQuery(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(t, rec, nil)

	if _, err := svc.ListUsers(context.Background(), model.RoleRecruiter); err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if rec.count("GET /admin/users/?role=recruiter") != 1 {
		t.Errorf("calls = %v", rec.calls)
	}
}

func TestCanDeleteUser(t *testing.T) {
	tests := []struct {
		name string
		user *model.User
		want bool
	}{
		{"nil", nil, false},
		{"admin role", &model.User{Role: model.RoleAdmin}, false},
		{"staff student", &model.User{Role: model.RoleStudent, IsStaff: true}, false},
		{"student", &model.User{Role: model.RoleStudent}, true},
		{"recruiter", &model.User{Role: model.RoleRecruiter}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanDeleteUser(tt.user); got != tt.want {
				t.Errorf("CanDeleteUser() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeleteUser_AdminRefusedWithoutRequest(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(t, rec, nil)

	err := svc.DeleteUser(context.Background(), &model.User{ID: 1, Role: model.RoleAdmin})
	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeAdminDeletion {
		t.Fatalf("DeleteUser() error = %v, want admin deletion error", err)
	}
	if rec.total() != 0 {
		t.Errorf("requests = %v, want none", rec.calls)
	}
}

func TestUsersPage_LoadFetchesThreeLists(t *testing.T) {
	rec := &recorder{}
	page := NewUsersPage(newTestService(t, rec, nil), confirmAll(true), nil)

	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, call := range []string{"GET /admin/users/", "GET /admin/users/?role=recruiter", "GET /admin/users/?role=student"} {
		if rec.count(call) != 1 {
			t.Errorf("%s called %d times, want 1", call, rec.count(call))
		}
	}
	if len(page.All.Items()) != 3 {
		t.Errorf("All = %d items, want 3", len(page.All.Items()))
	}
}

func TestUsersPage_ApproveRefetchesAllLists(t *testing.T) {
	rec := &recorder{}
	page := NewUsersPage(newTestService(t, rec, nil), confirmAll(true), nil)

	if err := page.Approve(context.Background(), 7); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if rec.count("PUT /admin/recruiters/7/approve/") != 1 {
		t.Errorf("calls = %v", rec.calls)
	}
	if rec.total() != 4 {
		t.Errorf("requests = %d, want 1 mutation + 3 refetches", rec.total())
	}
}

func TestUsersPage_BlockDeclined_NoRequest(t *testing.T) {
	rec := &recorder{}
	page := NewUsersPage(newTestService(t, rec, nil), confirmAll(false), nil)

	done, err := page.Block(context.Background(), 7)
	if err != nil || done {
		t.Fatalf("Block() = %v, %v, want false, nil", done, err)
	}
	if rec.total() != 0 {
		t.Errorf("requests = %v, want none", rec.calls)
	}
}

func TestUsersPage_DeleteStaff_RefusedBeforePrompt(t *testing.T) {
	rec := &recorder{}
	prompted := false
	confirmer := listing.ConfirmerFunc(func(ctx context.Context, p listing.Prompt) (bool, error) {
		prompted = true
		return true, nil
	})
	page := NewUsersPage(newTestService(t, rec, nil), confirmer, nil)

	_, err := page.Delete(context.Background(), &model.User{ID: 5, Role: model.RoleRecruiter, IsStaff: true})
	if err == nil {
		t.Fatal("expected error for staff user")
	}
	if prompted {
		t.Error("confirmation should not be requested for staff users")
	}
	if rec.total() != 0 {
		t.Errorf("requests = %v, want none", rec.calls)
	}
}

func TestUsersPage_DeleteStudent_RefetchesAllLists(t *testing.T) {
	rec := &recorder{}
	page := NewUsersPage(newTestService(t, rec, nil), confirmAll(true), nil)

	done, err := page.Delete(context.Background(), &model.User{ID: 3, Username: "ann", Role: model.RoleStudent})
	if err != nil || !done {
		t.Fatalf("Delete() = %v, %v", done, err)
	}
	if rec.count("DELETE /admin/users/3/delete/") != 1 {
		t.Errorf("calls = %v", rec.calls)
	}
	if rec.count("GET /admin/users/?role=student") != 1 {
		t.Errorf("students list not refetched: %v", rec.calls)
	}
}

func TestUsersPage_FailedMutation_NoRefetch(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(t, rec, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Recruiter not found"}`))
	})
	page := NewUsersPage(svc, confirmAll(true), nil)

	err := page.Approve(context.Background(), 99)
	if !model.IsNotFound(err) {
		t.Fatalf("Approve() error = %v, want not found", err)
	}
	if apiErr, _ := model.AsAPIError(err); apiErr.Message != "Recruiter not found" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if rec.total() != 1 {
		t.Errorf("requests = %v, want only the mutation", rec.calls)
	}
}

func TestJobsPage_DeletePromptNamesJob(t *testing.T) {
	rec := &recorder{}
	var got listing.Prompt
	confirmer := listing.ConfirmerFunc(func(ctx context.Context, p listing.Prompt) (bool, error) {
		got = p
		return true, nil
	})
	page := NewJobsPage(newTestService(t, rec, nil), confirmer, nil)
	page.Load(context.Background())

	done, err := page.Delete(context.Background(), 10)
	if err != nil || !done {
		t.Fatalf("Delete() = %v, %v", done, err)
	}
	if got.Severity != listing.SeverityError {
		t.Errorf("Severity = %q, want %q", got.Severity, listing.SeverityError)
	}
	if rec.count("DELETE /admin/jobs/10/delete/") != 1 || rec.count("GET /admin/jobs/") != 2 {
		t.Errorf("calls = %v", rec.calls)
	}
}

func TestUserFields_FilterByCompany(t *testing.T) {
	users := []model.User{
		{Username: "acme", RecruiterProfile: &model.RecruiterSummary{CompanyName: "Acme Corp"}},
		{Username: "ann", Email: "ann@uni.test"},
	}
	got := listing.FilterItems(users, "CORP", UserFields)
	if len(got) != 1 || got[0].Username != "acme" {
		t.Errorf("FilterItems() = %+v", got)
	}
}

func TestUsersPage_ViewMarksDeletableRows(t *testing.T) {
	rec := &recorder{}
	page := NewUsersPage(newTestService(t, rec, nil), confirmAll(true), nil)
	if err := page.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	v := page.View("")
	want := map[string]bool{"root": false, "acme": true, "ann": true}
	if len(v.All) != len(want) {
		t.Fatalf("All = %d rows, want %d", len(v.All), len(want))
	}
	for _, row := range v.All {
		if row.CanDelete != want[row.Username] {
			t.Errorf("%s CanDelete = %v, want %v", row.Username, row.CanDelete, want[row.Username])
		}
	}

	// 絞り込み後の行にも削除可否が付く
	v = page.View("root")
	if len(v.All) != 1 || v.All[0].CanDelete {
		t.Errorf("View(root).All = %+v, want one non-deletable row", v.All)
	}
}
