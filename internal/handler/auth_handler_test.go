package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/jobboard/internal/auth"
	"github.com/hitoshi/jobboard/internal/guard"
	"github.com/hitoshi/jobboard/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	loginFn   func(ctx context.Context, username, password string) (*model.AuthResult, error)
	signupFn  func(ctx context.Context, req model.SignupRequest, role model.Role) (*model.AuthResult, error)
	fetchFn   func(ctx context.Context) (*model.User, error)
	user      *model.User
	logoutHit int
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.AuthResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, nil
}

func (m *mockAuthService) Signup(ctx context.Context, req model.SignupRequest, role model.Role) (*model.AuthResult, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, req, role)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context) {
	m.logoutHit++
	m.user = nil
}

func (m *mockAuthService) FetchCurrentUser(ctx context.Context) (*model.User, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}
	return m.user, nil
}

func (m *mockAuthService) CurrentUser() *model.User {
	return m.user
}

func (m *mockAuthService) Flags() auth.Flags {
	return auth.Flags{
		IsAuthenticated: m.user != nil,
		IsStudent:       m.user.IsStudent(),
		IsRecruiter:     m.user.IsRecruiter(),
		IsAdmin:         m.user.IsAdmin(),
	}
}

// --- POST /api/auth/login ---

func TestAuthHandler_Login_Success_ReturnsUserAndRedirect(t *testing.T) {
	svc := &mockAuthService{}
	svc.loginFn = func(ctx context.Context, username, password string) (*model.AuthResult, error) {
		if username != "alice" || password != "pw" {
			t.Errorf("credentials = %q/%q, want alice/pw", username, password)
		}
		svc.user = testStudent
		return &model.AuthResult{User: testStudent, Access: "access-token", Refresh: "refresh-token"}, nil
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"username":"alice","password":"pw"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("access-token")) {
		t.Error("response must not contain the access token")
	}
	var resp sessionResponse
	decodeBody(t, w, &resp)
	if resp.Redirect != "/student/dashboard" {
		t.Errorf("redirect = %q, want %q", resp.Redirect, "/student/dashboard")
	}
	if !resp.Flags.IsAuthenticated || !resp.Flags.IsStudent {
		t.Errorf("flags = %+v, want authenticated student", resp.Flags)
	}
}

func TestAuthHandler_Login_EmptyCredentials_Returns400(t *testing.T) {
	called := false
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.AuthResult, error) {
			called = true
			return nil, nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"username":"alice"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Error("Login should not be called with empty password")
	}
}

func TestAuthHandler_Login_InvalidCredentials_Returns401(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.AuthResult, error) {
			return nil, model.NewUnauthorizedError("ユーザー名またはパスワードが正しくありません。")
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"username":"alice","password":"bad"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	body := parseErrorResponse(t, w)
	if body.Category != model.CategoryAuth {
		t.Errorf("category = %q, want %q", body.Category, model.CategoryAuth)
	}
}

func TestAuthHandler_Login_MalformedJSON_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"username":`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- POST /api/auth/signup/{role} ---

func TestAuthHandler_Signup_Recruiter_Returns201(t *testing.T) {
	svc := &mockAuthService{}
	svc.signupFn = func(ctx context.Context, req model.SignupRequest, role model.Role) (*model.AuthResult, error) {
		if role != model.RoleRecruiter {
			t.Errorf("role = %q, want %q", role, model.RoleRecruiter)
		}
		if req.CompanyName != "Acme" {
			t.Errorf("CompanyName = %q, want %q", req.CompanyName, "Acme")
		}
		svc.user = testRecruiter
		return &model.AuthResult{User: testRecruiter}, nil
	}
	h := NewAuthHandler(svc)

	body := `{"username":"bob","email":"bob@example.com","password":"pw","company_name":"Acme"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup/recruiter", bytes.NewBufferString(body))
	req = withChiURLParam(req, "role", "recruiter")
	w := httptest.NewRecorder()
	h.Signup(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp sessionResponse
	decodeBody(t, w, &resp)
	if resp.Redirect != "/recruiter/dashboard" {
		t.Errorf("redirect = %q, want %q", resp.Redirect, "/recruiter/dashboard")
	}
}

func TestAuthHandler_Signup_AdminRole_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup/admin", bytes.NewBufferString(`{}`))
	req = withChiURLParam(req, "role", "admin")
	w := httptest.NewRecorder()
	h.Signup(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAuthHandler_Signup_ValidationFields_AreReturned(t *testing.T) {
	svc := &mockAuthService{
		signupFn: func(ctx context.Context, req model.SignupRequest, role model.Role) (*model.AuthResult, error) {
			return nil, model.NewValidationError("入力内容に誤りがあります。", map[string][]string{
				"username": {"A user with that username already exists."},
			})
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup/student", bytes.NewBufferString(`{"username":"alice"}`))
	req = withChiURLParam(req, "role", "student")
	w := httptest.NewRecorder()
	h.Signup(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	body := parseErrorResponse(t, w)
	if len(body.Fields["username"]) != 1 {
		t.Errorf("fields = %v, want username error", body.Fields)
	}
}

// --- POST /api/auth/logout ---

func TestAuthHandler_Logout_ClearsSessionAndRedirectsToLogin(t *testing.T) {
	svc := &mockAuthService{user: testStudent}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if svc.logoutHit != 1 {
		t.Errorf("Logout called %d times, want 1", svc.logoutHit)
	}
	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["redirect"] != guard.PathLogin {
		t.Errorf("redirect = %q, want %q", resp["redirect"], guard.PathLogin)
	}
}

// --- GET /api/auth/me ---

func TestAuthHandler_Me_Anonymous_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Me_RefreshFailure_ReturnsError(t *testing.T) {
	svc := &mockAuthService{user: testAdmin}
	svc.fetchFn = func(ctx context.Context) (*model.User, error) {
		svc.user = nil
		return nil, model.NewUnauthorizedError("")
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me?refresh=1", nil)
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Me_ReturnsFlags(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{user: testAdmin})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp sessionResponse
	decodeBody(t, w, &resp)
	if !resp.Flags.IsAdmin {
		t.Error("IsAdmin should be true")
	}
	if resp.User == nil || resp.User.ID != testAdmin.ID {
		t.Errorf("user = %+v, want id %d", resp.User, testAdmin.ID)
	}
}

// --- GET /api/route ---

func TestAuthHandler_Route(t *testing.T) {
	tests := []struct {
		name         string
		user         *model.User
		path         string
		wantAllow    bool
		wantRedirect string
	}{
		{"anonymous to student page", nil, "/student/dashboard", false, guard.PathLogin},
		{"student to own page", testStudent, "/student/applications", true, ""},
		{"student to admin page", testStudent, "/admin/users", false, "/student/dashboard"},
		{"recruiter to login page", testRecruiter, "/login", false, "/recruiter/dashboard"},
		{"anonymous to public job list", nil, "/jobs", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{user: tt.user})

			req := httptest.NewRequest(http.MethodGet, "/api/route?path="+tt.path, nil)
			w := httptest.NewRecorder()
			h.Route(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			var got guard.Decision
			decodeBody(t, w, &got)
			if got.Allow != tt.wantAllow {
				t.Errorf("Allow = %v, want %v", got.Allow, tt.wantAllow)
			}
			if got.Redirect != tt.wantRedirect {
				t.Errorf("Redirect = %q, want %q", got.Redirect, tt.wantRedirect)
			}
		})
	}
}
