// Package handler はローカルBFFのHTTPハンドラーを提供する。
// ブラウザ画面に必要な表示データを返し、トークンはプロセス内に留める。
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobboard/internal/auth"
	"github.com/hitoshi/jobboard/internal/guard"
	"github.com/hitoshi/jobboard/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (*model.AuthResult, error)
	Signup(ctx context.Context, req model.SignupRequest, role model.Role) (*model.AuthResult, error)
	Logout(ctx context.Context)
	FetchCurrentUser(ctx context.Context) (*model.User, error)
	CurrentUser() *model.User
	Flags() auth.Flags
}

// AuthHandler はログイン・サインアップ・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionResponse はログイン状態のレスポンス。トークンは含めない。
type sessionResponse struct {
	User     *model.User `json:"user"`
	Flags    auth.Flags  `json:"flags"`
	Redirect string      `json:"redirect,omitempty"`
}

// Login はユーザー名とパスワードでログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeServiceError(w, r, model.NewValidationError("ユーザー名とパスワードを入力してください。", nil))
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		User:     result.User,
		Flags:    h.service.Flags(),
		Redirect: result.User.DashboardPath(),
	})
}

// Signup は役割に応じたサインアップを行い、そのままログイン状態にする。
// POST /api/auth/signup/{role}
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	role := model.Role(chi.URLParam(r, "role"))
	if role != model.RoleStudent && role != model.RoleRecruiter {
		writeServiceError(w, r, model.NewValidationError("登録できる役割は student か recruiter です。", nil))
		return
	}

	var req model.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.service.Signup(r.Context(), req, role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		User:     result.User,
		Flags:    h.service.Flags(),
		Redirect: result.User.DashboardPath(),
	})
}

// Logout はセッションを破棄する。サーバーへの通知が失敗してもローカルの状態は消える。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"redirect": guard.PathLogin})
}

// Me は現在のログインユーザーと役割フラグを返す。
// ?refresh=1 の場合はサーバーで再検証する。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "1" && h.service.CurrentUser() != nil {
		if _, err := h.service.FetchCurrentUser(r.Context()); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	user := h.service.CurrentUser()
	if user == nil {
		writeServiceError(w, r, model.NewUnauthorizedError(""))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: user, Flags: h.service.Flags()})
}

// Route はブラウザの遷移先パスを判定する。
// GET /api/route?path=/student/dashboard
func (h *AuthHandler) Route(w http.ResponseWriter, r *http.Request) {
	decision := guard.Resolve(h.service.CurrentUser(), r.URL.Query().Get("path"))
	writeJSON(w, http.StatusOK, decision)
}
