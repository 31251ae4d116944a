package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Student(ctx context.Context) (*model.StudentProfile, error)
	UpdateStudent(ctx context.Context, in model.StudentProfileUpdate) (*model.StudentProfile, error)
	UpdateRecruiter(ctx context.Context, in model.RecruiterProfileUpdate) (*model.RecruiterProfile, error)
	RefreshRecruiter(ctx context.Context) (*profile.RecruiterView, error)
}

// DashboardServiceInterface はダッシュボードの取得インターフェース。
type DashboardServiceInterface interface {
	For(ctx context.Context, user *model.User) (any, error)
}

// ProfileHandler はプロフィールとダッシュボードのHTTPハンドラー。
type ProfileHandler struct {
	profiles   ProfileServiceInterface
	dashboards DashboardServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles ProfileServiceInterface, dashboards DashboardServiceInterface) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, dashboards: dashboards}
}

// Dashboard はユーザーの役割に応じたダッシュボードを返す。
// GET /api/{role}/dashboard
func (h *ProfileHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboards.For(r.Context(), currentUser(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Student は学生の自分のプロフィールを返す。
// GET /api/student/profile
func (h *ProfileHandler) Student(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Student(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateStudent は学生のプロフィールを更新する。
// PUT /api/student/profile
func (h *ProfileHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var in model.StudentProfileUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	p, err := h.profiles.UpdateStudent(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Recruiter は採用担当のプロフィールと求人掲載の可否を返す。
// 表示のたびに承認状態をサーバーで確認し直す。
// GET /api/recruiter/profile
func (h *ProfileHandler) Recruiter(w http.ResponseWriter, r *http.Request) {
	view, err := h.profiles.RefreshRecruiter(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateRecruiter は採用担当のプロフィールを更新する。
// PUT /api/recruiter/profile
func (h *ProfileHandler) UpdateRecruiter(w http.ResponseWriter, r *http.Request) {
	var in model.RecruiterProfileUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	p, err := h.profiles.UpdateRecruiter(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
