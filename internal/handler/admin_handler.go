package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/jobboard/internal/admin"
	"github.com/hitoshi/jobboard/internal/model"
)

// AdminUsersPageInterface はユーザー管理画面。
type AdminUsersPageInterface interface {
	Load(ctx context.Context) error
	View(query string) admin.UsersView
	Approve(ctx context.Context, recruiterID int64) error
	Block(ctx context.Context, recruiterID int64) (bool, error)
	Delete(ctx context.Context, u *model.User) (bool, error)
	FindUser(id int64) (*model.User, bool)
}

// AdminJobsPageInterface は求人管理画面。
type AdminJobsPageInterface interface {
	Load(ctx context.Context) []model.Job
	View(query string) []model.Job
	Delete(ctx context.Context, jobID int64) (bool, error)
}

// AdminApplicationLister は全応募の一覧を取得する。
type AdminApplicationLister interface {
	ListApplications(ctx context.Context) ([]model.Application, error)
}

// AdminHandler は管理者画面のHTTPハンドラー。
type AdminHandler struct {
	users        AdminUsersPageInterface
	jobs         AdminJobsPageInterface
	applications AdminApplicationLister
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(users AdminUsersPageInterface, jobs AdminJobsPageInterface, applications AdminApplicationLister) *AdminHandler {
	return &AdminHandler{
		users:        users,
		jobs:         jobs,
		applications: applications,
	}
}

// Users は全ユーザー・採用担当・学生の3つの一覧を並行して取得して返す。
// GET /api/admin/users?q=
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Load(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.users.View(r.URL.Query().Get("q")))
}

// Approve は採用担当を承認し、3つの一覧を取得し直して返す。
// POST /api/admin/recruiters/{id}/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.users.Approve(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.users.View(""))
}

// Block は確認を得たうえで採用担当をブロックする。
// POST /api/admin/recruiters/{id}/block  (X-Confirm: yes)
func (h *AdminHandler) Block(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	done, err := h.users.Block(r.Context(), id)
	writeConfirmed(w, r, done, err, func() {
		writeJSON(w, http.StatusOK, h.users.View(""))
	})
}

// DeleteUser は確認を得たうえでユーザーを削除する。管理者とスタッフは確認前に拒否する。
// DELETE /api/admin/users/{id}  (X-Confirm: yes)
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, ok := h.users.FindUser(id)
	if !ok {
		// 一覧を未取得の状態で削除された場合に備えて取得し直す
		if err := h.users.Load(r.Context()); err != nil {
			writeServiceError(w, r, err)
			return
		}
		if user, ok = h.users.FindUser(id); !ok {
			writeServiceError(w, r, model.NewNotFoundError("指定されたユーザーが見つかりません。"))
			return
		}
	}

	done, err := h.users.Delete(r.Context(), user)
	writeConfirmed(w, r, done, err, func() {
		writeJSON(w, http.StatusOK, h.users.View(""))
	})
}

// Jobs は全求人の一覧を返す。
// GET /api/admin/jobs?q=
func (h *AdminHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	h.jobs.Load(r.Context())
	writeJSON(w, http.StatusOK, h.jobs.View(r.URL.Query().Get("q")))
}

// DeleteJob は確認を得たうえで求人を削除する。
// DELETE /api/admin/jobs/{id}  (X-Confirm: yes)
func (h *AdminHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	done, err := h.jobs.Delete(r.Context(), id)
	writeConfirmed(w, r, done, err, func() {
		writeJSON(w, http.StatusOK, h.jobs.View(""))
	})
}

// Applications は全応募の一覧を返す。
// GET /api/admin/applications
func (h *AdminHandler) Applications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.applications.ListApplications(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponses(apps))
}
