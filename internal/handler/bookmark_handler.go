package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/jobboard/internal/model"
)

// BookmarkServiceInterface はブックマークの切り替えインターフェース。
type BookmarkServiceInterface interface {
	Toggle(ctx context.Context, jobID int64, bookmarked bool) (bool, error)
}

// BookmarksPageInterface はブックマーク一覧画面。
type BookmarksPageInterface interface {
	Load(ctx context.Context) []model.Bookmark
	Remove(ctx context.Context, bookmarkID int64) error
	View(query string) []model.Bookmark
}

// BookmarkHandler は学生のブックマークのHTTPハンドラー。
type BookmarkHandler struct {
	service BookmarkServiceInterface
	page    BookmarksPageInterface
}

// NewBookmarkHandler はBookmarkHandlerを生成する。
func NewBookmarkHandler(service BookmarkServiceInterface, page BookmarksPageInterface) *BookmarkHandler {
	return &BookmarkHandler{service: service, page: page}
}

// toggleBookmarkRequest は切り替え前の状態。
type toggleBookmarkRequest struct {
	Bookmarked bool `json:"bookmarked"`
}

// Toggle は求人のブックマーク状態を切り替える。
// POST /api/student/jobs/{id}/bookmark
func (h *BookmarkHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req toggleBookmarkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	bookmarked, err := h.service.Toggle(r.Context(), jobID, req.Bookmarked)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bookmarked": bookmarked})
}

// List はブックマーク一覧を取得し、?q= で絞り込んで返す。
// GET /api/student/bookmarks
func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	h.page.Load(r.Context())
	writeJSON(w, http.StatusOK, h.page.View(r.URL.Query().Get("q")))
}

// Remove はブックマークを削除する。失敗した場合は一覧を元に戻す。
// DELETE /api/student/bookmarks/{id}
func (h *BookmarkHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.page.Remove(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.page.View(""))
}
