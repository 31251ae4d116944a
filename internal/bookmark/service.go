// Package bookmark は学生の求人ブックマークを管理する。
package bookmark

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/model"
)

// Service はブックマークに関する操作を提供する。
type Service struct {
	api    *apiclient.Client
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(api *apiclient.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, logger: logger}
}

// List はブックマークの一覧を取得する。
func (s *Service) List(ctx context.Context) ([]model.Bookmark, error) {
	return apiclient.GetList[model.Bookmark](ctx, s.api, "/bookmarks/")
}

// Add は求人をブックマークする。
func (s *Service) Add(ctx context.Context, jobID int64) (*model.Bookmark, error) {
	var b model.Bookmark
	if err := s.api.Post(ctx, "/bookmarks/", map[string]int64{"job_id": jobID}, &b); err != nil {
		return nil, err
	}
	s.logger.Info("求人をブックマークしました", slog.Int64("job_id", jobID))
	return &b, nil
}

// Remove はブックマークを削除する。
func (s *Service) Remove(ctx context.Context, bookmarkID int64) error {
	if err := s.api.Delete(ctx, fmt.Sprintf("/bookmarks/%d/", bookmarkID)); err != nil {
		return err
	}
	s.logger.Info("ブックマークを削除しました", slog.Int64("bookmark_id", bookmarkID))
	return nil
}

// Toggle は求人のブックマーク状態を切り替え、切り替え後の状態を返す。
// 解除する場合は一覧から対象のブックマークを探して削除する。見つからなければ何もしない。
func (s *Service) Toggle(ctx context.Context, jobID int64, bookmarked bool) (bool, error) {
	if !bookmarked {
		if _, err := s.Add(ctx, jobID); err != nil {
			return false, err
		}
		return true, nil
	}

	bookmarks, err := s.List(ctx)
	if err != nil {
		return true, err
	}
	for _, b := range bookmarks {
		if b.Job != nil && b.Job.ID == jobID {
			if err := s.Remove(ctx, b.ID); err != nil {
				return true, err
			}
			break
		}
	}
	return false, nil
}
