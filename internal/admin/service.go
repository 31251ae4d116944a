// Package admin は管理者向けのユーザー、求人、応募の管理を提供する。
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/security"
)

// Service は管理者APIの呼び出しを提供する。
type Service struct {
	api       *apiclient.Client
	sanitizer *security.Sanitizer
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(api *apiclient.Client, sanitizer *security.Sanitizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, sanitizer: sanitizer, logger: logger}
}

// ListUsers はユーザーの一覧を取得する。roleが空の場合は全ユーザーを返す。
func (s *Service) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	var opts []apiclient.RequestOption
	if role != "" {
		opts = append(opts, apiclient.WithQuery(url.Values{"role": {string(role)}}))
	}
	return apiclient.GetList[model.User](ctx, s.api, "/admin/users/", opts...)
}

// ApproveRecruiter は採用担当を承認する。idは採用担当プロフィールのID。
func (s *Service) ApproveRecruiter(ctx context.Context, recruiterID int64) (*model.RecruiterProfile, error) {
	var p model.RecruiterProfile
	if err := s.api.Put(ctx, fmt.Sprintf("/admin/recruiters/%d/approve/", recruiterID), nil, &p); err != nil {
		return nil, err
	}
	s.logger.Info("採用担当を承認しました", slog.Int64("recruiter_id", recruiterID))
	return &p, nil
}

// BlockRecruiter は採用担当の承認を取り消す。
func (s *Service) BlockRecruiter(ctx context.Context, recruiterID int64) (*model.RecruiterProfile, error) {
	var p model.RecruiterProfile
	if err := s.api.Put(ctx, fmt.Sprintf("/admin/recruiters/%d/block/", recruiterID), nil, &p); err != nil {
		return nil, err
	}
	s.logger.Info("採用担当をブロックしました", slog.Int64("recruiter_id", recruiterID))
	return &p, nil
}

// CanDeleteUser はユーザーを削除対象にできるかどうかを返す。
// 管理者およびスタッフは削除できない。
func CanDeleteUser(u *model.User) bool {
	return u != nil && !u.IsAdmin()
}

// DeleteUser はユーザーを削除する。管理者およびスタッフの場合はリクエストを送らずにエラーを返す。
func (s *Service) DeleteUser(ctx context.Context, u *model.User) error {
	if !CanDeleteUser(u) {
		return model.NewAdminDeletionError()
	}
	if err := s.api.Delete(ctx, fmt.Sprintf("/admin/users/%d/delete/", u.ID)); err != nil {
		return err
	}
	s.logger.Info("ユーザーを削除しました",
		slog.Int64("user_id", u.ID),
		slog.String("role", string(u.Role)),
	)
	return nil
}

// ListJobs は全求人の一覧を取得する。
func (s *Service) ListJobs(ctx context.Context) ([]model.Job, error) {
	jobs, err := apiclient.GetList[model.Job](ctx, s.api, "/admin/jobs/")
	if err != nil {
		return nil, err
	}
	s.sanitizer.Jobs(jobs)
	return jobs, nil
}

// DeleteJob は求人を削除する。
func (s *Service) DeleteJob(ctx context.Context, jobID int64) error {
	if err := s.api.Delete(ctx, fmt.Sprintf("/admin/jobs/%d/delete/", jobID)); err != nil {
		return err
	}
	s.logger.Info("求人を削除しました", slog.Int64("job_id", jobID))
	return nil
}

// ListApplications は全応募の一覧を取得する。
func (s *Service) ListApplications(ctx context.Context) ([]model.Application, error) {
	apps, err := apiclient.GetList[model.Application](ctx, s.api, "/admin/applications/")
	if err != nil {
		return nil, err
	}
	for i := range apps {
		s.sanitizer.Job(apps[i].Job)
	}
	return apps, nil
}
