// Package dashboard は役割ごとのダッシュボード集計を取得する。
package dashboard

import (
	"context"
	"log/slog"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/security"
)

// Service はダッシュボードの取得を提供する。
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

// Student は学生ダッシュボードを取得する。
func (s *Service) Student(ctx context.Context) (*model.StudentDashboard, error) {
	var d model.StudentDashboard
	if err := s.api.Get(ctx, "/dashboard/student/", &d); err != nil {
		return nil, err
	}
	for i := range d.RecentApplications {
		s.sanitizer.Job(d.RecentApplications[i].Job)
	}
	return &d, nil
}

// Recruiter は採用担当ダッシュボードを取得する。
func (s *Service) Recruiter(ctx context.Context) (*model.RecruiterDashboard, error) {
	var d model.RecruiterDashboard
	if err := s.api.Get(ctx, "/dashboard/recruiter/", &d); err != nil {
		return nil, err
	}
	s.sanitizer.Jobs(d.RecentJobs)
	for i := range d.RecentApplications {
		s.sanitizer.Job(d.RecentApplications[i].Job)
	}
	return &d, nil
}

// Admin は管理者ダッシュボードを取得する。
func (s *Service) Admin(ctx context.Context) (*model.AdminDashboard, error) {
	var d model.AdminDashboard
	if err := s.api.Get(ctx, "/dashboard/admin/", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// For はユーザーの役割に応じたダッシュボードを取得する。
// 学生、採用担当、管理者の順に判定し、いずれでもなければ権限エラーを返す。
func (s *Service) For(ctx context.Context, user *model.User) (any, error) {
	switch {
	case user.IsStudent():
		return s.Student(ctx)
	case user.IsRecruiter():
		return s.Recruiter(ctx)
	case user.IsAdmin():
		return s.Admin(ctx)
	default:
		return nil, model.NewPermissionError("ダッシュボードを表示する権限がありません。")
	}
}
