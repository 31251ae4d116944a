// Package profile は学生・採用担当の自身のプロフィールの参照と更新を提供する。
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/validation"
)

const (
	studentProfilePath   = "/students/profile/"
	recruiterProfilePath = "/recruiters/profile/"
)

// UserRefresher は現在のユーザーを再取得するインターフェース。auth.Serviceが実装する。
type UserRefresher interface {
	FetchCurrentUser(ctx context.Context) (*model.User, error)
}

// Service はプロフィールに関する操作を提供する。
type Service struct {
	api       *apiclient.Client
	validator *validation.Validator
	users     UserRefresher
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(api *apiclient.Client, validator *validation.Validator, users UserRefresher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:       api,
		validator: validator,
		users:     users,
		logger:    logger,
	}
}

// Student は学生の自身のプロフィールを取得する。
func (s *Service) Student(ctx context.Context) (*model.StudentProfile, error) {
	var p model.StudentProfile
	if err := s.getSingle(ctx, studentProfilePath, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStudent は学生のプロフィールを更新する。
func (s *Service) UpdateStudent(ctx context.Context, in model.StudentProfileUpdate) (*model.StudentProfile, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	var p model.StudentProfile
	if err := s.api.Put(ctx, studentProfilePath, in, &p); err != nil {
		return nil, err
	}
	s.logger.Info("学生プロフィールを更新しました", slog.Int64("profile_id", p.ID))
	return &p, nil
}

// Recruiter は採用担当の自身のプロフィールを取得する。
func (s *Service) Recruiter(ctx context.Context) (*model.RecruiterProfile, error) {
	var p model.RecruiterProfile
	if err := s.getSingle(ctx, recruiterProfilePath, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateRecruiter は採用担当のプロフィールを更新する。承認状態はサーバー側で管理され変更できない。
func (s *Service) UpdateRecruiter(ctx context.Context, in model.RecruiterProfileUpdate) (*model.RecruiterProfile, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	var p model.RecruiterProfile
	if err := s.api.Put(ctx, recruiterProfilePath, in, &p); err != nil {
		return nil, err
	}
	s.logger.Info("採用担当プロフィールを更新しました", slog.Int64("profile_id", p.ID))
	return &p, nil
}

// RecruiterView は採用担当プロフィール画面の表示内容。
type RecruiterView struct {
	Profile *model.RecruiterProfile `json:"profile"`
	Gate    Gate                    `json:"posting_gate"`
}

// RefreshRecruiter はプロフィールを取得し直し、承認状態を現在のユーザーにも反映する。
// 管理者が承認した後にこれを呼ぶと、求人掲載の制限が解除される。
func (s *Service) RefreshRecruiter(ctx context.Context) (*RecruiterView, error) {
	p, err := s.Recruiter(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FetchCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return &RecruiterView{Profile: p, Gate: PostingGate(user)}, nil
}

// getSingle は自身のプロフィールを取得する。
// サーバーの設定によっては1件だけの一覧やページ形式で返るため、その場合は先頭を使う。
func (s *Service) getSingle(ctx context.Context, path string, out any) error {
	resp, err := s.api.Do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}

	body := bytes.TrimSpace(resp.Body)
	switch {
	case len(body) == 0:
		return model.NewNotFoundError("プロフィールが見つかりません。")
	case body[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return model.NewInternalError(fmt.Errorf("プロフィールのパースに失敗しました: %w", err))
		}
		if len(items) == 0 {
			return model.NewNotFoundError("プロフィールが見つかりません。")
		}
		body = items[0]
	default:
		var page struct {
			Results []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(body, &page); err == nil && page.Results != nil {
			if len(page.Results) == 0 {
				return model.NewNotFoundError("プロフィールが見つかりません。")
			}
			body = page.Results[0]
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return model.NewInternalError(fmt.Errorf("プロフィールのパースに失敗しました: %w", err))
	}
	return nil
}
