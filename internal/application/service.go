// Package application は求人への応募と選考状態の更新を提供する。
package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/validation"
)

// Resume は応募時に添付する履歴書ファイル。
type Resume struct {
	Filename string
	Content  io.Reader
}

// ApplyRequest は応募の入力。
type ApplyRequest struct {
	JobID       int64
	Resume      *Resume
	CoverLetter string
}

// Service は応募に関する操作を提供する。
type Service struct {
	api           *apiclient.Client
	validator     *validation.Validator
	maxResumeSize int64
	logger        *slog.Logger
}

// NewService はServiceを生成する。maxResumeSizeは履歴書ファイルの上限バイト数。
func NewService(api *apiclient.Client, validator *validation.Validator, maxResumeSize int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:           api,
		validator:     validator,
		maxResumeSize: maxResumeSize,
		logger:        logger,
	}
}

// Apply は求人に応募する。
// multipart/form-dataで job_id と resume を送り、cover_letter は空でない場合のみ含める。
// 履歴書が未指定またはサイズ超過の場合はリクエストを送らずにエラーを返す。
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*model.Application, error) {
	if req.Resume == nil || req.Resume.Content == nil || req.Resume.Filename == "" {
		return nil, model.NewResumeRequiredError()
	}

	// 上限+1バイトまで読み、超過を判定する
	content, err := io.ReadAll(io.LimitReader(req.Resume.Content, s.maxResumeSize+1))
	if err != nil {
		return nil, fmt.Errorf("履歴書ファイルの読み込みに失敗しました: %w", err)
	}
	if len(content) == 0 {
		return nil, model.NewResumeRequiredError()
	}
	if int64(len(content)) > s.maxResumeSize {
		return nil, model.NewResumeTooLargeError(s.maxResumeSize)
	}

	fields := []apiclient.FormField{{Name: "job_id", Value: strconv.FormatInt(req.JobID, 10)}}
	if cl := strings.TrimSpace(req.CoverLetter); cl != "" {
		fields = append(fields, apiclient.FormField{Name: "cover_letter", Value: req.CoverLetter})
	}
	files := []apiclient.FormFile{{Field: "resume", Filename: req.Resume.Filename, Content: bytes.NewReader(content)}}

	var app model.Application
	if err := s.api.PostMultipart(ctx, "/applications/", fields, files, &app); err != nil {
		if apiErr, ok := model.AsAPIError(err); ok && apiErr.Category == model.CategoryValidation && isAlreadyApplied(apiErr) {
			return nil, model.NewAlreadyAppliedError()
		}
		return nil, err
	}

	s.logger.Info("求人に応募しました",
		slog.Int64("job_id", req.JobID),
		slog.Int64("application_id", app.ID),
	)
	return &app, nil
}

// isAlreadyApplied はサーバーの入力エラーが重複応募によるものかを判定する。
func isAlreadyApplied(apiErr *model.APIError) bool {
	return strings.Contains(strings.ToLower(apiErr.Message), "already applied")
}

// List はログイン中のユーザーに関係する応募の一覧を取得する。
// 学生は自分の応募、採用担当は自分の求人への応募が返る。
func (s *Service) List(ctx context.Context) ([]model.Application, error) {
	return apiclient.GetList[model.Application](ctx, s.api, "/applications/")
}

// Get は応募の詳細を取得する。
func (s *Service) Get(ctx context.Context, id int64) (*model.Application, error) {
	var app model.Application
	if err := s.api.Get(ctx, fmt.Sprintf("/applications/%d/", id), &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateStatus は選考状態とメモを更新する。状態は applied, accepted, rejected のいずれか。
func (s *Service) UpdateStatus(ctx context.Context, id int64, update model.StatusUpdate) (*model.Application, error) {
	if err := s.validator.Struct(update); err != nil {
		return nil, err
	}

	var app model.Application
	if err := s.api.Put(ctx, fmt.Sprintf("/applications/%d/update_status/", id), update, &app); err != nil {
		return nil, err
	}
	s.logger.Info("応募の選考状態を更新しました",
		slog.Int64("application_id", id),
		slog.String("status", string(update.Status)),
	)
	return &app, nil
}

// FindForJob は応募一覧から指定した求人への応募を探す。
// 応募済みの求人では応募操作を無効にするために使う。見つからない場合はnil。
func (s *Service) FindForJob(ctx context.Context, jobID int64) (*model.Application, error) {
	apps, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return FindForJob(apps, jobID), nil
}

// FindForJob は応募の一覧から指定した求人への応募を返す。
func FindForJob(apps []model.Application, jobID int64) *model.Application {
	for i := range apps {
		if apps[i].Job != nil && apps[i].Job.ID == jobID {
			return &apps[i]
		}
	}
	return nil
}
