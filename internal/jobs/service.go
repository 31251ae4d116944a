// Package jobs は求人の検索、詳細、作成・更新・削除を提供する。
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/security"
	"github.com/hitoshi/jobboard/internal/validation"
)

// minSuggestionQuery は検索候補を問い合わせるクエリの最小文字数。
const minSuggestionQuery = 2

// Service は求人に関する操作を提供する。
type Service struct {
	api       *apiclient.Client
	validator *validation.Validator
	sanitizer *security.Sanitizer
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(api *apiclient.Client, validator *validation.Validator, sanitizer *security.Sanitizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:       api,
		validator: validator,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// Search は求人を検索する。ページ番号、キーワード、雇用形態、勤務地で絞り込む。
func (s *Service) Search(ctx context.Context, filter model.JobFilter) (*model.Page[model.Job], error) {
	page, err := apiclient.GetPage[model.Job](ctx, s.api, "/jobs/", apiclient.WithQuery(filterQuery(filter)))
	if err != nil {
		return nil, err
	}
	s.sanitizer.Jobs(page.Results)
	return page, nil
}

// filterQuery は検索条件をクエリパラメータに変換する。ゼロ値の項目は含めない。
func filterQuery(f model.JobFilter) url.Values {
	q := url.Values{}
	if f.Page > 1 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if f.JobType != "" {
		q.Set("job_type", string(f.JobType))
	}
	if l := strings.TrimSpace(f.Location); l != "" {
		q.Set("location", l)
	}
	return q
}

// Get は求人の詳細を取得する。
func (s *Service) Get(ctx context.Context, id int64) (*model.Job, error) {
	var job model.Job
	if err := s.api.Get(ctx, jobPath(id), &job); err != nil {
		return nil, err
	}
	s.sanitizer.Job(&job)
	return &job, nil
}

// MyJobs はログイン中の採用担当が掲載した求人を取得する。
func (s *Service) MyJobs(ctx context.Context) ([]model.Job, error) {
	jobs, err := apiclient.GetList[model.Job](ctx, s.api, "/jobs/my_jobs/")
	if err != nil {
		return nil, err
	}
	s.sanitizer.Jobs(jobs)
	return jobs, nil
}

// CanPost は採用担当が求人を掲載できるかどうかを返す。
// 管理者の承認が済んでいない採用担当は掲載できない。最終的な判定はサーバーが行う。
func CanPost(user *model.User) bool {
	return user.IsApproved()
}

// Create は求人を作成する。未承認の採用担当の場合はリクエストを送らずにエラーを返す。
func (s *Service) Create(ctx context.Context, user *model.User, in model.JobInput) (*model.Job, error) {
	if !CanPost(user) {
		return nil, model.NewNotApprovedError()
	}
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	var job model.Job
	if err := s.api.Post(ctx, "/jobs/", in, &job); err != nil {
		return nil, err
	}
	s.logger.Info("求人を作成しました",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", user.ID),
	)
	return &job, nil
}

// Update は求人を更新する。
func (s *Service) Update(ctx context.Context, id int64, in model.JobInput) (*model.Job, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	var job model.Job
	if err := s.api.Put(ctx, jobPath(id), in, &job); err != nil {
		return nil, err
	}
	s.logger.Info("求人を更新しました", slog.Int64("job_id", id))
	return &job, nil
}

// Delete は求人を削除する。
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, jobPath(id)); err != nil {
		return err
	}
	s.logger.Info("求人を削除しました", slog.Int64("job_id", id))
	return nil
}

// Applications は求人への応募一覧を取得する。掲載した採用担当のみ参照できる。
func (s *Service) Applications(ctx context.Context, jobID int64) ([]model.Application, error) {
	return apiclient.GetList[model.Application](ctx, s.api, fmt.Sprintf("/jobs/%d/applications/", jobID))
}

// Suggestions は検索キーワードの候補を取得する。
// 2文字未満のクエリではリクエストを送らずに空の一覧を返す。
func (s *Service) Suggestions(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSuggestionQuery {
		return []string{}, nil
	}

	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := s.api.Get(ctx, "/search-suggestions/", &resp, apiclient.WithQuery(url.Values{"q": {query}})); err != nil {
		return nil, err
	}
	if resp.Suggestions == nil {
		return []string{}, nil
	}
	return resp.Suggestions, nil
}

// Categories は求人カテゴリの一覧を取得する。
func (s *Service) Categories(ctx context.Context) ([]model.JobCategory, error) {
	return apiclient.GetList[model.JobCategory](ctx, s.api, "/categories/")
}

func jobPath(id int64) string {
	return fmt.Sprintf("/jobs/%d/", id)
}
