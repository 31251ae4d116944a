package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/jobboard/internal/listing"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/profile"
)

// JobServiceInterface は求人ハンドラーが必要とするサービスインターフェース。
type JobServiceInterface interface {
	Search(ctx context.Context, filter model.JobFilter) (*model.Page[model.Job], error)
	Get(ctx context.Context, id int64) (*model.Job, error)
	Create(ctx context.Context, user *model.User, in model.JobInput) (*model.Job, error)
	Update(ctx context.Context, id int64, in model.JobInput) (*model.Job, error)
	Applications(ctx context.Context, jobID int64) ([]model.Application, error)
	Suggestions(ctx context.Context, query string) ([]string, error)
	Categories(ctx context.Context) ([]model.JobCategory, error)
}

// MyJobsPageInterface は採用担当の掲載求人一覧画面。
type MyJobsPageInterface interface {
	Load(ctx context.Context) []model.Job
	Items() []model.Job
	Delete(ctx context.Context, jobID int64) (bool, error)
}

// AppliedLookup は求人への応募済みかどうかを調べる。
type AppliedLookup interface {
	FindForJob(ctx context.Context, jobID int64) (*model.Application, error)
}

// JobHandler は求人の検索・詳細・掲載管理のHTTPハンドラー。
type JobHandler struct {
	service JobServiceInterface
	myJobs  MyJobsPageInterface
	applied AppliedLookup
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(service JobServiceInterface, myJobs MyJobsPageInterface, applied AppliedLookup) *JobHandler {
	return &JobHandler{
		service: service,
		myJobs:  myJobs,
		applied: applied,
	}
}

// jobListResponse は求人一覧のレスポンス。
type jobListResponse struct {
	Results    []model.Job        `json:"results"`
	Pagination listing.Pagination `json:"pagination"`
}

// jobDetailResponse は求人詳細のレスポンス。
type jobDetailResponse struct {
	Job          *model.Job         `json:"job"`
	JobTypeLabel string             `json:"job_type_label"`
	HasApplied   bool               `json:"has_applied"`
	Application  *model.Application `json:"application,omitempty"`
}

// myJobsResponse は掲載求人一覧のレスポンス。
type myJobsResponse struct {
	Jobs []model.Job   `json:"jobs"`
	Gate *profile.Gate `json:"gate"`
}

// List は求人を検索する。
// GET /api/jobs?page=2&search=go&job_type=internship&location=Tokyo
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	filter := model.JobFilter{
		Page:     page,
		Search:   q.Get("search"),
		JobType:  model.JobType(q.Get("job_type")),
		Location: q.Get("location"),
	}

	result, err := h.service.Search(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobListResponse{
		Results:    result.Results,
		Pagination: listing.NewPagination(page, result.Count, listing.PageSize),
	})
}

// Suggestions は検索キーワードの候補を返す。
// GET /api/jobs/suggestions?q=go
func (h *JobHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.Suggestions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}

// Categories は求人カテゴリの一覧を返す。
// GET /api/categories
func (h *JobHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// Detail は求人の詳細を返す。学生の場合は応募済みかどうかも含める。
// GET /api/jobs/{id}
func (h *JobHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := jobDetailResponse{Job: job, JobTypeLabel: job.JobType.Label()}
	if user := currentUser(r); user.IsStudent() && h.applied != nil {
		app, err := h.applied.FindForJob(r.Context(), id)
		if err != nil {
			// 応募状況が取れなくても詳細は表示する
			slog.Warn("応募状況の取得に失敗しました",
				slog.Int64("job_id", id),
				slog.String("error", err.Error()),
			)
		}
		resp.Application = app
		resp.HasApplied = app != nil
	}
	writeJSON(w, http.StatusOK, resp)
}

// MyJobs は採用担当が掲載した求人と掲載可否を返す。
// GET /api/recruiter/jobs
func (h *JobHandler) MyJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.myJobs.Load(r.Context())
	gate := profile.PostingGate(currentUser(r))
	writeJSON(w, http.StatusOK, myJobsResponse{Jobs: jobs, Gate: &gate})
}

// Create は求人を掲載する。未承認の採用担当は403。
// POST /api/recruiter/jobs
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.JobInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	job, err := h.service.Create(r.Context(), currentUser(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.myJobs.Load(r.Context())
	writeJSON(w, http.StatusCreated, job)
}

// Update は求人を更新する。
// PUT /api/recruiter/jobs/{id}
func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var in model.JobInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	job, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Delete は確認を得たうえで求人を削除し、再取得した一覧を返す。
// DELETE /api/recruiter/jobs/{id}  (X-Confirm: yes)
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	done, err := h.myJobs.Delete(r.Context(), id)
	writeConfirmed(w, r, done, err, func() {
		gate := profile.PostingGate(currentUser(r))
		writeJSON(w, http.StatusOK, myJobsResponse{Jobs: h.myJobs.Items(), Gate: &gate})
	})
}

// Applications は求人への応募一覧を返す。
// GET /api/recruiter/jobs/{id}/applications
func (h *JobHandler) Applications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	apps, err := h.service.Applications(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}
