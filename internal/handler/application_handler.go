package handler

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/hitoshi/jobboard/internal/application"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/security"
)

// multipartOverhead は履歴書以外のフォーム項目に許容するサイズ。
const multipartOverhead = 1 << 20

// ApplicationServiceInterface は応募ハンドラーが必要とするサービスインターフェース。
type ApplicationServiceInterface interface {
	Apply(ctx context.Context, req application.ApplyRequest) (*model.Application, error)
	List(ctx context.Context) ([]model.Application, error)
	Get(ctx context.Context, id int64) (*model.Application, error)
	UpdateStatus(ctx context.Context, id int64, update model.StatusUpdate) (*model.Application, error)
}

// ResumeFetcherInterface は履歴書ファイルの取得インターフェース。
type ResumeFetcherInterface interface {
	Fetch(ctx context.Context, rawURL string) (*security.File, error)
}

// ApplicationHandler は応募と選考のHTTPハンドラー。
type ApplicationHandler struct {
	service       ApplicationServiceInterface
	resumes       ResumeFetcherInterface
	maxResumeSize int64
}

// NewApplicationHandler はApplicationHandlerを生成する。
func NewApplicationHandler(service ApplicationServiceInterface, resumes ResumeFetcherInterface, maxResumeSize int64) *ApplicationHandler {
	return &ApplicationHandler{
		service:       service,
		resumes:       resumes,
		maxResumeSize: maxResumeSize,
	}
}

// applicationResponse は応募と表示用の状態色。
type applicationResponse struct {
	*model.Application
	StatusColor string `json:"status_color"`
}

func toApplicationResponse(app *model.Application) applicationResponse {
	return applicationResponse{Application: app, StatusColor: app.Status.Color()}
}

func toApplicationResponses(apps []model.Application) []applicationResponse {
	out := make([]applicationResponse, len(apps))
	for i := range apps {
		out[i] = toApplicationResponse(&apps[i])
	}
	return out
}

// Apply は履歴書を添付して求人に応募する。
// POST /api/student/jobs/{id}/apply  (multipart: resume, cover_letter)
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxResumeSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, model.NewResumeTooLargeError(h.maxResumeSize))
			return
		}
		writeServiceError(w, r, model.NewResumeRequiredError())
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := application.ApplyRequest{
		JobID:       jobID,
		CoverLetter: r.FormValue("cover_letter"),
	}
	if file, header, err := r.FormFile("resume"); err == nil {
		defer file.Close()
		req.Resume = &application.Resume{Filename: header.Filename, Content: file}
	}

	app, err := h.service.Apply(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationResponse(app))
}

// List は自分の応募一覧を返す。
// GET /api/student/applications
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponses(apps))
}

// Get は応募の詳細を返す。
// GET /api/{role}/applications/{id}
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	app, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// UpdateStatus は選考状態とメモを更新する。
// PUT /api/recruiter/applications/{id}/status
func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var update model.StatusUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		writeServiceError(w, r, err)
		return
	}

	app, err := h.service.UpdateStatus(r.Context(), id, update)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// Resume は応募に添付された履歴書ファイルを中継する。
// GET /api/recruiter/applications/{id}/resume
func (h *ApplicationHandler) Resume(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	app, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	file, err := h.resumes.Fetch(r.Context(), app.Resume)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	w.Header().Set("Content-Length", fmt.Sprint(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	w.Write(file.Body)
}
