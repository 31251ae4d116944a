// Package apitest は求人サービスREST APIのインメモリ実装を提供する。
// 認証・求人・管理者操作の主要なエンドポイントを備え、BFFとAPIクライアントの結合テストに使う。
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/jobboard/internal/model"
)

// signingKey はテスト用トークンの署名鍵。
var signingKey = []byte("apitest-signing-key")

// account はサーバー側のユーザー情報。
type account struct {
	user      model.User
	password  string
	recruiter *model.RecruiterProfile
	student   *model.StudentProfile
}

// Server は外部APIのインメモリ実装。複数のゴルーチンから安全に使用できる。
type Server struct {
	mu        sync.Mutex
	nextID    int64
	accounts  map[int64]*account
	jobs      map[int64]*model.Job
	postedBy  map[int64]int64
	access    map[string]int64
	refresh   map[string]int64
	accessTTL time.Duration
	requests  []string
}

// NewServer は空のServerを生成する。
func NewServer() *Server {
	return &Server{
		nextID:    1,
		accounts:  make(map[int64]*account),
		jobs:      make(map[int64]*model.Job),
		postedBy:  make(map[int64]int64),
		access:    make(map[string]int64),
		refresh:   make(map[string]int64),
		accessTTL: time.Hour,
	}
}

// Handler はベースパス /api にAPIを公開するhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login/", s.login)
		r.Post("/auth/refresh/", s.refreshToken)
		r.Post("/auth/logout/", s.logout)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/auth/user/", s.currentUser)
			r.Get("/recruiters/profile/", s.recruiterProfile)

			r.Get("/jobs/", s.listJobs)
			r.Post("/jobs/", s.createJob)
			r.Get("/jobs/my_jobs/", s.myJobs)
			r.Delete("/jobs/{id}/", s.deleteJob)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/users/", s.listUsers)
				r.Put("/recruiters/{id}/approve/", s.setApproval(true))
				r.Put("/recruiters/{id}/block/", s.setApproval(false))
				r.Delete("/users/{id}/delete/", s.deleteUser)
			})
		})
	})
	return r
}

// AddStudent は学生を登録する。
func (s *Server) AddStudent(username, password string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.addLocked(username, password, model.RoleStudent, false)
	a.student = &model.StudentProfile{ID: s.allocLocked(), FirstName: username}
	a.user.StudentProfile = &model.StudentSummary{ID: a.student.ID, FirstName: username}
	return a.user
}

// AddRecruiter は採用担当を登録する。approvedがfalseの場合は未承認。
func (s *Server) AddRecruiter(username, password, company string, approved bool) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.addLocked(username, password, model.RoleRecruiter, false)
	a.recruiter = &model.RecruiterProfile{ID: s.allocLocked(), CompanyName: company, IsApproved: approved}
	a.user.RecruiterProfile = &model.RecruiterSummary{ID: a.recruiter.ID, CompanyName: company, IsApproved: approved}
	return a.user
}

// AddAdmin は管理者を登録する。
func (s *Server) AddAdmin(username, password string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(username, password, model.RoleAdmin, true).user
}

// SetAccessTTL は以後発行するアクセストークンの有効期間を設定する。
// 負の値を指定すると発行時点で期限切れのトークンになる。
func (s *Server) SetAccessTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTTL = d
}

// RevokeSessions は発行済みのアクセストークンとリフレッシュトークンをすべて無効にする。
func (s *Server) RevokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
	clear(s.refresh)
}

// Requests は受け付けたリクエストを "METHOD /path" の形式で返す。
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count は指定したメソッドとパスのリクエスト数を返す。
func (s *Server) Count(method, path string) int {
	want := method + " " + path
	n := 0
	for _, r := range s.Requests() {
		if r == want {
			n++
		}
	}
	return n
}

func (s *Server) allocLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Server) addLocked(username, password string, role model.Role, staff bool) *account {
	id := s.allocLocked()
	a := &account{
		user: model.User{
			ID:       id,
			Username: username,
			Email:    username + "@example.com",
			Role:     role,
			IsStaff:  staff,
		},
		password: password,
	}
	s.accounts[id] = a
	return a
}

// --- ミドルウェア ---

type ctxKey struct{}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		userID, ok := s.verifyAccess(raw)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUserID(r, userID)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := s.accountFor(r)
		if a == nil || !a.user.IsAdmin() {
			writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- トークン ---

func (s *Server) issueLocked(userID int64) (access, refresh string, err error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
	}
	access, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		return "", "", fmt.Errorf("アクセストークンの署名に失敗しました: %w", err)
	}
	s.access[claims.ID] = userID
	refresh = uuid.NewString()
	s.refresh[refresh] = userID
	return access, refresh, nil
}

func (s *Server) verifyAccess(raw string) (int64, bool) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.access[claims.ID]
	if !ok {
		return 0, false
	}
	_, exists := s.accounts[userID]
	return userID, exists
}

// --- 認証 ---

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.Username != req.Username || a.password != req.Password {
			continue
		}
		access, refresh, err := s.issueLocked(a.user.ID)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		user := a.user
		writeJSON(w, http.StatusOK, model.AuthResult{
			User:      &user,
			Access:    access,
			Refresh:   refresh,
			Student:   a.student,
			Recruiter: a.recruiter,
		})
		return
	}
	writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.refresh[req.Refresh]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	delete(s.refresh, req.Refresh)
	access, refresh, err := s.issueLocked(userID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	delete(s.refresh, req.Refresh)
	s.mu.Unlock()
	w.WriteHeader(http.StatusResetContent)
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	a := s.accountFor(r)
	s.mu.Lock()
	resp := struct {
		User      model.User              `json:"user"`
		Student   *model.StudentProfile   `json:"student,omitempty"`
		Recruiter *model.RecruiterProfile `json:"recruiter,omitempty"`
	}{User: a.user, Student: a.student, Recruiter: a.recruiter}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recruiterProfile(w http.ResponseWriter, r *http.Request) {
	a := s.accountFor(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.recruiter == nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	// 一覧形式で返すサーバー設定を再現する
	writeJSON(w, http.StatusOK, []model.RecruiterProfile{*a.recruiter})
}

// --- 求人 ---

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	jobs := s.sortedJobsLocked(func(*model.Job) bool { return true })
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, model.Page[model.Job]{Count: len(jobs), Results: jobs})
}

func (s *Server) myJobs(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	s.mu.Lock()
	jobs := s.sortedJobsLocked(func(j *model.Job) bool { return s.postedBy[j.ID] == userID })
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	a := s.accountFor(r)
	var in model.JobInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if a.recruiter == nil {
		writeDetail(w, http.StatusForbidden, "Only recruiters can post jobs.")
		return
	}
	if !a.recruiter.IsApproved {
		writeDetail(w, http.StatusForbidden, "Your recruiter account is pending approval.")
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"title": {"This field may not be blank."}})
		return
	}

	job := &model.Job{
		ID:          s.allocLocked(),
		Title:       in.Title,
		Description: in.Description,
		CompanyName: in.CompanyName,
		Role:        in.Role,
		Location:    in.Location,
		JobType:     in.JobType,
		IsActive:    in.IsActive,
		PostedBy:    a.recruiter,
	}
	s.jobs[job.ID] = job
	s.postedBy[job.ID] = a.user.ID
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	userID := userIDFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[id]; !exists {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	if s.postedBy[id] != userID {
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return
	}
	delete(s.jobs, id)
	delete(s.postedBy, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sortedJobsLocked(keep func(*model.Job) bool) []model.Job {
	jobs := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if keep(j) {
			jobs = append(jobs, *j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID > jobs[k].ID })
	return jobs
}

// --- 管理者 ---

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	role := model.Role(r.URL.Query().Get("role"))

	s.mu.Lock()
	users := make([]model.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		if role == "" || a.user.Role == role {
			users = append(users, a.user)
		}
	}
	s.mu.Unlock()

	sort.Slice(users, func(i, k int) bool { return users[i].ID < users[k].ID })
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) setApproval(approved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, a := range s.accounts {
			if a.recruiter == nil || a.recruiter.ID != id {
				continue
			}
			a.recruiter.IsApproved = approved
			a.user.RecruiterProfile.IsApproved = approved
			writeJSON(w, http.StatusOK, a.recruiter)
			return
		}
		writeDetail(w, http.StatusNotFound, "Not found.")
	}
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, exists := s.accounts[id]
	if !exists {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	if a.user.IsAdmin() {
		writeDetail(w, http.StatusForbidden, "Cannot delete admin users.")
		return
	}
	delete(s.accounts, id)
	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー ---

func contextWithUserID(r *http.Request, userID int64) context.Context {
	return context.WithValue(r.Context(), ctxKey{}, userID)
}

func userIDFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxKey{}).(int64)
	return id
}

func (s *Server) accountFor(r *http.Request) *account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[userIDFrom(r)]
}

func urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
