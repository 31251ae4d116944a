package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobboard/internal/middleware"
	"github.com/hitoshi/jobboard/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Users             middleware.CurrentUserSource
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 運用
	Metrics http.Handler
	Live    http.Handler

	// 認証
	AuthService AuthServiceInterface

	// 求人
	JobService JobServiceInterface
	MyJobsPage MyJobsPageInterface

	// 応募
	ApplicationService ApplicationServiceInterface
	AppliedLookup      AppliedLookup
	ResumeFetcher      ResumeFetcherInterface
	MaxResumeSize      int64

	// ブックマーク
	BookmarkService BookmarkServiceInterface
	BookmarksPage   BookmarksPageInterface

	// プロフィール・ダッシュボード
	ProfileService   ProfileServiceInterface
	DashboardService DashboardServiceInterface

	// 管理者
	AdminUsersPage    AdminUsersPageInterface
	AdminJobsPage     AdminJobsPageInterface
	AdminApplications AdminApplicationLister

	// メッセージ
	MessageStores MessageStoreProvider
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → User → RateLimit(General) → CSRF → Confirm
//
// 役割ごとのページは NewRequireRoleMiddleware で保護する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewUserMiddleware(deps.Users))

	authHandler := NewAuthHandler(deps.AuthService)
	jobHandler := NewJobHandler(deps.JobService, deps.MyJobsPage, deps.AppliedLookup)
	appHandler := NewApplicationHandler(deps.ApplicationService, deps.ResumeFetcher, deps.MaxResumeSize)
	bookmarkHandler := NewBookmarkHandler(deps.BookmarkService, deps.BookmarksPage)
	profileHandler := NewProfileHandler(deps.ProfileService, deps.DashboardService)
	adminHandler := NewAdminHandler(deps.AdminUsersPage, deps.AdminJobsPage, deps.AdminApplications)
	messageHandler := NewMessageHandler(deps.MessageStores)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewConfirmMiddleware())

		r.Handle("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
		r.Get("/route", authHandler.Route)

		// --- 認証不要のルート ---
		r.Route("/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/signup/{role}", authHandler.Signup)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		r.Get("/jobs", jobHandler.List)
		r.Get("/jobs/suggestions", jobHandler.Suggestions)
		r.Get("/jobs/{id}", jobHandler.Detail)
		r.Get("/categories", jobHandler.Categories)

		// --- 学生 ---
		r.Route("/student", func(r chi.Router) {
			r.Use(middleware.NewRequireRoleMiddleware(model.RoleStudent))

			r.Get("/dashboard", profileHandler.Dashboard)
			r.Get("/profile", profileHandler.Student)
			r.Put("/profile", profileHandler.UpdateStudent)

			r.Post("/jobs/{id}/apply", appHandler.Apply)
			r.Post("/jobs/{id}/bookmark", bookmarkHandler.Toggle)
			r.Get("/applications", appHandler.List)
			r.Get("/applications/{id}", appHandler.Get)
			r.Get("/bookmarks", bookmarkHandler.List)
			r.Delete("/bookmarks/{id}", bookmarkHandler.Remove)

			mountMessages(r, messageHandler, deps.Live)
		})

		// --- 採用担当 ---
		r.Route("/recruiter", func(r chi.Router) {
			r.Use(middleware.NewRequireRoleMiddleware(model.RoleRecruiter))

			r.Get("/dashboard", profileHandler.Dashboard)
			r.Get("/profile", profileHandler.Recruiter)
			r.Put("/profile", profileHandler.UpdateRecruiter)

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", jobHandler.MyJobs)
				r.Post("/", jobHandler.Create)
				r.Put("/{id}", jobHandler.Update)
				r.Delete("/{id}", jobHandler.Delete)
				r.Get("/{id}/applications", jobHandler.Applications)
			})
			r.Get("/applications/{id}", appHandler.Get)
			r.Put("/applications/{id}/status", appHandler.UpdateStatus)
			r.Get("/applications/{id}/resume", appHandler.Resume)

			mountMessages(r, messageHandler, deps.Live)
		})

		// --- 管理者 ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NewRequireRoleMiddleware(model.RoleAdmin))

			r.Get("/dashboard", profileHandler.Dashboard)
			r.Get("/users", adminHandler.Users)
			r.Delete("/users/{id}", adminHandler.DeleteUser)
			r.Post("/recruiters/{id}/approve", adminHandler.Approve)
			r.Post("/recruiters/{id}/block", adminHandler.Block)
			r.Get("/jobs", adminHandler.Jobs)
			r.Delete("/jobs/{id}", adminHandler.DeleteJob)
			r.Get("/applications", adminHandler.Applications)
		})
	})

	return r
}

// mountMessages はメッセージ画面のルートを登録する。
func mountMessages(r chi.Router, h *MessageHandler, live http.Handler) {
	r.Route("/messages", func(r chi.Router) {
		r.Get("/", h.State)
		r.Get("/state", h.State)
		r.Post("/mount", h.Mount)
		r.Post("/refresh", h.Refresh)
		r.Post("/select", h.Select)
		r.Put("/draft", h.Draft)
		r.Post("/send", h.Send)
		if live != nil {
			r.Handle("/live", live)
		}
	})
}

// healthHandler はプロセスの死活状態を返す。
// GET /health
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
