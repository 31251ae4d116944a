package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/jobboard/internal/admin"
	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/application"
	"github.com/hitoshi/jobboard/internal/auth"
	"github.com/hitoshi/jobboard/internal/bookmark"
	"github.com/hitoshi/jobboard/internal/config"
	"github.com/hitoshi/jobboard/internal/dashboard"
	"github.com/hitoshi/jobboard/internal/handler"
	"github.com/hitoshi/jobboard/internal/jobs"
	"github.com/hitoshi/jobboard/internal/live"
	"github.com/hitoshi/jobboard/internal/logger"
	"github.com/hitoshi/jobboard/internal/messaging"
	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/middleware"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/profile"
	"github.com/hitoshi/jobboard/internal/security"
	"github.com/hitoshi/jobboard/internal/session"
	"github.com/hitoshi/jobboard/internal/validation"
	"github.com/hitoshi/jobboard/internal/worker/poll"
)

// resumeFetchTimeout は外部ホストの履歴書を取得する際のタイムアウト。
const resumeFetchTimeout = 20 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envがあれば読み込む。既存の環境変数が優先される
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf(".envの読み込みに失敗しました: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("ログレベルの指定が不正なためinfoで続行します", slog.String("error", err.Error()))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("初期化に失敗しました: %w", err)
	}

	slog.Info("アプリケーションを起動します",
		slog.String("command", string(cmd)),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	switch cmd {
	case CommandLogin:
		return runLogin(w, os.Stdin, cfg, args[1:])
	case CommandLogout:
		return runLogout(w, cfg)
	case CommandWhoami:
		return runWhoami(w, cfg)
	default:
		return runServe(cfg)
	}
}

// core はすべての起動モードで共有するAPIクライアントとセッション。
type core struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	client  *apiclient.Client
	auth    *auth.Service
}

// newCore はAPIクライアントとセッションストアを構成する。
// トークンの供給元とセッション破棄フックはここで相互に登録する。
func newCore(cfg *config.Config, m metrics.MetricsCollector) *core {
	log := slog.Default()
	client := apiclient.New(apiclient.Config{
		BaseURL:        cfg.APIBaseURL,
		Timeout:        cfg.RequestTimeout,
		RateLimit:      cfg.APIRateLimit,
		RateBurst:      cfg.APIRateBurst,
		MaxRetries:     cfg.APIMaxRetries,
		RetryBaseDelay: cfg.APIRetryBaseDelay,
	}, nil, log, m)

	authSvc := auth.NewService(client, session.NewFileStorage(cfg.SessionFile), validation.New(), log)
	client.SetTokenSource(authSvc)
	client.OnUnauthorized(authSvc.ExpireSession)

	return &core{
		cfg:     cfg,
		logger:  log,
		metrics: m,
		client:  client,
		auth:    authSvc,
	}
}

// server はBFFサーバーモードの構成要素。
type server struct {
	handler    http.Handler
	hub        *live.Hub
	schedulers []scheduled
	limiter    *middleware.RateLimiter
}

// scheduled は一定間隔で起動するポーリングスケジューラ。
type scheduled struct {
	scheduler *poll.Scheduler
	interval  time.Duration
}

// buildServer は全依存関係をワイヤリングし、ルーターとバックグラウンド処理を構成する。
// セッションの復元はここでは行わない。
func buildServer(c *core, gatherer prometheus.Gatherer) *server {
	cfg := c.cfg
	log := c.logger

	// 1. 共通部品
	sanitizer := security.NewSanitizer()
	validator := validation.New()
	confirmer := middleware.HeaderConfirmer{}

	// 2. ライブ配信とメッセージ
	hub := live.NewHub(log)
	manager := messaging.NewManager(c.client, sanitizer, log, c.metrics)
	c.auth.OnChange(manager.SetUser)
	c.auth.OnChange(func(u *model.User) {
		hub.Publish(live.EventSession, map[string]any{
			"is_authenticated": u != nil,
			"redirect":         sessionRedirect(u),
		})
	})

	// 3. ドメインサービス
	jobSvc := jobs.NewService(c.client, validator, sanitizer, log)
	appSvc := application.NewService(c.client, validator, cfg.ResumeMaxSize, log)
	bookmarkSvc := bookmark.NewService(c.client, log)
	profileSvc := profile.NewService(c.client, validator, c.auth, log)
	dashboardSvc := dashboard.NewService(c.client, sanitizer, log)
	adminSvc := admin.NewService(c.client, sanitizer, log)
	resumes := security.NewResumeFetcher(c.client, security.NewSSRFGuard(), resumeFetchTimeout, cfg.ResumeMaxSize, log)

	// 4. ポーリング
	schedulers := []scheduled{
		{
			scheduler: poll.NewScheduler([]poll.Task{poll.NewConversationTask(manager, hub)}, log, c.metrics, 1),
			interval:  cfg.MessagePollInterval,
		},
		{
			scheduler: poll.NewScheduler([]poll.Task{poll.NewApprovalTask(c.auth, profileSvc, hub, log)}, log, c.metrics, 1),
			interval:  cfg.ApprovalPollInterval,
		},
	}

	// 5. ルーター
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	deps := &handler.RouterDeps{
		Logger:            log,
		Users:             c.auth,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure:   cfg.CookieSecure,
			CookieDomain:   cfg.CookieDomain,
			TrustedOrigins: []string{cfg.BaseURL, cfg.CORSAllowedOrigin},
		},
		RateLimiter: limiter,

		Metrics: metrics.Handler(gatherer),
		Live:    hub.Handler(cfg.CORSAllowedOrigin),

		AuthService: c.auth,

		JobService: jobSvc,
		MyJobsPage: jobs.NewMyJobsPage(jobSvc, confirmer, log),

		ApplicationService: appSvc,
		AppliedLookup:      appSvc,
		ResumeFetcher:      resumes,
		MaxResumeSize:      cfg.ResumeMaxSize,

		BookmarkService: bookmarkSvc,
		BookmarksPage:   bookmark.NewPage(bookmarkSvc, log),

		ProfileService:   profileSvc,
		DashboardService: dashboardSvc,

		AdminUsersPage:    admin.NewUsersPage(adminSvc, confirmer, log),
		AdminJobsPage:     admin.NewJobsPage(adminSvc, confirmer, log),
		AdminApplications: adminSvc,

		MessageStores: manager,
	}

	return &server{
		handler:    handler.NewRouter(deps),
		hub:        hub,
		schedulers: schedulers,
		limiter:    limiter,
	}
}

// sessionRedirect はセッション変化時のブラウザの遷移先を返す。
func sessionRedirect(u *model.User) string {
	if u == nil {
		return "/login"
	}
	return u.DashboardPath()
}

// runServe はBFFサーバーモードで起動する。
// 保存済みセッションを復元し、HTTPサーバー・ライブ配信・ポーリングを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 2. 依存関係のワイヤリング
	c := newCore(cfg, collector)
	srv := buildServer(c, registry)
	defer srv.limiter.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. セッションの復元（再検証はバックグラウンド）
	c.auth.Hydrate(ctx)

	// 4. HTTPサーバーの起動
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv.hub.Run(gctx)
		return nil
	})
	for _, s := range srv.schedulers {
		g.Go(func() error {
			s.scheduler.Start(gctx, s.interval)
			return nil
		})
	}
	g.Go(func() error {
		slog.Info("BFFサーバーを起動しました",
			slog.String("addr", httpServer.Addr),
			slog.String("base_url", cfg.BaseURL),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTPサーバーの起動に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("BFFサーバーを停止しています...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("サーバーの停止に失敗しました: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("BFFサーバーを正常に停止しました")
	return nil
}

// runLogin はターミナルからログインし、セッションを保存する。
// パスワードは環境変数JOBBOARD_PASSWORD、なければ標準入力の1行目から読む。
func runLogin(w io.Writer, stdin io.Reader, cfg *config.Config, args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("使い方: jobboard login <username>")
	}
	username := args[0]

	password := os.Getenv("JOBBOARD_PASSWORD")
	if password == "" {
		fmt.Fprint(w, "Password: ")
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("パスワードの読み込みに失敗しました: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	c := newCore(cfg, metrics.Nop{})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	result, err := c.auth.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("ログインに失敗しました: %s", model.UserMessage(err))
	}
	fmt.Fprintf(w, "%s (%s) としてログインしました\n", result.User.Username, result.User.Role)
	return nil
}

// runLogout は保存済みのセッションを破棄する。サーバーへの通知が失敗してもローカルの状態は消える。
func runLogout(w io.Writer, cfg *config.Config) error {
	c := newCore(cfg, metrics.Nop{})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	<-c.auth.Hydrate(ctx)
	c.auth.Logout(ctx)
	fmt.Fprintln(w, "ログアウトしました")
	return nil
}

// runWhoami は保存済みのセッションをサーバーで再検証し、ユーザーを表示する。
func runWhoami(w io.Writer, cfg *config.Config) error {
	c := newCore(cfg, metrics.Nop{})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	<-c.auth.Hydrate(ctx)
	user := c.auth.CurrentUser()
	if user == nil {
		fmt.Fprintln(w, "ログインしていません")
		return nil
	}
	fmt.Fprintf(w, "%s (%s) id=%d\n", user.Username, user.Role, user.ID)
	if user.IsRecruiter() && !user.IsApproved() {
		fmt.Fprintln(w, model.NewNotApprovedError().Message)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
