// Package auth はログイン、サインアップ、ログアウト、セッションの復元を提供する。
// 現在のユーザーとトークンはプロセス内で1つだけ保持し、session.Storageに永続化する。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/session"
)

// API は認証フローが使用する外部APIクライアントのインターフェース。
// apiclient.Clientが実装する。
type API interface {
	Get(ctx context.Context, path string, out any, opts ...apiclient.RequestOption) error
	Post(ctx context.Context, path string, body, out any, opts ...apiclient.RequestOption) error
}

// StructValidator は送信前の入力チェックのインターフェース。
type StructValidator interface {
	Struct(s any) error
}

// currentUserResponse は /auth/user/ のレスポンス。
type currentUserResponse struct {
	User      *model.User             `json:"user"`
	Student   *model.StudentProfile   `json:"student,omitempty"`
	Recruiter *model.RecruiterProfile `json:"recruiter,omitempty"`
}

// Service はセッションと認証状態を管理する。
// apiclient.TokenSourceを実装し、APIクライアントにトークンを供給する。
type Service struct {
	api       API
	storage   session.Storage
	validator StructValidator
	logger    *slog.Logger

	mu        sync.RWMutex
	user      *model.User
	access    string
	refresh   string
	listeners []func(*model.User)
}

// NewService はServiceを生成する。起動直後は未ログイン状態で、Hydrateで復元する。
func NewService(api API, storage session.Storage, validator StructValidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:       api,
		storage:   storage,
		validator: validator,
		logger:    logger,
	}
}

// OnChange は現在のユーザーが変化したときに呼ばれる関数を登録する。
// ログアウト時はnilが渡される。
func (s *Service) OnChange(fn func(*model.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Hydrate は保存済みのセッションを復元する。
// トークンとユーザーの両方が保存されていれば、保存済みのユーザーを即座に現在のユーザーとし、
// サーバーへの再検証を非同期で行う。返すチャネルは再検証の終了時にクローズされる。
// 保存済みユーザーが読み取れない場合は全キーを削除し、未ログインとして続行する。
func (s *Service) Hydrate(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	access, err := s.storage.Get(session.KeyAccessToken)
	if err != nil {
		s.logger.Error("セッションの読み込みに失敗しました", slog.String("error", err.Error()))
		close(done)
		return done
	}
	rawUser, err := s.storage.Get(session.KeyUser)
	if err != nil {
		s.logger.Error("セッションの読み込みに失敗しました", slog.String("error", err.Error()))
		close(done)
		return done
	}
	if access == "" || rawUser == "" {
		close(done)
		return done
	}

	var user model.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.Warn("保存済みユーザー情報の解析に失敗したためセッションを破棄します",
			slog.String("error", model.NewInvalidSessionError(err).Error()),
		)
		if derr := s.storage.Delete(session.Keys...); derr != nil {
			s.logger.Error("セッションの削除に失敗しました", slog.String("error", derr.Error()))
		}
		close(done)
		return done
	}
	refresh, _ := s.storage.Get(session.KeyRefreshToken)

	s.mu.Lock()
	s.user = &user
	s.access = access
	s.refresh = refresh
	s.mu.Unlock()
	s.notify(&user)

	s.logger.Info("保存済みセッションを復元しました",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	go func() {
		defer close(done)
		// 失敗時はFetchCurrentUser内でログアウトする
		_, _ = s.FetchCurrentUser(ctx)
	}()
	return done
}

// Login はユーザー名とパスワードでログインし、トークンとユーザー情報を保存する。
// 失敗時はエラーボディから取り出したメッセージを持つ *model.APIError を返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.AuthResult, error) {
	body := map[string]string{"username": username, "password": password}

	var result model.AuthResult
	if err := s.api.Post(ctx, "/auth/login/", body, &result, apiclient.WithoutAuth()); err != nil {
		s.logger.Warn("ログインに失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if err := s.establish(&result); err != nil {
		return nil, err
	}

	s.logger.Info("ログインしました",
		slog.Int64("user_id", result.User.ID),
		slog.String("role", string(result.User.Role)),
	)
	return &result, nil
}

// Signup は新規ユーザーを登録し、そのままログイン状態にする。
// roleがstudentの場合は学生用、それ以外は採用担当用のエンドポイントを使用する。
// 送信前のチェックはroleに応じた必須項目の有無のみ。
func (s *Service) Signup(ctx context.Context, req model.SignupRequest, role model.Role) (*model.AuthResult, error) {
	req.Role = role
	if s.validator != nil {
		if err := s.validator.Struct(req); err != nil {
			return nil, err
		}
	}

	endpoint := "/auth/signup/recruiter/"
	if role == model.RoleStudent {
		endpoint = "/auth/signup/student/"
	}

	var result model.AuthResult
	if err := s.api.Post(ctx, endpoint, req, &result, apiclient.WithoutAuth()); err != nil {
		s.logger.Warn("サインアップに失敗しました",
			slog.String("username", req.Username),
			slog.String("role", string(role)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if err := s.establish(&result); err != nil {
		return nil, err
	}

	s.logger.Info("新規ユーザーを登録しました",
		slog.Int64("user_id", result.User.ID),
		slog.String("role", string(result.User.Role)),
	)
	return &result, nil
}

// establish はログイン・サインアップの結果を保存し、現在のユーザーを設定する。
func (s *Service) establish(result *model.AuthResult) error {
	if result.User == nil || result.Access == "" {
		return model.NewInternalError(fmt.Errorf("認証レスポンスにトークンまたはユーザーが含まれていません"))
	}
	if result.User.IsRecruiter() && result.User.RecruiterProfile == nil && result.Recruiter != nil {
		result.User.RecruiterProfile = &model.RecruiterSummary{IsApproved: result.Recruiter.IsApproved}
	}

	rawUser, err := json.Marshal(result.User)
	if err != nil {
		return fmt.Errorf("ユーザー情報のシリアライズに失敗しました: %w", err)
	}
	if err := s.storage.Set(map[string]string{
		session.KeyAccessToken:  result.Access,
		session.KeyRefreshToken: result.Refresh,
		session.KeyUser:         string(rawUser),
	}); err != nil {
		return fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	user := *result.User
	s.mu.Lock()
	s.user = &user
	s.access = result.Access
	s.refresh = result.Refresh
	s.mu.Unlock()
	s.notify(&user)
	return nil
}

// Logout はサーバー側のリフレッシュトークン無効化を試みた後、保存済みセッションをすべて削除する。
// サーバー呼び出しの失敗はログに記録するのみで、ローカルのログアウトは必ず行う。
func (s *Service) Logout(ctx context.Context) {
	if refresh := s.RefreshToken(); refresh != "" {
		err := s.api.Post(ctx, "/auth/logout/", map[string]string{"refresh": refresh}, nil,
			apiclient.WithoutSessionExpiry(),
		)
		if err != nil {
			s.logger.Warn("サーバー側のログアウトに失敗しました", slog.String("error", err.Error()))
		}
	}
	s.clear()
	s.logger.Info("ログアウトしました")
}

// ExpireSession はサーバーを呼ばずにローカルのセッションを破棄する。
// トークンが拒否された場合にAPIクライアントから呼ばれる。
func (s *Service) ExpireSession(_ context.Context) {
	if !s.IsAuthenticated() {
		return
	}
	s.clear()
	s.logger.Warn("セッションの有効期限が切れたためログアウトしました")
}

// clear は保存済みのキーとメモリ上の状態をまとめて削除する。
func (s *Service) clear() {
	if err := s.storage.Delete(session.Keys...); err != nil {
		s.logger.Error("セッションの削除に失敗しました", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.user = nil
	s.access = ""
	s.refresh = ""
	s.mu.Unlock()
	s.notify(nil)
}

// FetchCurrentUser はサーバーで現在のユーザーを再検証し、保存済みのユーザー情報を更新する。
// 採用担当の場合は承認状態をユーザーに反映する。
// 失敗した場合は無効なセッションとみなしてログアウトする。
func (s *Service) FetchCurrentUser(ctx context.Context) (*model.User, error) {
	return s.fetchCurrentUser(ctx, false)
}

// RefreshCurrentUser はFetchCurrentUserと同じだが、タイムアウトや5xxなど一時的な失敗では
// セッションを保持したままエラーを返す。バックグラウンドの定期確認で使う。
func (s *Service) RefreshCurrentUser(ctx context.Context) (*model.User, error) {
	return s.fetchCurrentUser(ctx, true)
}

func (s *Service) fetchCurrentUser(ctx context.Context, keepOnTransient bool) (*model.User, error) {
	var resp currentUserResponse
	if err := s.api.Get(ctx, "/auth/user/", &resp); err != nil {
		if keepOnTransient && model.IsTransient(err) {
			s.logger.Warn("現在のユーザーの取得に一時的に失敗しました", slog.String("error", err.Error()))
			return nil, err
		}
		s.logger.Warn("現在のユーザーの取得に失敗したためログアウトします", slog.String("error", err.Error()))
		s.Logout(context.WithoutCancel(ctx))
		return nil, err
	}
	if resp.User == nil {
		err := model.NewInternalError(fmt.Errorf("ユーザー情報がレスポンスに含まれていません"))
		s.Logout(context.WithoutCancel(ctx))
		return nil, err
	}

	user := resp.User
	if resp.Recruiter != nil {
		summary := &model.RecruiterSummary{
			ID:          resp.Recruiter.ID,
			IsApproved:  resp.Recruiter.IsApproved,
			CompanyName: resp.Recruiter.CompanyName,
		}
		user.RecruiterProfile = summary
	}
	if resp.Student != nil && user.StudentProfile == nil {
		user.StudentProfile = &model.StudentSummary{
			ID:        resp.Student.ID,
			FirstName: resp.Student.FirstName,
			LastName:  resp.Student.LastName,
		}
	}

	rawUser, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("ユーザー情報のシリアライズに失敗しました: %w", err)
	}
	if err := s.storage.Set(map[string]string{session.KeyUser: string(rawUser)}); err != nil {
		s.logger.Error("ユーザー情報の保存に失敗しました", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	s.notify(user)

	copied := *user
	return &copied, nil
}

// CurrentUser は現在のユーザーのコピーを返す。未ログインの場合はnil。
func (s *Service) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Flags は現在のユーザーから導出した役割フラグ。
type Flags struct {
	IsAuthenticated bool `json:"is_authenticated"`
	IsStudent       bool `json:"is_student"`
	IsRecruiter     bool `json:"is_recruiter"`
	IsAdmin         bool `json:"is_admin"`
}

// Flags は現在のユーザーの役割フラグを返す。
// IsAdmin はroleがadminであるかスタッフフラグが立っている場合にtrue。
func (s *Service) Flags() Flags {
	u := s.CurrentUser()
	return Flags{
		IsAuthenticated: u != nil,
		IsStudent:       u.IsStudent(),
		IsRecruiter:     u.IsRecruiter(),
		IsAdmin:         u.IsAdmin(),
	}
}

// IsAuthenticated はログイン中かどうかを返す。
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// AccessToken は現在のアクセストークンを返す。
func (s *Service) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// RefreshToken は現在のリフレッシュトークンを返す。
func (s *Service) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// UpdateTokens は更新されたトークンを保存する。refreshが空の場合は既存値を維持する。
func (s *Service) UpdateTokens(access, refresh string) error {
	values := map[string]string{session.KeyAccessToken: access}
	if refresh != "" {
		values[session.KeyRefreshToken] = refresh
	}
	if err := s.storage.Set(values); err != nil {
		return fmt.Errorf("トークンの保存に失敗しました: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	if refresh != "" {
		s.refresh = refresh
	}
	return nil
}

// notify は登録済みの関数にユーザーの変化を通知する。
func (s *Service) notify(user *model.User) {
	s.mu.RLock()
	listeners := make([]func(*model.User), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		if user == nil {
			fn(nil)
			continue
		}
		u := *user
		fn(&u)
	}
}
