package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// 外部APIの応答から生成された場合は Status と Fields も保持する。
type APIError struct {
	Code     string              // エラーコード
	Message  string              // エラーメッセージ
	Category string              // カテゴリ: auth, permission, validation, not_found, transient, system
	Action   string              // ユーザー向け対処方法
	Status   int                 // 外部APIのHTTPステータス（ローカルで生成した場合は0）
	Fields   map[string][]string // 項目ごとの入力エラー
	Err      error               // 原因となったエラー
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// エラーカテゴリ
const (
	CategoryAuth       = "auth"
	CategoryPermission = "permission"
	CategoryValidation = "validation"
	CategoryNotFound   = "not_found"
	CategoryTransient  = "transient"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeTimeout              = "TIMEOUT"
	ErrCodeUnavailable          = "UNAVAILABLE"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
	ErrCodeNotApproved          = "RECRUITER_NOT_APPROVED"
	ErrCodeNoRecipient          = "NO_RECIPIENT"
	ErrCodeAdminDeletion        = "ADMIN_DELETION_FORBIDDEN"
	ErrCodeResumeRequired       = "RESUME_REQUIRED"
	ErrCodeResumeTooLarge       = "RESUME_TOO_LARGE"
	ErrCodeAlreadyApplied       = "ALREADY_APPLIED"
	ErrCodeInvalidSession       = "INVALID_SESSION"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeBlockedURL           = "BLOCKED_URL"
	ErrCodeCSRF                 = "CSRF_TOKEN_INVALID"
)

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError(message string) *APIError {
	if message == "" {
		message = "認証が必要です。"
	}
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  message,
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewPermissionError は権限エラーを生成する。再試行しても解消しない。
func NewPermissionError(message string) *APIError {
	if message == "" {
		message = "この操作を行う権限がありません。"
	}
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: CategoryPermission,
		Action:   "権限を確認してください。",
	}
}

// NewValidationError は入力エラーを生成する。
func NewValidationError(message string, fields map[string][]string) *APIError {
	if message == "" {
		message = "入力内容に誤りがあります。"
	}
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
		Fields:   fields,
	}
}

// NewNotFoundError は対象未検出エラーを生成する。
func NewNotFoundError(message string) *APIError {
	if message == "" {
		message = "指定されたデータが見つかりません。"
	}
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  message,
		Category: CategoryNotFound,
		Action:   "一覧から選び直してください。",
	}
}

// NewTimeoutError はリクエストのタイムアウトエラーを生成する。
// 一時的なエラーとして扱い、再試行可能。
func NewTimeoutError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeTimeout,
		Message:  "サーバーからの応答がタイムアウトしました。",
		Category: CategoryTransient,
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewUnavailableError はネットワーク障害やサーバーエラーなど一時的な失敗を生成する。
func NewUnavailableError(status int, err error) *APIError {
	return &APIError{
		Code:     ErrCodeUnavailable,
		Message:  "サーバーに接続できませんでした。",
		Category: CategoryTransient,
		Action:   "しばらく待ってから再度お試しください。",
		Status:   status,
		Err:      err,
	}
}

// NewInternalError は想定外のエラーを生成する。詳細はログのみに記録する。
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewNotApprovedError は未承認の採用担当が求人を作成しようとした場合のエラーを生成する。
func NewNotApprovedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotApproved,
		Message:  "求人を掲載するには管理者の承認が必要です。",
		Category: CategoryPermission,
		Action:   "承認されるまでお待ちください。承認状態はプロフィール画面で確認できます。",
	}
}

// NewNoRecipientError は送信先の会話も相手も決まっていない場合のエラーを生成する。
func NewNoRecipientError() *APIError {
	return &APIError{
		Code:     ErrCodeNoRecipient,
		Message:  "送信先の会話が選択されていません。",
		Category: CategoryValidation,
		Action:   "会話を選択してからメッセージを送信してください。",
	}
}

// NewAdminDeletionError は管理者ユーザーを削除しようとした場合のエラーを生成する。
func NewAdminDeletionError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminDeletion,
		Message:  "管理者ユーザーは削除できません。",
		Category: CategoryPermission,
		Action:   "削除対象のユーザーを確認してください。",
	}
}

// NewResumeRequiredError は履歴書ファイル未指定エラーを生成する。
func NewResumeRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeResumeRequired,
		Message:  "履歴書ファイルを添付してください。",
		Category: CategoryValidation,
		Action:   "PDFなどの履歴書ファイルを選択してください。",
		Fields:   map[string][]string{"resume": {"This field is required."}},
	}
}

// NewResumeTooLargeError は履歴書ファイルのサイズ超過エラーを生成する。
func NewResumeTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeResumeTooLarge,
		Message:  fmt.Sprintf("履歴書ファイルのサイズが上限（%dバイト）を超えています。", limit),
		Category: CategoryValidation,
		Action:   "ファイルサイズを小さくしてから再度お試しください。",
	}
}

// NewAlreadyAppliedError は同じ求人へ再度応募しようとした場合のエラーを生成する。
func NewAlreadyAppliedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyApplied,
		Message:  "この求人には既に応募しています。",
		Category: CategoryValidation,
		Action:   "応募状況は応募一覧から確認してください。",
	}
}

// NewInvalidSessionError は保存されたセッションが読み取れない場合のエラーを生成する。
func NewInvalidSessionError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSession,
		Message:  "保存されたセッション情報が壊れています。",
		Category: CategoryAuth,
		Action:   "再度ログインしてください。",
		Err:      err,
	}
}

// NewBlockedURLError は安全でない取得先URLを拒否した場合のエラーを生成する。
func NewBlockedURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeBlockedURL,
		Message:  fmt.Sprintf("セキュリティポリシーにより取得をブロックしました: %s", reason),
		Category: CategoryPermission,
		Action:   "ファイルの取得元を確認してください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: CategoryPermission,
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCategory はエラーが指定カテゴリのAPIErrorかどうかを返す。
func HasCategory(err error, category string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Category == category
}

// IsAuth は認証エラーかどうかを返す。
func IsAuth(err error) bool { return HasCategory(err, CategoryAuth) }

// IsPermission は権限エラーかどうかを返す。
func IsPermission(err error) bool { return HasCategory(err, CategoryPermission) }

// IsValidation は入力エラーかどうかを返す。
func IsValidation(err error) bool { return HasCategory(err, CategoryValidation) }

// IsNotFound は対象未検出エラーかどうかを返す。
func IsNotFound(err error) bool { return HasCategory(err, CategoryNotFound) }

// IsTransient は再試行可能な一時的エラーかどうかを返す。
func IsTransient(err error) bool { return HasCategory(err, CategoryTransient) }

// UserMessage はエラーをユーザー向けの短いメッセージに変換する。
// APIError以外のエラーは詳細を隠して一般的なメッセージを返す。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return "エラーが発生しました。しばらく待ってから再度お試しください。"
}
