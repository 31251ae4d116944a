package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/jobboard/internal/model"
)

// redirectHeader はクライアントに遷移先を伝えるレスポンスヘッダー。
const redirectHeader = "X-Redirect"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string              `json:"code"`
	Message  string              `json:"message"`
	Category string              `json:"category"`
	Action   string              `json:"action"`
	Fields   map[string][]string `json:"fields,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeError(w, statusCode, apiErr, "")
}

// WriteRedirectError はエラーと遷移先を合わせて書き込む。
// 遷移先はX-Redirectヘッダーとボディの両方に設定する。
func WriteRedirectError(w http.ResponseWriter, statusCode int, apiErr *model.APIError, redirect string) {
	if redirect != "" {
		w.Header().Set(redirectHeader, redirect)
	}
	writeError(w, statusCode, apiErr, redirect)
}

// WriteAPIError は任意のエラーをカテゴリに応じたステータスで書き込む。
// APIError以外は内部エラーとして扱い、詳細は返さない。
func WriteAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		WriteInternalServerError(w)
		return
	}
	WriteErrorResponse(w, StatusForError(apiErr), apiErr)
}

// StatusForError はAPIErrorをBFFのHTTPステータスに変換する。
// 外部APIのステータスを保持している場合は4xxに限りそのまま使う。
func StatusForError(apiErr *model.APIError) int {
	if apiErr.Code == model.ErrCodeRateLimited {
		return http.StatusTooManyRequests
	}
	if apiErr.Code == model.ErrCodeConfirmationRequired {
		return http.StatusConflict
	}
	if apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	switch apiErr.Category {
	case model.CategoryAuth:
		return http.StatusUnauthorized
	case model.CategoryPermission:
		return http.StatusForbidden
	case model.CategoryValidation:
		return http.StatusBadRequest
	case model.CategoryNotFound:
		return http.StatusNotFound
	case model.CategoryTransient:
		if apiErr.Code == model.ErrCodeTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError(nil))
}

func writeError(w http.ResponseWriter, statusCode int, apiErr *model.APIError, redirect string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Fields:   apiErr.Fields,
		Redirect: redirect,
	})
}
