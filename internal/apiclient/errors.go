package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/hitoshi/jobboard/internal/model"
)

// parseErrorBody はエラーレスポンスのボディを *model.APIError に変換する。
//
// サーバーは次のいずれかの形式でエラーを返す:
//   - {"error": "..."} または {"detail": "..."}
//   - {"field": ["msg", ...], "non_field_errors": [...]} の項目別エラー
//   - ["msg", ...] のエラー一覧
//
// いずれにも当てはまらない場合はステータスに応じた既定のメッセージを使う。
func parseErrorBody(status int, body []byte) *model.APIError {
	apiErr := newStatusError(status)

	message, fields := extractMessage(body)
	if message != "" {
		apiErr.Message = message
	}
	if len(fields) > 0 {
		apiErr.Fields = fields
	}
	return apiErr
}

// newStatusError はHTTPステータスから既定のAPIErrorを生成する。
func newStatusError(status int) *model.APIError {
	var apiErr *model.APIError
	switch ClassifyHTTPStatus(status) {
	case model.CategoryAuth:
		apiErr = model.NewUnauthorizedError("")
	case model.CategoryPermission:
		apiErr = model.NewPermissionError("")
	case model.CategoryValidation:
		apiErr = model.NewValidationError("", nil)
	case model.CategoryNotFound:
		apiErr = model.NewNotFoundError("")
	case model.CategoryTransient:
		apiErr = model.NewUnavailableError(status, nil)
		if status == http.StatusTooManyRequests {
			apiErr.Code = model.ErrCodeRateLimited
			apiErr.Message = "リクエストが多すぎます。"
		}
	default:
		apiErr = model.NewInternalError(nil)
		apiErr.Message = fmt.Sprintf("予期しないステータス %d が返されました。", status)
	}
	apiErr.Status = status
	return apiErr
}

// extractMessage はエラーボディから表示用メッセージと項目別エラーを取り出す。
func extractMessage(body []byte) (string, map[string][]string) {
	if len(body) == 0 {
		return "", nil
	}

	var list []any
	if err := json.Unmarshal(body, &list); err == nil {
		msgs := flatten(list)
		if len(msgs) > 0 {
			return msgs[0], nil
		}
		return "", nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", nil
	}

	for _, key := range []string{"error", "detail", "message"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s, nil
		}
	}

	fields := make(map[string][]string)
	for k, v := range obj {
		if msgs := flatten(v); len(msgs) > 0 {
			fields[k] = msgs
		}
	}
	if len(fields) == 0 {
		return "", nil
	}

	if msgs, ok := fields["non_field_errors"]; ok {
		return msgs[0], fields
	}

	// 表示は項目名順で最初のエラーを使う
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s: %s", keys[0], fields[keys[0]][0]), fields
}

// flatten はJSON値に含まれる文字列をすべて取り出す。
func flatten(v any) []string {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, flatten(item)...)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, flatten(val[k])...)
		}
		return out
	}
	return nil
}
