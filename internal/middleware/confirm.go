package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hitoshi/jobboard/internal/listing"
	"github.com/hitoshi/jobboard/internal/model"
)

// ConfirmHeader は破壊的な操作への同意を示すリクエストヘッダー。
// 値が "yes" の場合のみ同意とみなす。
const ConfirmHeader = "X-Confirm"

var confirmContextKey = contextKey("confirm")

// confirmState はリクエスト単位の確認状態。
// 同意がない場合は提示すべきダイアログを記録する。
type confirmState struct {
	confirmed bool
	pending   *listing.Prompt
}

// NewConfirmMiddleware はX-Confirmヘッダーを読み取り、
// リクエストコンテキストに確認状態を注入するミドルウェアを返す。
func NewConfirmMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := &confirmState{
				confirmed: strings.EqualFold(r.Header.Get(ConfirmHeader), "yes"),
			}
			ctx := context.WithValue(r.Context(), confirmContextKey, state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HeaderConfirmer はX-Confirmヘッダーで同意を判定するlisting.Confirmer。
// 同意がない場合は拒否し、ダイアログの内容をコンテキストに残す。
type HeaderConfirmer struct{}

// Confirm はlisting.Confirmerを実装する。
func (HeaderConfirmer) Confirm(ctx context.Context, p listing.Prompt) (bool, error) {
	state, ok := ctx.Value(confirmContextKey).(*confirmState)
	if !ok {
		return false, nil
	}
	if state.confirmed {
		return true, nil
	}
	state.pending = &p
	return false, nil
}

// PendingPrompt は同意待ちのダイアログを返す。
func PendingPrompt(ctx context.Context) (listing.Prompt, bool) {
	state, ok := ctx.Value(confirmContextKey).(*confirmState)
	if !ok || state.pending == nil {
		return listing.Prompt{}, false
	}
	return *state.pending, true
}

// ConfirmationBody は同意が必要な場合の409レスポンス。
type ConfirmationBody struct {
	ErrorResponseBody
	Prompt listing.Prompt `json:"prompt"`
}

// WriteConfirmationRequired は確認ダイアログを含む409レスポンスを書き込む。
// クライアントは内容を表示し、同意後にX-Confirm: yesを付けて再送する。
func WriteConfirmationRequired(w http.ResponseWriter, p listing.Prompt) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	json.NewEncoder(w).Encode(ConfirmationBody{
		ErrorResponseBody: ErrorResponseBody{
			Code:     model.ErrCodeConfirmationRequired,
			Message:  "この操作には確認が必要です。",
			Category: model.CategoryValidation,
			Action:   "内容を確認して同意してください。",
		},
		Prompt: p,
	})
}
