// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hitoshi/jobboard/internal/guard"
	"github.com/hitoshi/jobboard/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに現在のユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// CurrentUserSource は現在のセッションユーザーを返す。
// auth.Serviceの部分集合として定義する。
type CurrentUserSource interface {
	CurrentUser() *model.User
}

// NewUserMiddleware はセッションストアから現在のユーザーを取得し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 未ログインでもリクエストは通す。拒否はルートガードの役割。
func NewUserMiddleware(users CurrentUserSource) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := users.CurrentUser(); user != nil {
				r = r.WithContext(ContextWithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRequireRoleMiddleware はページに必要な役割を検査するミドルウェアを返す。
// requiredが空の場合はログイン済みであれば通す。
//
//   - 未ログイン: 401とログインページへの遷移先
//   - 役割が一致しない: 403とユーザー自身のダッシュボードへの遷移先
func NewRequireRoleMiddleware(required model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			decision := guard.Evaluate(user, required)
			if decision.Allow {
				next.ServeHTTP(w, r)
				return
			}
			if user == nil {
				WriteRedirectError(w, http.StatusUnauthorized, model.NewUnauthorizedError("ログインが必要です。"), decision.Redirect)
				return
			}
			WriteRedirectError(w, http.StatusForbidden, model.NewPermissionError("このページを表示する権限がありません。"), decision.Redirect)
		})
	}
}

// UserFromContext はリクエストコンテキストから現在のユーザーを取得する。
// 未ログインの場合はnilを返す。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを文字列で取得する。
// ログとレート制限のキーに使う。
func UserIDFromContext(ctx context.Context) (string, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return "", fmt.Errorf("user not found in context")
	}
	return strconv.FormatInt(user.ID, 10), nil
}
