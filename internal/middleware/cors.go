package middleware

import (
	"net/http"
	"strings"
)

// corsAllowedHeaders はブラウザのUIが送ってよいリクエストヘッダー。
var corsAllowedHeaders = strings.Join([]string{"Content-Type", csrfHeaderName, ConfirmHeader}, ", ")

// corsExposedHeaders はUIが読み取るレスポンスヘッダー。遷移先と再試行までの秒数。
var corsExposedHeaders = strings.Join([]string{redirectHeader, "Retry-After"}, ", ")

// NewCORSMiddleware はUIの配信元オリジンからのリクエストにだけCORSヘッダーを付けるミドルウェアを返す。
// allowedOriginが空の場合は同一オリジンのみで運用し、CORSヘッダーを付けない。
// 許可オリジンからのOPTIONSプリフライトには204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	allowedOrigin = strings.TrimRight(allowedOrigin, "/")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if allowedOrigin == "" || !strings.EqualFold(origin, allowedOrigin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", corsExposedHeaders)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
