package apiclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expirySkew は有効期限直前のトークンを期限切れとみなす余裕時間。
const expirySkew = 10 * time.Second

// tokenExpired はJWTのexpクレームが過ぎているかどうかを返す。
// 署名はサーバーが検証するため、ここではペイロードのみを読む。
// JWTとして読めないトークンは判定できないためfalseを返す。
func tokenExpired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.After(now.Add(expirySkew))
}

// TokenExpiry はJWTの有効期限を返す。読めない場合はfalseを返す。
func TokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
