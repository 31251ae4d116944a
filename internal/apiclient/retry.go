package apiclient

import (
	"time"

	"github.com/hitoshi/jobboard/internal/model"
)

const (
	// defaultRetryBaseDelay は指数バックオフの初回遅延。
	defaultRetryBaseDelay = 200 * time.Millisecond
	// maxRetryDelay は指数バックオフの最大遅延。
	maxRetryDelay = 5 * time.Second
)

// ClassifyHTTPStatus はHTTPステータスコードをエラーカテゴリに分類する。
// 2xxは空文字列を返す。
func ClassifyHTTPStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return ""
	case statusCode == 401:
		return model.CategoryAuth
	case statusCode == 403:
		return model.CategoryPermission
	case statusCode == 404 || statusCode == 410:
		return model.CategoryNotFound
	case statusCode == 408 || statusCode == 429:
		return model.CategoryTransient
	case statusCode >= 500:
		return model.CategoryTransient
	case statusCode >= 400:
		return model.CategoryValidation
	default:
		return model.CategorySystem
	}
}

// CalculateBackoff は再試行回数に基づいて指数バックオフ遅延を計算する。
// base から2倍ずつ増加し、最大5秒。baseが0以下の場合は200ミリ秒。
func CalculateBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
