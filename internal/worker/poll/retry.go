package poll

import "time"

const (
	// maxBackoff はバックオフ遅延の上限。
	maxBackoff = 10 * time.Minute
)

// backoffState はタスクごとの連続失敗回数と次回実行可能時刻。
type backoffState struct {
	consecutiveErrors int
	nextRunAt         time.Time
	lastError         string
}

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回はbase、2倍ずつ増加し、最大10分。
func CalculateBackoff(base time.Duration, consecutiveErrors int) time.Duration {
	delay := base
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// due は現在時刻にタスクを実行してよいかどうかを返す。
func (b *backoffState) due(now time.Time) bool {
	return !now.Before(b.nextRunAt)
}

// applyFailure は連続失敗回数を増やし、次回実行可能時刻を後ろにずらす。
func (b *backoffState) applyFailure(now time.Time, base time.Duration, reason string) time.Duration {
	b.consecutiveErrors++
	b.lastError = reason
	delay := CalculateBackoff(base, b.consecutiveErrors-1)
	b.nextRunAt = now.Add(delay)
	return delay
}

// applySuccess は失敗状態をリセットする。
func (b *backoffState) applySuccess() {
	b.consecutiveErrors = 0
	b.lastError = ""
	b.nextRunAt = time.Time{}
}
