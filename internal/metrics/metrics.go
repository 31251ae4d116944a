// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアント、メッセージストア、ポーリングワーカーから利用する。
type MetricsCollector interface {
	RecordAPIRequest(method string, statusCode int, duration time.Duration)
	RecordAPIRetry(method string)
	RecordTokenRefresh(success bool)
	RecordSessionExpired()
	RecordMessageSent(success bool)
	RecordMarkReadFailure()
	RecordStaleResponse()
	RecordPollCycle(task string, success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests    *prometheus.CounterVec
	apiLatency     prometheus.Histogram
	apiRetries     *prometheus.CounterVec
	tokenRefresh   *prometheus.CounterVec
	sessionExpired prometheus.Counter
	messagesSent   *prometheus.CounterVec
	markReadFail   prometheus.Counter
	staleResponses prometheus.Counter
	pollCycles     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_api_requests_total",
			Help: "外部APIへのリクエスト数（メソッド・ステータス別）",
		}, []string{"method", "status_code"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobboard_api_latency_seconds",
			Help:    "外部APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		apiRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_api_retries_total",
			Help: "一時的エラーによる外部APIリクエストの再試行数",
		}, []string{"method"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_token_refresh_total",
			Help: "アクセストークン更新の試行数",
		}, []string{"result"}),
		sessionExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobboard_session_expired_total",
			Help: "認証拒否によりセッションを破棄した回数",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_messages_sent_total",
			Help: "メッセージ送信の試行数",
		}, []string{"result"}),
		markReadFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobboard_mark_read_failures_total",
			Help: "既読化リクエストの失敗数",
		}),
		staleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobboard_stale_responses_discarded_total",
			Help: "選択が切り替わったため破棄したスレッド取得結果の数",
		}),
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobboard_poll_cycles_total",
			Help: "バックグラウンドポーリングの実行回数",
		}, []string{"task", "result"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.apiRetries,
		c.tokenRefresh,
		c.sessionExpired,
		c.messagesSent,
		c.markReadFail,
		c.staleResponses,
		c.pollCycles,
	)

	return c
}

// RecordAPIRequest は外部APIリクエストの結果とレイテンシを記録する。
// statusCodeが0の場合は通信エラーとして記録する。
func (c *Collector) RecordAPIRequest(method string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.apiRequests.WithLabelValues(method, status).Inc()
	c.apiLatency.Observe(duration.Seconds())
}

// RecordAPIRetry は再試行を記録する。
func (c *Collector) RecordAPIRetry(method string) {
	c.apiRetries.WithLabelValues(method).Inc()
}

// RecordTokenRefresh はトークン更新の結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	c.tokenRefresh.WithLabelValues(resultLabel(success)).Inc()
}

// RecordSessionExpired はセッション破棄を記録する。
func (c *Collector) RecordSessionExpired() {
	c.sessionExpired.Inc()
}

// RecordMessageSent はメッセージ送信の結果を記録する。
func (c *Collector) RecordMessageSent(success bool) {
	c.messagesSent.WithLabelValues(resultLabel(success)).Inc()
}

// RecordMarkReadFailure は既読化の失敗を記録する。
func (c *Collector) RecordMarkReadFailure() {
	c.markReadFail.Inc()
}

// RecordStaleResponse は破棄した古いレスポンスを記録する。
func (c *Collector) RecordStaleResponse() {
	c.staleResponses.Inc()
}

// RecordPollCycle はポーリングタスクの実行結果を記録する。
func (c *Collector) RecordPollCycle(task string, success bool) {
	c.pollCycles.WithLabelValues(task, resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Nop は何も記録しないMetricsCollector。
// メトリクスを必要としないCLIコマンドやテストで使用する。
type Nop struct{}

func (Nop) RecordAPIRequest(string, int, time.Duration) {}
func (Nop) RecordAPIRetry(string)                       {}
func (Nop) RecordTokenRefresh(bool)                     {}
func (Nop) RecordSessionExpired()                       {}
func (Nop) RecordMessageSent(bool)                      {}
func (Nop) RecordMarkReadFailure()                      {}
func (Nop) RecordStaleResponse()                        {}
func (Nop) RecordPollCycle(string, bool)                {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
