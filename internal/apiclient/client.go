// Package apiclient は求人サービスのREST APIを呼び出すHTTPクライアントを提供する。
// ベースURLの解決、Bearerトークンの付与と更新、タイムアウト、再試行、
// 認証拒否時のセッション破棄を一箇所で扱う。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/model"
)

const (
	// defaultMaxResponseSize はレスポンスボディの最大サイズ（10MB）。
	defaultMaxResponseSize = 10 << 20
	// refreshPath はアクセストークン更新のエンドポイント。
	refreshPath = "/auth/refresh/"
	// userAgent はリクエストに付与するUser-Agent。
	userAgent = "Jobboard/1.0"
)

// ErrResponseTooLarge はレスポンスボディが上限サイズを超えたことを表す。
var ErrResponseTooLarge = errors.New("レスポンスサイズが上限を超えています")

// TokenSource はリクエストに付与するトークンの取得元。
// セッションストアが実装する。
type TokenSource interface {
	// AccessToken は現在のアクセストークンを返す。未ログインの場合は空文字列。
	AccessToken() string
	// RefreshToken は現在のリフレッシュトークンを返す。
	RefreshToken() string
	// UpdateTokens は更新されたトークンを保存する。refreshが空の場合は既存値を維持する。
	UpdateTokens(access, refresh string) error
}

// Config はClientの設定を保持する。
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RateLimit      float64 // req/sec。0以下は無制限
	RateBurst      int
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Client は外部REST APIのクライアント。
type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *slog.Logger
	metrics        metrics.MetricsCollector
	maxRetries     int
	retryBaseDelay time.Duration

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)

	refreshMu sync.Mutex
}

// New はClientの新しいインスタンスを生成する。
// httpClientがnilの場合はConfig.Timeoutを設定したクライアントを使用する。
func New(cfg Config, httpClient *http.Client, logger *slog.Logger, m metrics.MetricsCollector) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     httpClient,
		limiter:        rate.NewLimiter(limit, burst),
		logger:         logger,
		metrics:        m,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
}

// BaseURL はAPIのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource はトークンの取得元を設定する。
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized は認証済みリクエストが拒否され、トークン更新にも失敗した場合に呼ばれる関数を設定する。
// セッションストアのログアウト処理を登録する想定。
func (c *Client) OnUnauthorized(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// requestOptions はリクエスト単位のオプション。
type requestOptions struct {
	query           url.Values
	noAuth          bool
	noSessionExpiry bool
	maxResponseSize int64
}

// RequestOption はリクエスト単位のオプションを設定する関数。
type RequestOption func(*requestOptions)

// WithQuery はクエリパラメータを付与する。
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		o.query = q
	}
}

// WithoutAuth はBearerトークンを付与せずに送信する。ログインやサインアップで使用する。
func WithoutAuth() RequestOption {
	return func(o *requestOptions) {
		o.noAuth = true
	}
}

// WithoutSessionExpiry は認証拒否時にもセッション破棄フックを呼ばない。
// ログアウト自体のリクエストで使用する。
func WithoutSessionExpiry() RequestOption {
	return func(o *requestOptions) {
		o.noSessionExpiry = true
	}
}

// WithMaxResponseSize はレスポンスボディの最大サイズを設定する。
func WithMaxResponseSize(n int64) RequestOption {
	return func(o *requestOptions) {
		o.maxResponseSize = n
	}
}

// Response は成功したリクエストのレスポンス。
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get はGETリクエストを送信し、レスポンスをoutにデコードする。
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, "", opts...)
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// Post はJSONボディでPOSTリクエストを送信する。
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.sendJSON(ctx, http.MethodPost, path, body, out, opts...)
}

// Put はJSONボディでPUTリクエストを送信する。
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.sendJSON(ctx, http.MethodPut, path, body, out, opts...)
}

// Delete はDELETEリクエストを送信する。
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil, "", opts...)
	return err
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗しました: %w", err)
		}
		payload = b
	}
	resp, err := c.Do(ctx, method, path, payload, "application/json", opts...)
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// Do はリクエストを送信し、2xxのレスポンスを返す。
// 2xx以外の応答は *model.APIError に変換して返す。
//
// 認証済みリクエストが401で拒否された場合は1回だけトークン更新を試み、
// 成功すれば同じリクエストを再送する。更新に失敗した場合はOnUnauthorizedで
// 登録した関数を呼び出す。GETは一時的エラーに対して指数バックオフで再試行する。
func (c *Client) Do(ctx context.Context, method, path string, body []byte, contentType string, opts ...RequestOption) (*Response, error) {
	o := requestOptions{maxResponseSize: defaultMaxResponseSize}
	for _, opt := range opts {
		opt(&o)
	}

	target, err := c.resolve(path, o.query)
	if err != nil {
		return nil, err
	}

	refreshed := false
	for attempt := 0; ; attempt++ {
		token := ""
		if !o.noAuth {
			token = c.currentAccessToken()
			if token != "" && !refreshed && tokenExpired(token, time.Now()) {
				// 期限切れが分かっている場合は先に更新する。失敗時は古いトークンのまま送信する。
				if err := c.refresh(ctx, token); err == nil {
					token = c.currentAccessToken()
					refreshed = true
				}
			}
		}

		resp, err := c.send(ctx, method, target, body, contentType, token, o.maxResponseSize)
		if err == nil {
			return resp, nil
		}

		apiErr, ok := model.AsAPIError(err)
		if !ok {
			return nil, err
		}

		if apiErr.Status == http.StatusUnauthorized && token != "" {
			if !refreshed {
				refreshed = true
				if rerr := c.refresh(ctx, token); rerr == nil {
					continue
				}
			}
			if !o.noSessionExpiry {
				c.expireSession(ctx)
			}
			return nil, apiErr
		}

		if method == http.MethodGet && apiErr.Category == model.CategoryTransient && attempt < c.maxRetries {
			delay := CalculateBackoff(c.retryBaseDelay, attempt)
			c.logger.Warn("一時的なエラーのため再試行します",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("error", apiErr.Error()),
			)
			c.metrics.RecordAPIRetry(method)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		return nil, apiErr
	}
}

// send は1回分のHTTPリクエストを送信する。
func (c *Client) send(ctx context.Context, method, target string, body []byte, contentType, token string, maxSize int64) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("レート制限の待機が中断されました: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(method, 0, time.Since(start))
		return nil, c.classifyTransportError(ctx, method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	c.metrics.RecordAPIRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, c.classifyTransportError(ctx, method, target, err)
	}
	if int64(len(data)) > maxSize {
		return nil, model.NewInternalError(fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, maxSize))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseErrorBody(resp.StatusCode, data)
		c.logger.Debug("APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("url", target),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// classifyTransportError は通信エラーをタイムアウト・一時的エラー・キャンセルに分類する。
func (c *Client) classifyTransportError(ctx context.Context, method, target string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	c.logger.Error("APIの呼び出しに失敗しました",
		slog.String("method", method),
		slog.String("url", target),
		slog.String("error", err.Error()),
	)

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return model.NewTimeoutError(err)
	}
	return model.NewUnavailableError(0, err)
}

// refresh はリフレッシュトークンでアクセストークンを更新する。
// 並行して複数のリクエストが失敗した場合でも更新は1回にまとめる。
func (c *Client) refresh(ctx context.Context, staleToken string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return errors.New("token source is not configured")
	}

	// 他のリクエストが既に更新済みなら何もしない
	if current := ts.AccessToken(); current != "" && current != staleToken {
		return nil
	}

	refreshToken := ts.RefreshToken()
	if refreshToken == "" {
		return errors.New("refresh token is empty")
	}

	payload, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return err
	}
	target, err := c.resolve(refreshPath, nil)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, http.MethodPost, target, payload, "application/json", "", defaultMaxResponseSize)
	if err != nil {
		c.metrics.RecordTokenRefresh(false)
		c.logger.Warn("アクセストークンの更新に失敗しました", slog.String("error", err.Error()))
		return err
	}

	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil || out.Access == "" {
		c.metrics.RecordTokenRefresh(false)
		return fmt.Errorf("トークン更新レスポンスのパースに失敗しました: %w", err)
	}
	if err := ts.UpdateTokens(out.Access, out.Refresh); err != nil {
		c.metrics.RecordTokenRefresh(false)
		return err
	}

	c.metrics.RecordTokenRefresh(true)
	c.logger.Info("アクセストークンを更新しました")
	return nil
}

// expireSession はセッション破棄フックを呼び出す。
func (c *Client) expireSession(ctx context.Context) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()

	c.metrics.RecordSessionExpired()
	c.logger.Warn("認証が拒否されたためセッションを破棄します")
	if fn != nil {
		fn(context.WithoutCancel(ctx))
	}
}

func (c *Client) currentAccessToken() string {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return ""
	}
	return ts.AccessToken()
}

// resolve はパスをベースURLと結合する。
// 絶対URLはベースURLと同一オリジンの場合のみ許可する。
func (c *Client) resolve(path string, query url.Values) (string, error) {
	var target string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if !c.SameOrigin(path) {
			return "", fmt.Errorf("APIのベースURLと異なるオリジンへのリクエストは許可されていません: %s", path)
		}
		target = path
	} else {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		target = c.baseURL + path
	}

	if len(query) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("URLのパースに失敗しました: %w", err)
		}
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}
	return target, nil
}

// SameOrigin はURLがAPIのベースURLと同じスキーム・ホストかどうかを返す。
func (c *Client) SameOrigin(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

func decodeInto(resp *Response, out any) error {
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return model.NewInternalError(fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err))
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
