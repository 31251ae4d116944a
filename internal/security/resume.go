package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/hitoshi/jobboard/internal/apiclient"
	"github.com/hitoshi/jobboard/internal/model"
)

// Downloader はAPIと同一オリジンのファイルを認証付きで取得するインターフェース。
// apiclient.Clientが実装する。
type Downloader interface {
	SameOrigin(rawURL string) bool
	Download(ctx context.Context, path string, limit int64) (*apiclient.Response, error)
}

// File は取得したファイル。
type File struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ResumeFetcher は応募に添付された履歴書ファイルを取得する。
// APIと同一オリジンのURLは認証付きで、それ以外はSSRF防止付きのクライアントで取得する。
type ResumeFetcher struct {
	api     Downloader
	guard   *SSRFGuard
	client  *http.Client
	maxSize int64
	logger  *slog.Logger
}

// NewResumeFetcher はResumeFetcherを生成する。
func NewResumeFetcher(api Downloader, guard *SSRFGuard, timeout time.Duration, maxSize int64, logger *slog.Logger) *ResumeFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResumeFetcher{
		api:     api,
		guard:   guard,
		client:  guard.NewSafeClient(timeout),
		maxSize: maxSize,
		logger:  logger,
	}
}

// Fetch は履歴書ファイルを取得する。サイズが上限を超える場合はエラーを返す。
func (f *ResumeFetcher) Fetch(ctx context.Context, rawURL string) (*File, error) {
	if rawURL == "" {
		return nil, model.NewNotFoundError("履歴書ファイルが登録されていません。")
	}

	if f.api.SameOrigin(rawURL) {
		resp, err := f.api.Download(ctx, rawURL, f.maxSize)
		if err != nil {
			if errors.Is(err, apiclient.ErrResponseTooLarge) {
				return nil, model.NewResumeTooLargeError(f.maxSize)
			}
			return nil, err
		}
		return &File{
			Filename:    path.Base(rawURL),
			ContentType: resp.Header.Get("Content-Type"),
			Body:        resp.Body,
		}, nil
	}

	if err := f.guard.ValidateURL(rawURL); err != nil {
		f.logger.Warn("履歴書ファイルの取得先をブロックしました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBlockedURLError(err.Error())
	}
	return f.fetchExternal(ctx, rawURL)
}

// fetchExternal はSSRF防止付きのクライアントで外部ホストからファイルを取得する。
func (f *ResumeFetcher) fetchExternal(ctx context.Context, rawURL string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("履歴書ファイルの取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUnavailableError(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewNotFoundError(fmt.Sprintf("履歴書ファイルを取得できませんでした（ステータス %d）。", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, model.NewUnavailableError(0, err)
	}
	if int64(len(body)) > f.maxSize {
		return nil, model.NewResumeTooLargeError(f.maxSize)
	}

	return &File{
		Filename:    path.Base(req.URL.Path),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
