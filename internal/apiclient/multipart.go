package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// FormFile はmultipartで送信するファイル。
type FormFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

// FormField はmultipartで送信するテキスト項目。
type FormField struct {
	Name  string
	Value string
}

// PostMultipart はmultipart/form-dataでPOSTリクエストを送信する。
// 再送に備えてボディはメモリ上に組み立てる。
func (c *Client) PostMultipart(ctx context.Context, path string, fields []FormField, files []FormFile, out any, opts ...RequestOption) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return fmt.Errorf("フォーム項目の書き込みに失敗しました: %w", err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return fmt.Errorf("フォームファイルの作成に失敗しました: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("ファイル内容の書き込みに失敗しました: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("multipartボディの組み立てに失敗しました: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, path, buf.Bytes(), w.FormDataContentType(), opts...)
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// Download は同一オリジンのファイルを認証付きで取得する。
// limitバイトを超える場合はエラーを返す。
func (c *Client) Download(ctx context.Context, path string, limit int64) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, "", WithMaxResponseSize(limit))
}
