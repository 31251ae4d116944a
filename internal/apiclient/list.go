package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/jobboard/internal/model"
)

// GetList は一覧エンドポイントを呼び出し、要素のスライスを返す。
// サーバーの設定によって配列またはページネーション形式のどちらでも返るため、両方を受け付ける。
func GetList[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) ([]T, error) {
	page, err := GetPage[T](ctx, c, path, opts...)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

// GetPage はページネーション形式の一覧を取得する。
// 配列で返された場合は全件を1ページとして扱う。
func GetPage[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*model.Page[T], error) {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, "", opts...)
	if err != nil {
		return nil, err
	}
	return decodePage[T](resp.Body)
}

func decodePage[T any](body []byte) (*model.Page[T], error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &model.Page[T]{Results: []T{}}, nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, model.NewInternalError(fmt.Errorf("一覧レスポンスのパースに失敗しました: %w", err))
		}
		if items == nil {
			items = []T{}
		}
		return &model.Page[T]{Count: len(items), Results: items}, nil
	}

	var page model.Page[T]
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, model.NewInternalError(fmt.Errorf("ページレスポンスのパースに失敗しました: %w", err))
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	return &page, nil
}
