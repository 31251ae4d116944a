// Package listing は一覧・詳細画面に共通するデータ取得の振る舞いを提供する。
// 取得失敗時の空表示、クライアント側の絞り込み、更新後の再取得、楽観的更新と
// ロールバック、破壊的操作の確認、ページ数の計算を扱う。
package listing

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Fetcher は一覧を取得する関数。
type Fetcher[T any] func(ctx context.Context) ([]T, error)

// Reloader は再取得可能な一覧のインターフェース。
type Reloader interface {
	Reload(ctx context.Context) error
}

// Collection はサーバーから取得した一覧のメモリ上のコピー。
// 取得に失敗した場合は空の一覧として扱い、エラーは Err で参照できる。
type Collection[T any] struct {
	name   string
	fetch  Fetcher[T]
	logger *slog.Logger

	mu     sync.RWMutex
	items  []T
	err    error
	loaded bool
}

// NewCollection はCollectionを生成する。nameはログに使用する。
func NewCollection[T any](name string, fetch Fetcher[T], logger *slog.Logger) *Collection[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection[T]{
		name:   name,
		fetch:  fetch,
		logger: logger,
		items:  []T{},
	}
}

// Load は一覧を取得して保持し、そのコピーを返す。
// 失敗した場合はログに記録し、空の一覧を返す。
func (c *Collection[T]) Load(ctx context.Context) []T {
	items, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("一覧の取得に失敗しました",
			slog.String("collection", c.name),
			slog.String("error", err.Error()),
		)
		items = []T{}
	}
	if items == nil {
		items = []T{}
	}

	c.mu.Lock()
	c.items = items
	c.err = err
	c.loaded = true
	c.mu.Unlock()

	return c.Items()
}

// Reload は一覧を取得し直す。取得失敗は空表示で吸収するため、常にnilを返す。
func (c *Collection[T]) Reload(ctx context.Context) error {
	c.Load(ctx)
	return nil
}

// Items は保持している一覧のコピーを返す。
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Err は直近の取得エラーを返す。成功時はnil。
func (c *Collection[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Loaded は1回以上取得済みかどうかを返す。
func (c *Collection[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Patch は保持している一覧を関数で置き換え、置き換え前の一覧を返す。
func (c *Collection[T]) Patch(fn func([]T) []T) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := make([]T, len(c.items))
	copy(prev, c.items)
	next := fn(append([]T(nil), c.items...))
	if next == nil {
		next = []T{}
	}
	c.items = next
	return prev
}

// Filter は保持している一覧をクエリで絞り込む。
func (c *Collection[T]) Filter(query string, fields func(T) []string) []T {
	return FilterItems(c.Items(), query, fields)
}

// FilterItems はfieldsが返す値のいずれかにqueryを含む要素を返す。
// 大文字小文字は区別しない。queryが空の場合はすべて返す。
func FilterItems[T any](items []T, query string, fields func(T) []string) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		for _, f := range fields(item) {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// Mutate は更新処理の完了を待ってから、影響する一覧を並行して取得し直す。
// 更新処理が失敗した場合は再取得せずにエラーを返す。
func Mutate(ctx context.Context, mutation func(ctx context.Context) error, affected ...Reloader) error {
	if err := mutation(ctx); err != nil {
		return err
	}
	return ReloadAll(ctx, affected...)
}

// ReloadAll は複数の一覧を並行して取得し直す。
func ReloadAll(ctx context.Context, targets ...Reloader) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range targets {
		g.Go(func() error {
			return r.Reload(gctx)
		})
	}
	return g.Wait()
}

// Optimistic は一覧に先に変更を反映してから更新処理を行う。
// 更新処理が失敗した場合は変更前の一覧に戻してエラーを返す。
func Optimistic[T any](ctx context.Context, c *Collection[T], patch func([]T) []T, commit func(ctx context.Context) error) error {
	prev := c.Patch(patch)
	if err := commit(ctx); err != nil {
		c.Patch(func([]T) []T { return prev })
		c.logger.Warn("更新に失敗したため変更を取り消しました",
			slog.String("collection", c.name),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
