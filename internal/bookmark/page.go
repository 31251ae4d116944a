package bookmark

import (
	"context"
	"log/slog"

	"github.com/hitoshi/jobboard/internal/listing"
	"github.com/hitoshi/jobboard/internal/model"
)

// Page はブックマーク一覧画面の状態。
// 削除は一覧から先に取り除き、失敗した場合は元に戻す。
type Page struct {
	svc       *Service
	Bookmarks *listing.Collection[model.Bookmark]
}

// NewPage はPageを生成する。
func NewPage(svc *Service, logger *slog.Logger) *Page {
	return &Page{
		svc:       svc,
		Bookmarks: listing.NewCollection("bookmarks", svc.List, logger),
	}
}

// Load はブックマーク一覧を取得する。
func (p *Page) Load(ctx context.Context) []model.Bookmark {
	return p.Bookmarks.Load(ctx)
}

// Remove はブックマークを削除する。
func (p *Page) Remove(ctx context.Context, bookmarkID int64) error {
	return listing.Optimistic(ctx, p.Bookmarks, func(items []model.Bookmark) []model.Bookmark {
		out := items[:0]
		for _, b := range items {
			if b.ID != bookmarkID {
				out = append(out, b)
			}
		}
		return out
	}, func(ctx context.Context) error {
		return p.svc.Remove(ctx, bookmarkID)
	})
}

// View は読み込み済みの一覧をqueryで絞り込んで返す。
func (p *Page) View(query string) []model.Bookmark {
	return p.Bookmarks.Filter(query, bookmarkFields)
}

func bookmarkFields(b model.Bookmark) []string {
	if b.Job == nil {
		return nil
	}
	return []string{b.Job.Title, b.Job.CompanyName, b.Job.Location}
}
