package listing

// PageSize はサーバー側ページネーションの1ページあたりの件数。
const PageSize = 10

// TotalPages は総件数からページ数を計算する。
// ceil(count / pageSize) で、0件でも1ページとする。pageSizeが0以下の場合は PageSize を使う。
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	if count <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

// Pagination は一覧画面のページ情報。
type Pagination struct {
	Page       int  `json:"page"`
	TotalPages int  `json:"total_pages"`
	Count      int  `json:"count"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_previous"`
}

// NewPagination は現在のページと総件数からページ情報を生成する。
// pageは1からTotalPagesの範囲に丸める。
func NewPagination(page, count, pageSize int) Pagination {
	total := TotalPages(count, pageSize)
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	return Pagination{
		Page:       page,
		TotalPages: total,
		Count:      count,
		HasNext:    page < total,
		HasPrev:    page > 1,
	}
}
