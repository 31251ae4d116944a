package model

import "time"

// JobType は求人の雇用形態を表す。
type JobType string

const (
	JobTypeInternship JobType = "internship"
	JobTypeFullTime   JobType = "full-time"
	JobTypePartTime   JobType = "part-time"
	JobTypeContract   JobType = "contract"
)

// JobTypes は画面の選択肢に使う雇用形態の一覧。
var JobTypes = []JobType{JobTypeInternship, JobTypeFullTime, JobTypePartTime, JobTypeContract}

// Valid はJobTypeが定義済みの値かどうかを返す。
func (t JobType) Valid() bool {
	switch t {
	case JobTypeInternship, JobTypeFullTime, JobTypePartTime, JobTypeContract:
		return true
	default:
		return false
	}
}

// Label は表示用のラベルを返す。未知の値はそのまま返す。
func (t JobType) Label() string {
	switch t {
	case JobTypeInternship:
		return "Internship"
	case JobTypeFullTime:
		return "Full-time"
	case JobTypePartTime:
		return "Part-time"
	case JobTypeContract:
		return "Contract"
	default:
		return string(t)
	}
}

// JobCategory は求人カテゴリを表す。
type JobCategory struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// Job は採用担当が掲載する求人を表す。
// Deadline はサーバーの日付形式（YYYY-MM-DD）のまま保持する。
type Job struct {
	ID                int64             `json:"id"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	CompanyName       string            `json:"company_name"`
	Role              string            `json:"role"`
	Location          string            `json:"location"`
	JobType           JobType           `json:"job_type"`
	Category          *JobCategory      `json:"category,omitempty"`
	SalaryRange       string            `json:"salary_range,omitempty"`
	PostedBy          *RecruiterProfile `json:"posted_by,omitempty"`
	DatePosted        *time.Time        `json:"date_posted,omitempty"`
	Deadline          *string           `json:"deadline,omitempty"`
	IsActive          bool              `json:"is_active"`
	IsClosed          bool              `json:"is_closed"`
	Requirements      string            `json:"requirements,omitempty"`
	Benefits          string            `json:"benefits,omitempty"`
	Tags              string            `json:"tags,omitempty"`
	ViewsCount        int               `json:"views_count"`
	ApplicationsCount int               `json:"applications_count"`
	IsBookmarked      bool              `json:"is_bookmarked"`

	// Summary は一覧表示用の説明文の抜粋。BFFが付与する。
	Summary string `json:"summary,omitempty"`
}

// JobInput は求人の作成・更新リクエストのボディ。
type JobInput struct {
	Title        string  `json:"title" validate:"required"`
	Description  string  `json:"description" validate:"required"`
	CompanyName  string  `json:"company_name" validate:"required"`
	Role         string  `json:"role" validate:"required"`
	Location     string  `json:"location" validate:"required"`
	JobType      JobType `json:"job_type" validate:"required,job_type"`
	CategoryID   *int64  `json:"category_id,omitempty"`
	SalaryRange  string  `json:"salary_range,omitempty"`
	Deadline     *string `json:"deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`
	IsActive     bool    `json:"is_active"`
	Requirements string  `json:"requirements,omitempty"`
	Benefits     string  `json:"benefits,omitempty"`
	Tags         string  `json:"tags,omitempty"`
}

// JobFilter は求人一覧の検索条件を表す。
// ゼロ値の項目はクエリに含めない。
type JobFilter struct {
	Page     int     `json:"page,omitempty"`
	Search   string  `json:"search,omitempty"`
	JobType  JobType `json:"job_type,omitempty"`
	Location string  `json:"location,omitempty"`
}

// Bookmark は学生が保存した求人への参照を表す。
type Bookmark struct {
	ID        int64      `json:"id"`
	Job       *Job       `json:"job"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Page はサーバー側ページネーションのレスポンスを表す。
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
