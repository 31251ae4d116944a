package model

import "time"

// ApplicationStatus は応募の選考状態を表す。
// 遷移は採用担当のみが行い、学生は参照のみ。
type ApplicationStatus string

const (
	ApplicationStatusApplied  ApplicationStatus = "applied"
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Valid はApplicationStatusが定義済みの値かどうかを返す。
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusApplied, ApplicationStatusAccepted, ApplicationStatusRejected:
		return true
	default:
		return false
	}
}

// Color は状態バッジの表示色を返す。
func (s ApplicationStatus) Color() string {
	switch s {
	case ApplicationStatusApplied:
		return "info"
	case ApplicationStatusAccepted:
		return "success"
	case ApplicationStatusRejected:
		return "error"
	default:
		return "default"
	}
}

// Application は学生による求人への応募を表す。
// 学生と求人の組ごとに最大1件。
type Application struct {
	ID             int64             `json:"id"`
	Job            *Job              `json:"job"`
	Student        *StudentProfile   `json:"student,omitempty"`
	Resume         string            `json:"resume"`
	CoverLetter    string            `json:"cover_letter,omitempty"`
	Status         ApplicationStatus `json:"status"`
	AppliedDate    *time.Time        `json:"applied_date,omitempty"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`
	RecruiterNotes string            `json:"recruiter_notes,omitempty"`
}

// StatusUpdate は応募状態更新リクエストのボディ。
type StatusUpdate struct {
	Status         ApplicationStatus `json:"status" validate:"required,application_status"`
	RecruiterNotes string            `json:"recruiter_notes"`
}
