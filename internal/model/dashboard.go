package model

// StatusCount は状態ごとの件数集計を表す。
type StatusCount struct {
	Status ApplicationStatus `json:"status"`
	Count  int               `json:"count"`
}

// StatusSummary は学生ダッシュボードの状態別件数。
type StatusSummary struct {
	Applied  int `json:"applied"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// StudentDashboard は学生向けの集計情報。
type StudentDashboard struct {
	TotalApplications  int           `json:"total_applications"`
	StatusSummary      StatusSummary `json:"status_summary"`
	RecentApplications []Application `json:"recent_applications"`
}

// RecruiterDashboard は採用担当向けの集計情報。
type RecruiterDashboard struct {
	TotalJobs            int               `json:"total_jobs"`
	ActiveJobs           int               `json:"active_jobs"`
	TotalApplications    int               `json:"total_applications"`
	ApplicationsByStatus []StatusCount     `json:"applications_by_status"`
	RecentJobs           []Job             `json:"recent_jobs"`
	RecentApplications   []Application     `json:"recent_applications"`
	RecruiterProfile     *RecruiterSummary `json:"recruiter_profile,omitempty"`
}

// AdminDashboard は管理者向けの集計情報。
type AdminDashboard struct {
	Users struct {
		Total             int `json:"total"`
		Students          int `json:"students"`
		Recruiters        int `json:"recruiters"`
		PendingRecruiters int `json:"pending_recruiters"`
		Growth30Days      int `json:"growth_30_days"`
	} `json:"users"`
	Jobs struct {
		Total        int `json:"total"`
		Active       int `json:"active"`
		Growth30Days int `json:"growth_30_days"`
	} `json:"jobs"`
	Applications struct {
		Total        int           `json:"total"`
		ByStatus     []StatusCount `json:"by_status"`
		Growth30Days int           `json:"growth_30_days"`
	} `json:"applications"`
	TopCategories []JobCategory `json:"top_categories"`
}
