// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。サインアップ後は変更されない。
type Role string

const (
	// RoleStudent は求職者（学生）を表す。
	RoleStudent Role = "student"
	// RoleRecruiter は求人掲載者（採用担当）を表す。
	RoleRecruiter Role = "recruiter"
	// RoleAdmin は管理者を表す。
	RoleAdmin Role = "admin"
)

// Valid はRoleが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleRecruiter, RoleAdmin:
		return true
	default:
		return false
	}
}

// RecruiterSummary はユーザーに付随する採用担当プロフィールの要約。
// /auth/user/ では承認状態のみ、管理者向け一覧では会社名も含まれる。
type RecruiterSummary struct {
	ID          int64  `json:"id,omitempty"`
	IsApproved  bool   `json:"is_approved"`
	CompanyName string `json:"company_name,omitempty"`
}

// StudentSummary はユーザーに付随する学生プロフィールの要約。
type StudentSummary struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID               int64             `json:"id"`
	Username         string            `json:"username"`
	Email            string            `json:"email"`
	Role             Role              `json:"role"`
	PhoneNumber      string            `json:"phone_number,omitempty"`
	DateJoined       *time.Time        `json:"date_joined,omitempty"`
	IsStaff          bool              `json:"is_staff,omitempty"`
	RecruiterProfile *RecruiterSummary `json:"recruiter_profile,omitempty"`
	StudentProfile   *StudentSummary   `json:"student_profile,omitempty"`
}

// IsStudent はユーザーが学生かどうかを返す。nilは未認証として扱う。
func (u *User) IsStudent() bool {
	return u != nil && u.Role == RoleStudent
}

// IsRecruiter はユーザーが採用担当かどうかを返す。
func (u *User) IsRecruiter() bool {
	return u != nil && u.Role == RoleRecruiter
}

// IsAdmin はユーザーが管理者かどうかを返す。
// roleがadminであるか、スタッフフラグが立っていれば管理者とみなす。
func (u *User) IsAdmin() bool {
	return u != nil && (u.Role == RoleAdmin || u.IsStaff)
}

// IsApproved は採用担当が管理者に承認済みかどうかを返す。
// 採用担当以外は常にfalse。
func (u *User) IsApproved() bool {
	return u.IsRecruiter() && u.RecruiterProfile != nil && u.RecruiterProfile.IsApproved
}

// DashboardPath はユーザー自身のダッシュボードのパスを返す。
// 学生、採用担当、管理者の順に判定し、いずれでもなければ "/" を返す。
func (u *User) DashboardPath() string {
	switch {
	case u.IsStudent():
		return "/student/dashboard"
	case u.IsRecruiter():
		return "/recruiter/dashboard"
	case u.IsAdmin():
		return "/admin/dashboard"
	default:
		return "/"
	}
}

// StudentProfile は学生のプロフィールを表す。
type StudentProfile struct {
	ID             int64      `json:"id"`
	User           *User      `json:"user,omitempty"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Bio            string     `json:"bio"`
	Skills         string     `json:"skills"`
	Education      string     `json:"education"`
	Experience     string     `json:"experience"`
	Location       string     `json:"location"`
	ProfilePicture *string    `json:"profile_picture,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// FullName は姓名を連結した表示名を返す。
func (p *StudentProfile) FullName() string {
	if p == nil {
		return ""
	}
	return joinName(p.FirstName, p.LastName)
}

// RecruiterProfile は採用担当のプロフィールを表す。
// IsApproved はサーバー側で管理される読み取り専用フラグ。
type RecruiterProfile struct {
	ID                 int64      `json:"id"`
	User               *User      `json:"user,omitempty"`
	CompanyName        string     `json:"company_name"`
	CompanyDescription string     `json:"company_description"`
	CompanyWebsite     *string    `json:"company_website"`
	CompanyLogo        *string    `json:"company_logo,omitempty"`
	Location           string     `json:"location"`
	IsApproved         bool       `json:"is_approved"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

// StudentProfileUpdate は学生プロフィール更新リクエストのボディ。
type StudentProfileUpdate struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Bio        string `json:"bio"`
	Skills     string `json:"skills"`
	Education  string `json:"education"`
	Experience string `json:"experience"`
	Location   string `json:"location"`
}

// RecruiterProfileUpdate は採用担当プロフィール更新リクエストのボディ。
type RecruiterProfileUpdate struct {
	CompanyName        string `json:"company_name" validate:"required"`
	CompanyDescription string `json:"company_description"`
	CompanyWebsite     string `json:"company_website" validate:"omitempty,url"`
	Location           string `json:"location"`
}

// SignupRequest はサインアップリクエストのボディ。
// 共通項目に加え、roleに応じて学生または採用担当の項目が必須となる。
type SignupRequest struct {
	Role        Role   `json:"-" validate:"required,user_role"`
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	Password2   string `json:"password2" validate:"required"`
	PhoneNumber string `json:"phone_number,omitempty"`

	// 学生
	FirstName  string `json:"first_name,omitempty" validate:"required_if=Role student"`
	LastName   string `json:"last_name,omitempty" validate:"required_if=Role student"`
	Bio        string `json:"bio,omitempty"`
	Skills     string `json:"skills,omitempty"`
	Education  string `json:"education,omitempty"`
	Experience string `json:"experience,omitempty"`

	// 採用担当
	CompanyName        string `json:"company_name,omitempty" validate:"required_if=Role recruiter"`
	CompanyDescription string `json:"company_description,omitempty"`
	CompanyWebsite     string `json:"company_website,omitempty"`

	Location string `json:"location,omitempty"`
}

// AuthResult はログイン・サインアップ成功時のサーバーペイロード。
type AuthResult struct {
	User      *User             `json:"user"`
	Access    string            `json:"access"`
	Refresh   string            `json:"refresh"`
	Student   *StudentProfile   `json:"student,omitempty"`
	Recruiter *RecruiterProfile `json:"recruiter,omitempty"`
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
