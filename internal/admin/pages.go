package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/jobboard/internal/listing"
	"github.com/hitoshi/jobboard/internal/model"
)

// UsersPage はユーザー管理画面の状態。全ユーザー、採用担当、学生の3つの一覧を保持する。
// いずれかの更新が成功すると3つの一覧をすべて取得し直す。
type UsersPage struct {
	svc        *Service
	confirmer  listing.Confirmer
	All        *listing.Collection[model.User]
	Recruiters *listing.Collection[model.User]
	Students   *listing.Collection[model.User]
}

// NewUsersPage はUsersPageを生成する。
func NewUsersPage(svc *Service, confirmer listing.Confirmer, logger *slog.Logger) *UsersPage {
	byRole := func(role model.Role) listing.Fetcher[model.User] {
		return func(ctx context.Context) ([]model.User, error) {
			return svc.ListUsers(ctx, role)
		}
	}
	return &UsersPage{
		svc:        svc,
		confirmer:  confirmer,
		All:        listing.NewCollection("admin_users", byRole(""), logger),
		Recruiters: listing.NewCollection("admin_recruiters", byRole(model.RoleRecruiter), logger),
		Students:   listing.NewCollection("admin_students", byRole(model.RoleStudent), logger),
	}
}

// Load は3つの一覧を並行して取得する。
func (p *UsersPage) Load(ctx context.Context) error {
	return listing.ReloadAll(ctx, p.All, p.Recruiters, p.Students)
}

// Approve は採用担当を承認する。承認は確認を求めない。
func (p *UsersPage) Approve(ctx context.Context, recruiterID int64) error {
	return listing.Mutate(ctx, func(ctx context.Context) error {
		_, err := p.svc.ApproveRecruiter(ctx, recruiterID)
		return err
	}, p.All, p.Recruiters, p.Students)
}

// Block は確認を得たうえで採用担当をブロックする。実行した場合はtrueを返す。
func (p *UsersPage) Block(ctx context.Context, recruiterID int64) (bool, error) {
	prompt := listing.NewPrompt(
		"Block Recruiter",
		"Are you sure you want to block this recruiter? They will not be able to post jobs.",
		listing.SeverityWarning,
	)
	return listing.ConfirmThen(ctx, p.confirmer, prompt, func(ctx context.Context) error {
		return listing.Mutate(ctx, func(ctx context.Context) error {
			_, err := p.svc.BlockRecruiter(ctx, recruiterID)
			return err
		}, p.All, p.Recruiters, p.Students)
	})
}

// Delete は確認を得たうえでユーザーを削除する。実行した場合はtrueを返す。
// 管理者およびスタッフは確認を求める前に拒否する。
func (p *UsersPage) Delete(ctx context.Context, u *model.User) (bool, error) {
	if !CanDeleteUser(u) {
		return false, model.NewAdminDeletionError()
	}
	prompt := listing.NewPrompt(
		"Delete User",
		fmt.Sprintf("Are you sure you want to delete user %q? This action cannot be undone.", u.Username),
		listing.SeverityError,
	)
	return listing.ConfirmThen(ctx, p.confirmer, prompt, func(ctx context.Context) error {
		return listing.Mutate(ctx, func(ctx context.Context) error {
			return p.svc.DeleteUser(ctx, u)
		}, p.All, p.Recruiters, p.Students)
	})
}

// FindUser は読み込み済みの全ユーザー一覧からIDで検索する。
func (p *UsersPage) FindUser(id int64) (*model.User, bool) {
	for _, u := range p.All.Items() {
		if u.ID == id {
			return &u, true
		}
	}
	return nil, false
}

// UserRow はユーザー一覧の1行。CanDeleteは画面で削除操作を出すかどうか。
type UserRow struct {
	model.User
	CanDelete bool `json:"can_delete"`
}

// UsersView はユーザー管理画面の表示データ。各一覧は絞り込み済み。
type UsersView struct {
	All        []UserRow `json:"all"`
	Recruiters []UserRow `json:"recruiters"`
	Students   []UserRow `json:"students"`
	Error      string    `json:"error,omitempty"`
}

// View は読み込み済みの一覧をqueryで絞り込んで返す。
// 取得に失敗した一覧は空になり、最初のエラーをErrorに入れる。
func (p *UsersPage) View(query string) UsersView {
	v := UsersView{
		All:        NewUserRows(p.All.Filter(query, UserFields)),
		Recruiters: NewUserRows(p.Recruiters.Filter(query, UserFields)),
		Students:   NewUserRows(p.Students.Filter(query, UserFields)),
	}
	for _, c := range []*listing.Collection[model.User]{p.All, p.Recruiters, p.Students} {
		if err := c.Err(); err != nil {
			v.Error = model.UserMessage(err)
			break
		}
	}
	return v
}

// NewUserRows はユーザーごとに削除可否を付けた行を返す。
func NewUserRows(users []model.User) []UserRow {
	rows := make([]UserRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, UserRow{User: u, CanDelete: CanDeleteUser(&u)})
	}
	return rows
}

// UserFields はユーザー一覧の絞り込み対象の項目を返す。
func UserFields(u model.User) []string {
	fields := []string{u.Username, u.Email}
	if u.RecruiterProfile != nil {
		fields = append(fields, u.RecruiterProfile.CompanyName)
	}
	return fields
}

// JobsPage は求人管理画面の状態。
type JobsPage struct {
	svc       *Service
	confirmer listing.Confirmer
	Jobs      *listing.Collection[model.Job]
}

// NewJobsPage はJobsPageを生成する。
func NewJobsPage(svc *Service, confirmer listing.Confirmer, logger *slog.Logger) *JobsPage {
	return &JobsPage{
		svc:       svc,
		confirmer: confirmer,
		Jobs:      listing.NewCollection("admin_jobs", svc.ListJobs, logger),
	}
}

// Load は求人一覧を取得する。
func (p *JobsPage) Load(ctx context.Context) []model.Job {
	return p.Jobs.Load(ctx)
}

// Delete は確認を得たうえで求人を削除し、一覧を取得し直す。
func (p *JobsPage) Delete(ctx context.Context, jobID int64) (bool, error) {
	title := fmt.Sprintf("job #%d", jobID)
	for _, j := range p.Jobs.Items() {
		if j.ID == jobID {
			title = fmt.Sprintf("%q", j.Title)
			break
		}
	}
	prompt := listing.NewPrompt(
		"Delete Job",
		fmt.Sprintf("Are you sure you want to delete %s? This action cannot be undone.", title),
		listing.SeverityError,
	)
	return listing.ConfirmThen(ctx, p.confirmer, prompt, func(ctx context.Context) error {
		return listing.Mutate(ctx, func(ctx context.Context) error {
			return p.svc.DeleteJob(ctx, jobID)
		}, p.Jobs)
	})
}

// View は読み込み済みの求人一覧をqueryで絞り込んで返す。
func (p *JobsPage) View(query string) []model.Job {
	return p.Jobs.Filter(query, JobFields)
}

// JobFields は求人一覧の絞り込み対象の項目を返す。
func JobFields(j model.Job) []string {
	return []string{j.Title, j.CompanyName, j.Location}
}
