package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/jobboard/internal/listing"
	"github.com/hitoshi/jobboard/internal/model"
)

// MyJobsPage は採用担当の掲載求人一覧画面の状態。
type MyJobsPage struct {
	svc       *Service
	confirmer listing.Confirmer
	Jobs      *listing.Collection[model.Job]
}

// NewMyJobsPage はMyJobsPageを生成する。
func NewMyJobsPage(svc *Service, confirmer listing.Confirmer, logger *slog.Logger) *MyJobsPage {
	return &MyJobsPage{
		svc:       svc,
		confirmer: confirmer,
		Jobs:      listing.NewCollection("my_jobs", svc.MyJobs, logger),
	}
}

// Load は掲載求人の一覧を取得する。
func (p *MyJobsPage) Load(ctx context.Context) []model.Job {
	return p.Jobs.Load(ctx)
}

// Delete は確認を得たうえで求人を削除し、一覧を取得し直す。実行した場合はtrueを返す。
func (p *MyJobsPage) Delete(ctx context.Context, jobID int64) (bool, error) {
	title := fmt.Sprintf("job #%d", jobID)
	for _, j := range p.Jobs.Items() {
		if j.ID == jobID {
			title = fmt.Sprintf("%q", j.Title)
			break
		}
	}
	prompt := listing.NewPrompt(
		"Delete Job",
		fmt.Sprintf("Are you sure you want to delete %s? Applications for this job will also be removed.", title),
		listing.SeverityError,
	)
	return listing.ConfirmThen(ctx, p.confirmer, prompt, func(ctx context.Context) error {
		return listing.Mutate(ctx, func(ctx context.Context) error {
			return p.svc.Delete(ctx, jobID)
		}, p.Jobs)
	})
}

// Items は読み込み済みの掲載求人を返す。
func (p *MyJobsPage) Items() []model.Job {
	return p.Jobs.Items()
}
