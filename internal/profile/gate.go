package profile

import "github.com/hitoshi/jobboard/internal/model"

// Gate は求人掲載操作の可否と、不可の場合の案内。
type Gate struct {
	CanPost bool   `json:"can_post"`
	Message string `json:"message,omitempty"`
	Action  string `json:"action,omitempty"`
}

// PostingGate はユーザーが求人を掲載できるかを判定する。
// 採用担当以外、または管理者の承認前の採用担当は掲載できない。
func PostingGate(user *model.User) Gate {
	if user.IsApproved() {
		return Gate{CanPost: true}
	}
	if !user.IsRecruiter() {
		return Gate{Message: "求人を掲載できるのは採用担当のみです。"}
	}
	e := model.NewNotApprovedError()
	return Gate{Message: e.Message, Action: e.Action}
}
