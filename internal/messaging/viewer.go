package messaging

import (
	"fmt"

	"github.com/hitoshi/jobboard/internal/model"
)

// viewer は閲覧者の役割ごとに異なる振る舞いをまとめたもの。
// 会話の相手の決め方、表示名、送信リクエストの組み立て方が役割で異なる。
type viewer struct {
	role model.Role

	// counterpart は会話における相手のプロフィールIDを返す。
	counterpart func(c model.Conversation) int64

	// label は会話一覧に表示する相手の名前を返す。
	label func(c model.Conversation) string

	// canStart は相手を指定して新しい会話を始められるかどうか。
	canStart bool
}

func viewerFor(role model.Role) (viewer, error) {
	switch role {
	case model.RoleRecruiter:
		return viewer{
			role:        role,
			counterpart: func(c model.Conversation) int64 { return c.Student },
			label:       StudentLabel,
			canStart:    true,
		}, nil
	case model.RoleStudent:
		return viewer{
			role:        role,
			counterpart: func(c model.Conversation) int64 { return c.Recruiter },
			label:       RecruiterLabel,
		}, nil
	default:
		return viewer{}, fmt.Errorf("メッセージ機能を利用できない役割です: %q", role)
	}
}

// request は送信先と本文から送信リクエストを組み立てる。
// 採用担当は常に学生IDを、学生は会話IDを指定する。
func (v viewer) request(t Target, content string) model.MessageRequest {
	req := model.MessageRequest{Content: content}
	switch t := t.(type) {
	case ToConversation:
		if v.role == model.RoleRecruiter {
			req.StudentID = &t.StudentID
		} else {
			req.ConversationID = &t.ID
		}
	case ToCounterpart:
		req.StudentID = &t.StudentID
	}
	return req
}

// StudentLabel は採用担当から見た相手（学生）の表示名を返す。
// 姓名の両方があれば姓名、なければユーザー名、どちらもなければ "Student"。
func StudentLabel(c model.Conversation) string {
	p := c.StudentProfile
	if p != nil && p.FirstName != "" && p.LastName != "" {
		return p.FullName()
	}
	if p != nil && p.User != nil && p.User.Username != "" {
		return p.User.Username
	}
	return "Student"
}

// RecruiterLabel は学生から見た相手（採用担当）の表示名を返す。
func RecruiterLabel(c model.Conversation) string {
	p := c.RecruiterProfile
	if p != nil && p.CompanyName != "" {
		return p.CompanyName
	}
	if p != nil && p.User != nil && p.User.Username != "" {
		return p.User.Username
	}
	return "Recruiter"
}
