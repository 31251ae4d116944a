package model

import "time"

// Conversation は学生1名と採用担当1名の間の会話を表す。
// Student と Recruiter はそれぞれのプロフィールIDを保持する。
type Conversation struct {
	ID               int64             `json:"id"`
	Recruiter        int64             `json:"recruiter"`
	RecruiterProfile *RecruiterProfile `json:"recruiter_profile,omitempty"`
	Student          int64             `json:"student"`
	StudentProfile   *StudentProfile   `json:"student_profile,omitempty"`
	LastMessage      *LastMessage      `json:"last_message"`
	UnreadCount      int               `json:"unread_count"`
	CreatedAt        *time.Time        `json:"created_at,omitempty"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
}

// LastMessage は会話一覧に表示する最新メッセージのプレビュー。
// Content はサーバー側で100文字に切り詰められている場合がある。
type LastMessage struct {
	Content   string     `json:"content"`
	Sender    string     `json:"sender"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ConversationDetail は会話とそのメッセージスレッドを表す。
// Messages は作成日時の昇順。
type ConversationDetail struct {
	ID               int64             `json:"id"`
	Recruiter        int64             `json:"recruiter"`
	RecruiterProfile *RecruiterProfile `json:"recruiter_profile,omitempty"`
	Student          int64             `json:"student"`
	StudentProfile   *StudentProfile   `json:"student_profile,omitempty"`
	Messages         []Message         `json:"messages"`
	CreatedAt        *time.Time        `json:"created_at,omitempty"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
}

// Message は会話内の1件のメッセージを表す。作成後は変更されない。
type Message struct {
	ID           int64      `json:"id"`
	Conversation int64      `json:"conversation"`
	Sender       int64      `json:"sender"`
	SenderName   string     `json:"sender_name"`
	SenderRole   Role       `json:"sender_role"`
	Content      string     `json:"content"`
	IsRead       bool       `json:"is_read"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// MessageRequest はメッセージ送信リクエストのボディ。
// 学生は ConversationID、採用担当は StudentID を指定する。
type MessageRequest struct {
	ConversationID *int64 `json:"conversation_id,omitempty"`
	StudentID      *int64 `json:"student_id,omitempty"`
	Content        string `json:"content"`
}
