package messaging

// Target はメッセージの送信先。ToConversation か ToCounterpart のいずれか。
type Target interface {
	target()
}

// ToConversation は既存の会話への送信。StudentID は会話の学生プロフィールID。
type ToConversation struct {
	ID        int64
	StudentID int64
}

// ToCounterpart は会話がまだない相手への送信。サーバー側で会話が作成される。
type ToCounterpart struct {
	StudentID int64
}

func (ToConversation) target() {}
func (ToCounterpart) target()  {}
