package listing

import "context"

// 確認ダイアログの重要度
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
	SeverityInfo    = "info"
)

// Prompt は確認ダイアログの内容。対象の種類に依存しない汎用の形式。
type Prompt struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	ConfirmText string `json:"confirm_text"`
	CancelText  string `json:"cancel_text"`
	Severity    string `json:"severity"`
}

// NewPrompt はボタン文言を既定値にしたPromptを生成する。
func NewPrompt(title, message, severity string) Prompt {
	if severity == "" {
		severity = SeverityWarning
	}
	return Prompt{
		Title:       title,
		Message:     message,
		ConfirmText: "Confirm",
		CancelText:  "Cancel",
		Severity:    severity,
	}
}

// Confirmer は利用者に確認を求めるインターフェース。
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmerFunc は関数をConfirmerとして扱うためのアダプタ。
type ConfirmerFunc func(ctx context.Context, p Prompt) (bool, error)

// Confirm はConfirmerを実装する。
func (f ConfirmerFunc) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// ConfirmThen は確認が得られた場合のみactionを実行する。
// 実行した場合はtrueを返す。確認が得られなければリクエストは発生しない。
func ConfirmThen(ctx context.Context, c Confirmer, p Prompt, action func(ctx context.Context) error) (bool, error) {
	ok, err := c.Confirm(ctx, p)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return true, action(ctx)
}
