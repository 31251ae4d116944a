package messaging

import (
	"bytes"
	"encoding/json"

	"github.com/hitoshi/jobboard/internal/model"
)

// conversationList は会話一覧のレスポンス。配列とページ形式のどちらも受け付ける。
type conversationList []model.Conversation

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (l *conversationList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []model.Conversation
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}

	var page model.Page[model.Conversation]
	if err := json.Unmarshal(b, &page); err != nil {
		return err
	}
	*l = page.Results
	return nil
}
