package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobboard/internal/middleware"
	"github.com/hitoshi/jobboard/internal/model"
)

// maxJSONBody はJSONリクエストボディの上限。
const maxJSONBody = 1 << 20

// writeJSON はステータスとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをvに読み込む。空のボディはゼロ値のまま受け付ける。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return invalidRequestError()
	}
	return nil
}

func invalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeValidation,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: model.CategoryValidation,
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// pathID はURLパラメータを正の整数IDとして読み取る。
func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("IDの形式が正しくありません。", nil)
	}
	return id, nil
}

// writeServiceError はサービス層のエラーを記録してから統一フォーマットで返す。
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	level := slog.LevelWarn
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Category == model.CategorySystem {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "リクエストの処理に失敗しました",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteAPIError(w, err)
}

// writeConfirmed は確認付き操作の結果を書き込む。
// 確認が得られなかった場合は409で確認ダイアログを返し、実行した場合はonDoneに委ねる。
func writeConfirmed(w http.ResponseWriter, r *http.Request, done bool, err error, onDone func()) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !done {
		if p, ok := middleware.PendingPrompt(r.Context()); ok {
			middleware.WriteConfirmationRequired(w, p)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	onDone()
}

// currentUser はルートガードを通過したリクエストのユーザーを返す。
func currentUser(r *http.Request) *model.User {
	return middleware.UserFromContext(r.Context())
}
