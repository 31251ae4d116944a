// Package session はクライアント側に永続化するセッション情報の保存先を提供する。
// 保存するのはアクセストークン、リフレッシュトークン、ユーザー情報のスナップショットの3つのキーのみ。
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// 永続化するキー
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// Keys はセッションとして保存する全キー。ログアウト時にまとめて削除する。
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Storage はキーバリュー形式のセッション保存先のインターフェース。
// 複数キーの書き込みと削除はそれぞれ1回の操作として反映される。
type Storage interface {
	// Get はキーの値を返す。未設定の場合は空文字列を返す。
	Get(key string) (string, error)
	// Set は複数のキーをまとめて書き込む。
	Set(values map[string]string) error
	// Delete は指定したキーをまとめて削除する。
	Delete(keys ...string) error
}

// FileStorage はJSONファイルにセッションを保存するStorage実装。
// 書き込みは一時ファイルへの書き出しとリネームで行い、途中状態のファイルを残さない。
type FileStorage struct {
	path string
	mu   sync.Mutex
}

// NewFileStorage はFileStorageを生成する。ファイルは最初の書き込み時に作成される。
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path は保存先ファイルのパスを返す。
func (s *FileStorage) Path() string {
	return s.path
}

// Get はキーの値を返す。
func (s *FileStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// Set は複数のキーをまとめて書き込む。
func (s *FileStorage) Set(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		// 壊れたファイルは上書きする
		current = make(map[string]string)
	}
	for k, v := range values {
		current[k] = v
	}
	return s.save(current)
}

// Delete は指定したキーをまとめて削除する。
// すべてのキーが消えた場合はファイル自体を削除する。
func (s *FileStorage) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		current = make(map[string]string)
	}
	for _, k := range keys {
		delete(current, k)
	}
	if len(current) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("セッションファイルの削除に失敗しました: %w", err)
		}
		return nil
	}
	return s.save(current)
}

func (s *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションファイルの読み込みに失敗しました: %w", err)
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("セッションファイルのパースに失敗しました: %w", err)
	}
	return values, nil
}

func (s *FileStorage) save(values map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("セッションディレクトリの作成に失敗しました: %w", err)
	}

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("セッションのシリアライズに失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("一時ファイルの権限設定に失敗しました: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("一時ファイルへの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("セッションファイルの置き換えに失敗しました: %w", err)
	}
	return nil
}

// MemoryStorage はメモリ上にセッションを保持するStorage実装。
// テストとセッションを残さない実行モードで使用する。
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Get はキーの値を返す。
func (s *MemoryStorage) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

// Set は複数のキーをまとめて書き込む。
func (s *MemoryStorage) Set(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

// Delete は指定したキーをまとめて削除する。
func (s *MemoryStorage) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Len は保持しているキーの数を返す。
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
