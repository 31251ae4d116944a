package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorage_SetAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileStorage(path)

	err := s.Set(map[string]string{
		KeyAccessToken:  "access-1",
		KeyRefreshToken: "refresh-1",
		KeyUser:         `{"id":1}`,
	})
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := s.Get(KeyAccessToken)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "access-1" {
		t.Errorf("Get(accessToken) = %q, want %q", got, "access-1")
	}

	// 別インスタンスからも読めること（永続化の確認）
	other := NewFileStorage(path)
	user, err := other.Get(KeyUser)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if user != `{"id":1}` {
		t.Errorf("Get(user) = %q, want %q", user, `{"id":1}`)
	}
}

func TestFileStorage_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileStorage(path)

	if err := s.Set(map[string]string{KeyAccessToken: "secret"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want %o", perm, 0o600)
	}
}

func TestFileStorage_GetMissingFile_ReturnsEmpty(t *testing.T) {
	s := NewFileStorage(filepath.Join(t.TempDir(), "none.json"))

	got, err := s.Get(KeyUser)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "" {
		t.Errorf("Get() = %q, want empty", got)
	}
}

func TestFileStorage_DeleteAllKeys_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileStorage(path)

	if err := s.Set(map[string]string{KeyAccessToken: "a", KeyRefreshToken: "r", KeyUser: "u"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Delete(Keys...); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("session file should be removed after clearing all keys, stat err = %v", err)
	}
	for _, k := range Keys {
		if v, _ := s.Get(k); v != "" {
			t.Errorf("Get(%s) = %q after Delete, want empty", k, v)
		}
	}
}

func TestFileStorage_DeleteSomeKeys_KeepsOthers(t *testing.T) {
	s := NewFileStorage(filepath.Join(t.TempDir(), "session.json"))

	if err := s.Set(map[string]string{KeyAccessToken: "a", KeyUser: "u"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Delete(KeyAccessToken); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if v, _ := s.Get(KeyUser); v != "u" {
		t.Errorf("Get(user) = %q, want %q", v, "u")
	}
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	s := NewFileStorage(path)

	if _, err := s.Get(KeyUser); err == nil {
		t.Error("expected error for corrupt session file, got nil")
	}

	// 書き込みで壊れたファイルを置き換えられること
	if err := s.Set(map[string]string{KeyUser: "u"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, err := s.Get(KeyUser); err != nil || v != "u" {
		t.Errorf("Get(user) = %q, %v, want %q, nil", v, err, "u")
	}
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()

	if err := s.Set(map[string]string{KeyAccessToken: "a", KeyUser: "u"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if err := s.Delete(Keys...); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Delete, want 0", s.Len())
	}
}
