package bookmark

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/jobboard/internal/apiclient"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newTestService(t *testing.T, h http.HandlerFunc) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.Method + " " + r.URL.Path)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := apiclient.New(apiclient.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, nil, logger, nil)
	return NewService(api, logger), rec
}

func TestToggle_Add(t *testing.T) {
	svc, rec := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int64
		json.NewDecoder(r.Body).Decode(&body)
		if body["job_id"] != 4 {
			t.Errorf("job_id = %d, want 4", body["job_id"])
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":30,"job":{"id":4}}`))
	})

	got, err := svc.Toggle(context.Background(), 4, false)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !got {
		t.Error("Toggle() = false, want true")
	}
	if calls := rec.list(); len(calls) != 1 || calls[0] != "POST /bookmarks/" {
		t.Errorf("calls = %v", calls)
	}
}

func TestToggle_Remove_FindsBookmarkByJob(t *testing.T) {
	svc, rec := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`[{"id":30,"job":{"id":4}},{"id":31,"job":{"id":5}}]`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	got, err := svc.Toggle(context.Background(), 5, true)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if got {
		t.Error("Toggle() = true, want false")
	}
	want := []string{"GET /bookmarks/", "DELETE /bookmarks/31/"}
	calls := rec.list()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestToggle_Remove_NotFound_NoDelete(t *testing.T) {
	svc, rec := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	got, err := svc.Toggle(context.Background(), 5, true)
	if err != nil || got {
		t.Errorf("Toggle() = %v, %v, want false, nil", got, err)
	}
	if calls := rec.list(); len(calls) != 1 {
		t.Errorf("calls = %v, want only the list request", calls)
	}
}
