package listing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
)

type row struct {
	ID    int
	Title string
	Owner string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rowFields(r row) []string { return []string{r.Title, r.Owner} }

func TestCollection_Load_FailureDegradesToEmpty(t *testing.T) {
	c := NewCollection("jobs", func(ctx context.Context) ([]row, error) {
		return nil, errors.New("connection refused")
	}, discardLogger())

	items := c.Load(context.Background())

	if items == nil || len(items) != 0 {
		t.Errorf("Load() = %v, want empty non-nil slice", items)
	}
	if c.Err() == nil {
		t.Error("Err() should report the fetch failure")
	}
	if !c.Loaded() {
		t.Error("Loaded() should be true after a failed load")
	}
}

func TestCollection_Filter_CaseInsensitive(t *testing.T) {
	c := NewCollection("jobs", func(ctx context.Context) ([]row, error) {
		return []row{
			{1, "Go Engineer", "Acme"},
			{2, "Designer", "Globex"},
			{3, "Data Intern", "ACME Labs"},
		}, nil
	}, discardLogger())
	c.Load(context.Background())

	got := c.Filter("acme", rowFields)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("Filter(acme) = %v, want ids 1,3", got)
	}
	if all := c.Filter("  ", rowFields); len(all) != 3 {
		t.Errorf("Filter(blank) len = %d, want 3", len(all))
	}
}

func TestMutate_ReloadsAffectedAfterSuccess(t *testing.T) {
	var order []string
	var loads int32
	fetch := func(ctx context.Context) ([]row, error) {
		atomic.AddInt32(&loads, 1)
		return []row{{ID: 1}}, nil
	}
	users := NewCollection("users", fetch, discardLogger())
	pending := NewCollection("pending", fetch, discardLogger())

	err := Mutate(context.Background(), func(ctx context.Context) error {
		order = append(order, "mutation")
		if atomic.LoadInt32(&loads) != 0 {
			t.Error("reload must not start before the mutation completes")
		}
		return nil
	}, users, pending)
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if atomic.LoadInt32(&loads) != 2 {
		t.Errorf("loads = %d, want 2", loads)
	}
	if len(order) != 1 {
		t.Errorf("mutation calls = %d, want 1", len(order))
	}
}

func TestMutate_FailureSkipsReload(t *testing.T) {
	var loads int32
	c := NewCollection("users", func(ctx context.Context) ([]row, error) {
		atomic.AddInt32(&loads, 1)
		return nil, nil
	}, discardLogger())

	wantErr := errors.New("forbidden")
	err := Mutate(context.Background(), func(ctx context.Context) error { return wantErr }, c)
	if !errors.Is(err, wantErr) {
		t.Errorf("Mutate() error = %v, want %v", err, wantErr)
	}
	if loads != 0 {
		t.Errorf("loads = %d, want 0", loads)
	}
}

func TestOptimistic_RollbackOnFailure(t *testing.T) {
	c := NewCollection("bookmarks", func(ctx context.Context) ([]row, error) {
		return []row{{1, "A", ""}, {2, "B", ""}}, nil
	}, discardLogger())
	c.Load(context.Background())

	removeFirst := func(items []row) []row { return items[1:] }

	err := Optimistic(context.Background(), c, removeFirst, func(ctx context.Context) error {
		// 更新中は変更後の一覧が見える
		if got := c.Items(); len(got) != 1 || got[0].ID != 2 {
			t.Errorf("Items() during commit = %v, want patched list", got)
		}
		return errors.New("server error")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	got := c.Items()
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("Items() after rollback = %v, want original list", got)
	}
}

func TestOptimistic_KeepsPatchOnSuccess(t *testing.T) {
	c := NewCollection("bookmarks", func(ctx context.Context) ([]row, error) {
		return []row{{1, "A", ""}}, nil
	}, discardLogger())
	c.Load(context.Background())

	err := Optimistic(context.Background(), c, func([]row) []row { return nil }, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Optimistic() error = %v", err)
	}
	if got := c.Items(); len(got) != 0 {
		t.Errorf("Items() = %v, want empty", got)
	}
}

func TestConfirmThen(t *testing.T) {
	prompt := NewPrompt("Delete User", "Are you sure?", SeverityError)
	if prompt.ConfirmText != "Confirm" || prompt.CancelText != "Cancel" {
		t.Errorf("prompt buttons = %q/%q, want Confirm/Cancel", prompt.ConfirmText, prompt.CancelText)
	}

	tests := []struct {
		name     string
		answer   bool
		wantRuns int
	}{
		{"confirmed", true, 1},
		{"cancelled", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := 0
			var seen Prompt
			confirmer := ConfirmerFunc(func(ctx context.Context, p Prompt) (bool, error) {
				seen = p
				return tt.answer, nil
			})
			ran, err := ConfirmThen(context.Background(), confirmer, prompt, func(ctx context.Context) error {
				runs++
				return nil
			})
			if err != nil {
				t.Fatalf("ConfirmThen() error = %v", err)
			}
			if ran != tt.answer || runs != tt.wantRuns {
				t.Errorf("ran = %v runs = %d, want %v/%d", ran, runs, tt.answer, tt.wantRuns)
			}
			if !strings.Contains(seen.Message, "sure") {
				t.Errorf("confirmer received prompt %+v", seen)
			}
		})
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		count, size, want int
	}{
		{95, 10, 10},
		{100, 10, 10},
		{101, 10, 11},
		{1, 10, 1},
		{0, 10, 1},
		{95, 0, 10},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.count, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.count, tt.size, got, tt.want)
		}
	}
}

func TestNewPagination_LastPartialPage(t *testing.T) {
	p := NewPagination(10, 95, PageSize)
	if p.Page != 10 || p.TotalPages != 10 || p.HasNext || !p.HasPrev {
		t.Errorf("NewPagination(10, 95) = %+v", p)
	}
	if p := NewPagination(42, 95, PageSize); p.Page != 10 {
		t.Errorf("page should be clamped to 10, got %d", p.Page)
	}
}
