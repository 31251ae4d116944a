package poll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/jobboard/internal/metrics"
)

// --- モック定義 ---

// mockTask はTaskのテスト用モック。
type mockTask struct {
	name  string
	runFn func(ctx context.Context) error
	runs  atomic.Int32
}

func (m *mockTask) Name() string { return m.name }

func (m *mockTask) Run(ctx context.Context) error {
	m.runs.Add(1)
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return nil
}

// recordingMetrics はポーリング結果を記録する。
type recordingMetrics struct {
	metrics.Nop
	mu      sync.Mutex
	results map[string][]bool
}

func (r *recordingMetrics) RecordPollCycle(task string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string][]bool{}
	}
	r.results[task] = append(r.results[task], success)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- テスト ---

func TestRunOnce_RunsAllTasksConcurrently(t *testing.T) {
	var active, peak atomic.Int32
	slow := func(ctx context.Context) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return nil
	}
	tasks := []Task{
		&mockTask{name: "a", runFn: slow},
		&mockTask{name: "b", runFn: slow},
		&mockTask{name: "c", runFn: slow},
	}
	s := NewScheduler(tasks, testLogger(), nil, 2)

	if n := s.RunOnce(context.Background()); n != 3 {
		t.Errorf("RunOnce() = %d, want 3", n)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestRunOnce_FailingTaskBacksOff(t *testing.T) {
	m := &recordingMetrics{}
	failing := &mockTask{name: "flaky", runFn: func(ctx context.Context) error {
		return errors.New("boom")
	}}
	healthy := &mockTask{name: "healthy"}
	s := NewScheduler([]Task{failing, healthy}, testLogger(), m, 0)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.RunOnce(context.Background())
	s.RunOnce(context.Background())

	if failing.runs.Load() != 1 {
		t.Errorf("failing runs = %d, want 1 (second cycle skipped by backoff)", failing.runs.Load())
	}
	if healthy.runs.Load() != 2 {
		t.Errorf("healthy runs = %d, want 2", healthy.runs.Load())
	}

	now = now.Add(31 * time.Second)
	s.RunOnce(context.Background())
	if failing.runs.Load() != 2 {
		t.Errorf("failing runs = %d, want 2 after backoff elapsed", failing.runs.Load())
	}
	if got := m.results["flaky"]; len(got) != 2 || got[0] || got[1] {
		t.Errorf("flaky results = %v, want two failures", got)
	}
}

func TestRunOnce_SuccessResetsBackoff(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	task := &mockTask{name: "t", runFn: func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("boom")
		}
		return nil
	}}
	s := NewScheduler([]Task{task}, testLogger(), nil, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.RunOnce(context.Background())
	fail.Store(false)
	now = now.Add(time.Minute)
	s.RunOnce(context.Background())
	s.RunOnce(context.Background())

	if task.runs.Load() != 3 {
		t.Errorf("runs = %d, want 3", task.runs.Load())
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	task := &mockTask{name: "t"}
	s := NewScheduler([]Task{task}, testLogger(), nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for task.runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("task was not run on start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		errors int
		want   time.Duration
	}{
		{0, 30 * time.Second},
		{1, time.Minute},
		{3, 4 * time.Minute},
		{10, maxBackoff},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(30*time.Second, tt.errors); got != tt.want {
			t.Errorf("CalculateBackoff(30s, %d) = %v, want %v", tt.errors, got, tt.want)
		}
	}
}
