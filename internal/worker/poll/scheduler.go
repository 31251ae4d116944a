// Package poll は会話一覧や採用担当の承認状態を定期的に取得し直すバックグラウンド処理を提供する。
// スケジューラ、ポーリングタスク、失敗時のバックオフを含む。
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/jobboard/internal/metrics"
)

// Task は定期実行する処理のインターフェース。
type Task interface {
	// Name はログとメトリクスに使用するタスク名を返す。
	Name() string
	// Run はタスクを1回実行する。
	Run(ctx context.Context) error
}

// Scheduler はタスクの定期実行と並列制御を行う。
// 失敗したタスクは指数バックオフで次回実行を遅らせる。
type Scheduler struct {
	tasks          []Task
	logger         *slog.Logger
	metrics        metrics.MetricsCollector
	maxConcurrency int
	backoffBase    time.Duration

	mu    sync.Mutex
	state map[string]*backoffState
	now   func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(tasks []Task, logger *slog.Logger, m metrics.MetricsCollector, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Scheduler{
		tasks:          tasks,
		logger:         logger,
		metrics:        m,
		maxConcurrency: maxConcurrency,
		backoffBase:    30 * time.Second,
		state:          make(map[string]*backoffState),
		now:            time.Now,
	}
}

// Start はinterval間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ポーリングスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("task_count", len(s.tasks)),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ポーリングスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は実行可能なタスクを並列で1回ずつ実行し、実行したタスク数を返す。
// バックオフ中のタスクはスキップする。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	start := s.now()

	due := make([]Task, 0, len(s.tasks))
	s.mu.Lock()
	for _, t := range s.tasks {
		st := s.stateFor(t.Name())
		if st.due(start) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return 0
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, task := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(t Task) {
			defer wg.Done()
			defer func() { <-sem }()

			err := t.Run(ctx)
			s.record(t.Name(), err)
		}(task)
	}

	wg.Wait()

	s.logger.Debug("ポーリングサイクルが完了しました",
		slog.Int("task_count", len(due)),
		slog.Float64("duration_ms", float64(s.now().Sub(start).Milliseconds())),
	)
	return len(due)
}

func (s *Scheduler) record(name string, err error) {
	s.metrics.RecordPollCycle(name, err == nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateFor(name)
	if err == nil {
		st.applySuccess()
		return
	}

	delay := st.applyFailure(s.now(), s.backoffBase, err.Error())
	s.logger.Warn("ポーリングタスクの実行に失敗しました",
		slog.String("task", name),
		slog.Int("consecutive_errors", st.consecutiveErrors),
		slog.Duration("backoff", delay),
		slog.String("error", err.Error()),
	)
}

// stateForはmuを保持した状態で呼ぶ。
func (s *Scheduler) stateFor(name string) *backoffState {
	st, ok := s.state[name]
	if !ok {
		st = &backoffState{}
		s.state[name] = st
	}
	return st
}
