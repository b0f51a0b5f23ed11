package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/paymentsportal/internal/reliability/retry"
)

// StatusCounter is the slice of the transaction repository the worker reads.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[domain.TransactionStatus]int, error)
}

// Pruner drops expired entries from an in-process store.
type Pruner interface {
	Prune() int
}

// QueueMetricsWorker refreshes the per-status queue depth gauges on a cron
// schedule and prunes the in-memory refresh token denylist.
type QueueMetricsWorker struct {
	counter  StatusCounter
	pruners  []Pruner
	logger   *slog.Logger
	cron     *cron.Cron
	timeout  time.Duration
	setDepth func(status string, count int)

	mu      sync.Mutex
	lastRun time.Time
}

// NewQueueMetricsWorker parses schedule (standard cron or @every descriptors).
func NewQueueMetricsWorker(counter StatusCounter, schedule string, logger *slog.Logger, pruners ...Pruner) (*QueueMetricsWorker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &QueueMetricsWorker{
		counter:  counter,
		logger:   logger.With(slog.String("worker", "queue_metrics")),
		timeout:  10 * time.Second,
		setDepth: metrics.SetQueueDepth,
	}
	for _, p := range pruners {
		if p != nil {
			w.pruners = append(w.pruners, p)
		}
	}
	w.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := w.cron.AddFunc(schedule, func() { w.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid queue metrics schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Start runs one refresh immediately, then follows the schedule until ctx is
// cancelled. It blocks.
func (w *QueueMetricsWorker) Start(ctx context.Context) {
	w.logger.Info("queue metrics worker started", slog.Int("jobs", len(w.cron.Entries())))
	w.RunOnce(ctx)
	w.cron.Start()

	<-ctx.Done()
	stopped := w.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(w.timeout):
		w.logger.Warn("queue metrics job still running at shutdown")
	}
	w.logger.Info("queue metrics worker stopped")
}

// RunOnce performs a single refresh.
func (w *QueueMetricsWorker) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	cfg := &retry.Config{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 4 * time.Second, BackoffMultiplier: 2}
	counts, err := retry.Do(ctx, cfg, w.logger, "count transactions by status", w.counter.CountByStatus)
	if err != nil {
		w.logger.Error("failed to refresh queue depth", slog.String("error", err.Error()))
	} else {
		for _, status := range domain.AllStatuses {
			w.setDepth(string(status), counts[status])
		}
		w.logger.Debug("queue depth refreshed",
			slog.Int("pending", counts[domain.StatusPending]),
			slog.Int("verified", counts[domain.StatusVerified]),
			slog.Int("queued", counts[domain.StatusQueued]),
		)
	}

	for _, p := range w.pruners {
		if n := p.Prune(); n > 0 {
			w.logger.Debug("pruned expired entries", slog.Int("count", n))
		}
	}

	w.mu.Lock()
	w.lastRun = time.Now()
	w.mu.Unlock()
}

// LastRun reports when the last refresh finished; zero before the first.
func (w *QueueMetricsWorker) LastRun() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}
