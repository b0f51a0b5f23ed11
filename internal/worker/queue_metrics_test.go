package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[domain.TransactionStatus]int
	err    error
	calls  int
}

func (f *fakeCounter) CountByStatus(context.Context) (map[domain.TransactionStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.counts, nil
}

type fakePruner struct{ calls int }

func (p *fakePruner) Prune() int {
	p.calls++
	return 2
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunOnceSetsEveryStatus(t *testing.T) {
	counter := &fakeCounter{counts: map[domain.TransactionStatus]int{
		domain.StatusPending: 4,
		domain.StatusQueued:  1,
	}}
	pruner := &fakePruner{}
	w, err := NewQueueMetricsWorker(counter, "@every 1m", quiet(), pruner)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]int{}
	w.setDepth = func(status string, n int) { got[status] = n }

	w.RunOnce(context.Background())

	if len(got) != len(domain.AllStatuses) {
		t.Fatalf("gauges set for %v", got)
	}
	if got["pending"] != 4 || got["queued"] != 1 || got["verified"] != 0 {
		t.Fatalf("depths %v", got)
	}
	if pruner.calls != 1 {
		t.Fatalf("pruner called %d times", pruner.calls)
	}
	if w.LastRun().IsZero() {
		t.Fatal("last run not recorded")
	}
}

func TestRunOnceKeepsGaugesOnError(t *testing.T) {
	counter := &fakeCounter{err: errors.New("db down")}
	pruner := &fakePruner{}
	w, err := NewQueueMetricsWorker(counter, "@every 1m", quiet(), pruner)
	if err != nil {
		t.Fatal(err)
	}
	set := 0
	w.setDepth = func(string, int) { set++ }

	// A cancelled context stops the retry loop after the first attempt.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.RunOnce(ctx)

	if set != 0 {
		t.Fatalf("gauges updated %d times after a failed count", set)
	}
	if pruner.calls != 1 {
		t.Fatal("pruning should not depend on the count")
	}
}

func TestInvalidSchedule(t *testing.T) {
	if _, err := NewQueueMetricsWorker(&fakeCounter{}, "every minute", quiet()); err == nil {
		t.Fatal("expected a schedule error")
	}
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	counter := &fakeCounter{counts: map[domain.TransactionStatus]int{}}
	w, err := NewQueueMetricsWorker(counter, "@every 1h", quiet())
	if err != nil {
		t.Fatal(err)
	}
	w.setDepth = func(string, int) {}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for w.LastRun().IsZero() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if w.LastRun().IsZero() {
		t.Fatal("no initial run")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
