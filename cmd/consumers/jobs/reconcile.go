package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Reconciler rebuilds zone counters and returns the ids of corrected zones
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]string, error)
}

// ReconcileJob periodically rebuilds zone counters from open tickets
type ReconcileJob struct {
	reconciler Reconciler
	interval   time.Duration
	running    sync.Mutex
	done       chan struct{}
	stopped    sync.WaitGroup
}

func NewReconcileJob(reconciler Reconciler, interval time.Duration) *ReconcileJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconcileJob{
		reconciler: reconciler,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval. A pass that is
// still running when the next tick fires is not overlapped.
func (j *ReconcileJob) Start(ctx context.Context) {
	slog.Info("Starting occupancy reconciliation job", "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	j.stopped.Add(1)
	go func() {
		defer j.stopped.Done()
		defer ticker.Stop()

		j.run(ctx)
		for {
			select {
			case <-ticker.C:
				j.run(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				slog.Info("Occupancy reconciliation job stopped")
				return
			}
		}
	}()
}

// Stop ends the job and waits for a running pass to finish
func (j *ReconcileJob) Stop() {
	close(j.done)
	j.stopped.Wait()
}

func (j *ReconcileJob) run(ctx context.Context) {
	if !j.running.TryLock() {
		return
	}
	defer j.running.Unlock()

	start := time.Now()
	corrected, err := j.reconciler.ReconcileAll(ctx)
	if err != nil {
		slog.Error("Occupancy reconciliation failed", "error", err)
		return
	}
	if len(corrected) == 0 {
		slog.Debug("Zone counters consistent", "elapsed", time.Since(start))
		return
	}
	slog.Warn("Corrected drifted zone counters",
		"zones", corrected,
		"count", len(corrected),
		"elapsed", time.Since(start))
}
