package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// orphanState tracks orphan-detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically requeues jobs whose heartbeat has gone
// stale — the worker that claimed them crashed or was killed. All pods
// run this independently; RequeueOrphans is a single idempotent UPDATE.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.OrphanScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.scanOrphansOnce(ctx)
		}
	}
}

func (p *WorkerPool) scanOrphansOnce(ctx context.Context) {
	recovered, err := p.jobStore.RequeueOrphans(ctx, p.cfg.OrphanStaleThreshold)
	if err != nil {
		slog.Error("orphan scan failed", "error", err)
		return
	}
	if recovered > 0 {
		slog.Warn("requeued orphaned jobs", "count", recovered)
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()
}
