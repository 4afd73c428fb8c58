package queue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// WorkerPool manages a fixed set of queue workers plus a background
// orphan-detection scan.
type WorkerPool struct {
	podID       string
	jobStore    JobStore
	cfg         Config
	jobExecutor JobExecutor
	httpClient  *http.Client
	workers     []*Worker
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	activeJobs map[string]context.CancelFunc
	mu         sync.RWMutex
	started    bool

	orphans orphanState
}

// NewWorkerPool constructs a WorkerPool. httpClient may be nil (defaults
// to http.DefaultClient for webhook delivery).
func NewWorkerPool(podID string, jobStore JobStore, cfg Config, executor JobExecutor, httpClient *http.Client) *WorkerPool {
	return &WorkerPool{
		podID:       podID,
		jobStore:    jobStore,
		cfg:         cfg,
		jobExecutor: executor,
		httpClient:  httpClient,
		workers:     make([]*Worker, 0, cfg.WorkerCount),
		stopCh:      make(chan struct{}),
		activeJobs:  make(map[string]context.CancelFunc),
	}
}

// Start spawns the configured worker goroutines plus the orphan-scan
// background task. Safe to call once; a second call is a no-op.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", p.cfg.WorkerCount)

	for i := 0; i < p.cfg.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.jobStore, p.cfg, p.jobExecutor, p, p.httpClient)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("worker pool started")
	return nil
}

// Stop signals every worker to stop and waits for in-flight jobs to
// finish (graceful shutdown — workers never abandon a claimed job).
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully")

	active := p.getActiveJobIDs()
	if len(active) > 0 {
		slog.Info("waiting for active jobs to complete", "count", len(active), "task_ids", active)
	}

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("worker pool stopped gracefully")
}

// RegisterJob stores a cancel function so an in-flight job can be
// cancelled manually (e.g. an admin-triggered abort).
func (p *WorkerPool) RegisterJob(taskID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeJobs[taskID] = cancel
}

// UnregisterJob removes the cancel function once processing ends.
func (p *WorkerPool) UnregisterJob(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeJobs, taskID)
}

// CancelJob triggers cancellation for a job claimed on this pod. Returns
// false if the job isn't tracked here (claimed by another pod, or already
// finished).
func (p *WorkerPool) CancelJob(taskID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeJobs[taskID]; ok {
		cancel()
		return true
	}
	return false
}

// Health reports the pool's current operational status for GET /health.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, errQ := p.jobStore.CountPendingJobs(ctx)
	if errQ != nil {
		slog.Error("failed to query queue depth for health check", "pod_id", p.podID, "error", errQ)
	}

	activeJobs, errA := p.jobStore.CountActiveJobs(ctx)
	if errA != nil {
		slog.Error("failed to query active jobs for health check", "pod_id", p.podID, "error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	dbHealthy := errQ == nil && errA == nil
	isHealthy := len(p.workers) > 0 && activeJobs <= p.cfg.MaxConcurrentJobs && dbHealthy

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastOrphanScan
	orphansRecovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	var dbError string
	if !dbHealthy {
		switch {
		case errQ != nil:
			dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
		case errA != nil:
			dbError = fmt.Sprintf("active jobs query failed: %v", errA)
		}
	}

	return &PoolHealth{
		IsHealthy:        isHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		ActiveJobs:       activeJobs,
		MaxConcurrent:    p.cfg.MaxConcurrentJobs,
		QueueDepth:       queueDepth,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastOrphanScan,
		OrphansRecovered: orphansRecovered,
	}
}

func (p *WorkerPool) getActiveJobIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.activeJobs))
	for id := range p.activeJobs {
		ids = append(ids, id)
	}
	return ids
}
