package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/store"
)

// JobRegistry is the subset of WorkerPool used by Worker for manual
// cancellation of an in-flight job.
type JobRegistry interface {
	RegisterJob(taskID string, cancel context.CancelFunc)
	UnregisterJob(taskID string)
}

// Worker is a single queue worker that polls for, claims, and runs jobs
// end to end, including the always-attempted webhook callback.
type Worker struct {
	id          string
	podID       string
	jobStore    JobStore
	cfg         Config
	jobExecutor JobExecutor
	registry    JobRegistry
	httpClient  *http.Client
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	mu            sync.RWMutex
	status        string
	currentTaskID string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker constructs a Worker. httpClient may be nil, in which case
// http.DefaultClient is used for webhook delivery.
func NewWorker(id, podID string, jobStore JobStore, cfg Config, executor JobExecutor, registry JobRegistry, httpClient *http.Client) *Worker {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Worker{
		id:           id,
		podID:        podID,
		jobStore:     jobStore,
		cfg:          cfg,
		jobExecutor:  executor,
		registry:     registry,
		httpClient:   httpClient,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker's polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and blocks until its current job (if
// any) finishes processing, up to GracefulShutdownTimeout is the caller's
// responsibility to enforce via ctx.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns a snapshot of this worker's status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        w.status,
		CurrentTaskID: w.currentTaskID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, store.ErrNoJobsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a job, and runs it to completion.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	active, err := w.jobStore.CountActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("checking active jobs: %w", err)
	}
	if active >= w.cfg.MaxConcurrentJobs {
		return ErrAtCapacity
	}

	job, err := w.jobStore.ClaimNextJob(ctx, w.id)
	if err != nil {
		return err
	}

	log := slog.With("task_id", job.TaskID, "worker_id", w.id)
	log.Info("job claimed")

	w.setStatus(WorkerStatusWorking, job.TaskID)
	defer w.setStatus(WorkerStatusIdle, "")

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	if w.registry != nil {
		w.registry.RegisterJob(job.TaskID, cancel)
		defer w.registry.UnregisterJob(job.TaskID)
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	go w.runHeartbeat(heartbeatCtx, job.TaskID)

	result := w.jobExecutor.Execute(jobCtx, job)
	cancelHeartbeat()

	result = w.normalizeResult(jobCtx, result)

	termStatus := store.JobStatusCompleted
	errMsg := ""
	if result.Status == models.WebhookStatusFailed {
		termStatus = store.JobStatusFailed
	}
	if result.Error != nil {
		errMsg = result.Error.Error()
	}

	// Terminal status update uses a background context: jobCtx may already
	// be cancelled or expired by the time execution returns.
	if err := w.jobStore.MarkJobTerminal(context.Background(), job.TaskID, termStatus, errMsg); err != nil {
		log.Error("failed to mark job terminal", "error", err)
	}

	deliverWebhook(context.Background(), w.httpClient, job, models.WebhookPayload{
		TaskID:         job.TaskID,
		Status:         result.Status,
		AddressingInfo: job.CallbackDetails.AddressingInfo,
		FinalOutput:    result.FinalOutput,
	}, w.cfg.CallbackTimeout)

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	log.Info("job processing complete", "status", result.Status)
	return nil
}

// normalizeResult guards against a nil JobExecutor return and fills in a
// status for context-expiry outcomes the executor didn't already set.
func (w *Worker) normalizeResult(jobCtx context.Context, result *ExecutionResult) *ExecutionResult {
	if result == nil {
		switch {
		case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
			return &ExecutionResult{Status: models.WebhookStatusFailed, Error: fmt.Errorf("job timed out after %v", w.cfg.JobTimeout)}
		case errors.Is(jobCtx.Err(), context.Canceled):
			return &ExecutionResult{Status: models.WebhookStatusFailed, Error: context.Canceled}
		default:
			return &ExecutionResult{Status: models.WebhookStatusFailed, Error: fmt.Errorf("executor returned nil result")}
		}
	}
	if result.Status == "" && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		result.Status = models.WebhookStatusFailed
		if result.Error == nil {
			result.Error = fmt.Errorf("job timed out after %v", w.cfg.JobTimeout)
		}
	}
	if result.Status == "" {
		result.Status = models.WebhookStatusCompleted
	}
	return result
}

func (w *Worker) runHeartbeat(ctx context.Context, taskID string) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.jobStore.Heartbeat(ctx, taskID); err != nil {
				slog.Warn("heartbeat update failed", "task_id", taskID, "error", err)
			}
		}
	}
}

// pollInterval returns the poll duration with jitter, in [base-jitter, base+jitter].
func (w *Worker) pollInterval() time.Duration {
	base := w.cfg.PollInterval
	jitter := w.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status, taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTaskID = taskID
	w.lastActivity = time.Now()
}
