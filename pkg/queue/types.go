// Package queue implements the at-least-once background job queue and
// worker pool that processes /api/v1/ask requests asynchronously: a job
// is claimed by a single worker, run end to end through the Orchestrator,
// and its terminal result delivered via webhook callback.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// ErrAtCapacity indicates the global concurrent-job limit has been
// reached; the worker backs off and retries on its next poll.
var ErrAtCapacity = errors.New("at capacity")

// JobExecutor owns a claimed job's entire processing lifecycle (driving
// the Orchestrator to completion); the worker only handles claiming,
// heartbeat, terminal status update, and webhook delivery.
type JobExecutor interface {
	Execute(ctx context.Context, job models.Job) *ExecutionResult
}

// ExecutionResult is the terminal outcome of one job's processing.
type ExecutionResult struct {
	Status      models.WebhookStatus
	FinalOutput string
	Error       error
}

// Config controls how jobs are polled, claimed, and processed.
type Config struct {
	WorkerCount             int
	MaxConcurrentJobs       int
	PollInterval            time.Duration
	PollIntervalJitter      time.Duration
	JobTimeout              time.Duration
	GracefulShutdownTimeout time.Duration
	HeartbeatInterval       time.Duration
	OrphanScanInterval      time.Duration
	OrphanStaleThreshold    time.Duration
	CallbackTimeout         time.Duration
}

// DefaultConfig returns production-ready worker-pool settings: a
// 10-minute per-job wall-clock limit and a 15s callback timeout.
func DefaultConfig() Config {
	return Config{
		WorkerCount:             5,
		MaxConcurrentJobs:       5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		JobTimeout:              10 * time.Minute,
		GracefulShutdownTimeout: 10 * time.Minute,
		HeartbeatInterval:       30 * time.Second,
		OrphanScanInterval:      5 * time.Minute,
		OrphanStaleThreshold:    5 * time.Minute,
		CallbackTimeout:         15 * time.Second,
	}
}

// PoolHealth is the operational payload served by GET /health.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveJobs       int            `json:"active_jobs"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth is one worker's health snapshot.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	CurrentTaskID string    `json:"current_task_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}

const (
	WorkerStatusIdle    = "idle"
	WorkerStatusWorking = "working"
)
