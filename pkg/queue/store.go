package queue

import (
	"context"
	"time"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// JobStore is the subset of *store.Client the worker pool depends on.
type JobStore interface {
	ClaimNextJob(ctx context.Context, workerID string) (models.Job, error)
	Heartbeat(ctx context.Context, taskID string) error
	MarkJobTerminal(ctx context.Context, taskID, status, errMsg string) error
	CountActiveJobs(ctx context.Context) (int, error)
	CountPendingJobs(ctx context.Context) (int, error)
	RequeueOrphans(ctx context.Context, staleThreshold time.Duration) (int, error)
}
