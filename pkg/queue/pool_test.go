package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

func TestWorkerPool_StartIsIdempotent(t *testing.T) {
	fstore := &fakeJobStore{}
	cfg := testConfig()
	cfg.WorkerCount = 2
	pool := NewWorkerPool("pod-1", fstore, cfg, &fakeExecutor{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Start(ctx))
	assert.Len(t, pool.workers, 2)

	pool.Stop()
}

func TestWorkerPool_HealthReportsQueueDepth(t *testing.T) {
	fstore := &fakeJobStore{pending: []models.Job{{TaskID: "task-1"}}}
	cfg := testConfig()
	cfg.WorkerCount = 1
	pool := NewWorkerPool("pod-1", fstore, cfg, &fakeExecutor{}, nil)

	health := pool.Health()
	assert.Equal(t, 0, health.TotalWorkers)
	assert.Equal(t, 1, health.QueueDepth)
	assert.True(t, health.DBReachable)
}

func TestWorkerPool_RegisterAndCancelJob(t *testing.T) {
	fstore := &fakeJobStore{}
	pool := NewWorkerPool("pod-1", fstore, testConfig(), &fakeExecutor{}, nil)

	cancelled := false
	pool.RegisterJob("task-1", func() { cancelled = true })

	assert.True(t, pool.CancelJob("task-1"))
	assert.True(t, cancelled)
	assert.False(t, pool.CancelJob("unknown-task"))
}
