package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type orphanCountingStore struct {
	fakeJobStore
	requeued int
}

func (o *orphanCountingStore) RequeueOrphans(_ context.Context, _ time.Duration) (int, error) {
	o.requeued = 3
	return 3, nil
}

func TestWorkerPool_ScanOrphansOnceUpdatesMetrics(t *testing.T) {
	fstore := &orphanCountingStore{}
	pool := NewWorkerPool("pod-1", fstore, testConfig(), &fakeExecutor{}, nil)

	pool.scanOrphansOnce(context.Background())

	pool.orphans.mu.Lock()
	defer pool.orphans.mu.Unlock()
	assert.Equal(t, 3, pool.orphans.orphansRecovered)
	assert.False(t, pool.orphans.lastOrphanScan.IsZero())
}

func TestWorkerPool_ScanOrphansNoneFoundStillUpdatesScanTime(t *testing.T) {
	fstore := &fakeJobStore{}
	pool := NewWorkerPool("pod-1", fstore, testConfig(), &fakeExecutor{}, nil)

	pool.scanOrphansOnce(context.Background())

	pool.orphans.mu.Lock()
	defer pool.orphans.mu.Unlock()
	assert.Equal(t, 0, pool.orphans.orphansRecovered)
	assert.False(t, pool.orphans.lastOrphanScan.IsZero())
}
