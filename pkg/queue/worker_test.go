package queue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/store"
)

type fakeJobStore struct {
	mu             sync.Mutex
	pending        []models.Job
	active         int
	heartbeats     int
	terminal       []string
	terminalStatus string
	terminalErr    string
}

func (f *fakeJobStore) ClaimNextJob(_ context.Context, _ string) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return models.Job{}, store.ErrNoJobsAvailable
	}
	job := f.pending[0]
	f.pending = f.pending[1:]
	f.active++
	return job, nil
}

func (f *fakeJobStore) Heartbeat(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeJobStore) MarkJobTerminal(_ context.Context, taskID, status, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminal = append(f.terminal, taskID)
	f.terminalStatus = status
	f.terminalErr = errMsg
	f.active--
	return nil
}

func (f *fakeJobStore) CountActiveJobs(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeJobStore) CountPendingJobs(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending), nil
}

func (f *fakeJobStore) RequeueOrphans(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}

type fakeExecutor struct {
	result *ExecutionResult
}

func (f *fakeExecutor) Execute(_ context.Context, _ models.Job) *ExecutionResult {
	return f.result
}

type nilExecutor struct{}

func (nilExecutor) Execute(_ context.Context, _ models.Job) *ExecutionResult { return nil }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.PollIntervalJitter = 0
	cfg.HeartbeatInterval = 5 * time.Millisecond
	cfg.JobTimeout = 200 * time.Millisecond
	cfg.CallbackTimeout = time.Second
	return cfg
}

func TestWorker_ClaimsAndDeliversWebhook(t *testing.T) {
	var receivedBody []byte
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		receivedBody = buf[:n]
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fstore := &fakeJobStore{pending: []models.Job{{
		TaskID:          "task-1",
		UserID:          "user-1",
		UserInput:       "hello",
		CallbackDetails: models.CallbackDetails{WebhookURL: server.URL},
	}}}
	exec := &fakeExecutor{result: &ExecutionResult{Status: models.WebhookStatusCompleted, FinalOutput: "done"}}

	worker := NewWorker("w-1", "pod-1", fstore, testConfig(), exec, nil, http.DefaultClient)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, worker.pollAndProcess(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, string(receivedBody), "task-1")
	assert.Equal(t, []string{"task-1"}, fstore.terminal)
	assert.Equal(t, store.JobStatusCompleted, fstore.terminalStatus)
}

func TestWorker_NoJobsAvailableReturnsSentinelError(t *testing.T) {
	fstore := &fakeJobStore{}
	worker := NewWorker("w-1", "pod-1", fstore, testConfig(), &fakeExecutor{}, nil, http.DefaultClient)

	err := worker.pollAndProcess(context.Background())
	assert.ErrorIs(t, err, store.ErrNoJobsAvailable)
}

func TestWorker_AtCapacityBacksOff(t *testing.T) {
	fstore := &fakeJobStore{active: 100, pending: []models.Job{{TaskID: "task-1"}}}
	cfg := testConfig()
	cfg.MaxConcurrentJobs = 1
	worker := NewWorker("w-1", "pod-1", fstore, cfg, &fakeExecutor{}, nil, http.DefaultClient)

	err := worker.pollAndProcess(context.Background())
	assert.ErrorIs(t, err, ErrAtCapacity)
}

func TestWorker_NilExecutorResultMarksFailed(t *testing.T) {
	fstore := &fakeJobStore{pending: []models.Job{{TaskID: "task-1"}}}
	worker := NewWorker("w-1", "pod-1", fstore, testConfig(), nilExecutor{}, nil, http.DefaultClient)

	require.NoError(t, worker.pollAndProcess(context.Background()))
	assert.Equal(t, store.JobStatusFailed, fstore.terminalStatus)
	assert.NotEmpty(t, fstore.terminalErr)
}

func TestWorker_MissingWebhookURLSkipsDeliveryWithoutError(t *testing.T) {
	fstore := &fakeJobStore{pending: []models.Job{{TaskID: "task-1"}}}
	exec := &fakeExecutor{result: &ExecutionResult{Status: models.WebhookStatusCompleted}}
	worker := NewWorker("w-1", "pod-1", fstore, testConfig(), exec, nil, http.DefaultClient)

	require.NoError(t, worker.pollAndProcess(context.Background()))
	assert.Equal(t, store.JobStatusCompleted, fstore.terminalStatus)
}
