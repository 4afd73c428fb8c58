package queue

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/orchestrator"
)

// Runner is the subset of *orchestrator.Orchestrator a job executor
// depends on.
type Runner interface {
	Run(ctx context.Context, sessionID, userID, userQuestion string) (orchestrator.Response, error)
}

// OrchestratorExecutor adapts a Runner into the JobExecutor contract the
// worker pool drives: one job in, one terminal ExecutionResult out. A
// panic inside the orchestrator run is recovered into a failed result so
// one bad job can never take down a worker goroutine.
type OrchestratorExecutor struct {
	runner Runner
}

// NewOrchestratorExecutor builds a JobExecutor around runner.
func NewOrchestratorExecutor(runner Runner) *OrchestratorExecutor {
	return &OrchestratorExecutor{runner: runner}
}

func (e *OrchestratorExecutor) Execute(ctx context.Context, job models.Job) (result *ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &ExecutionResult{Status: models.WebhookStatusFailed, Error: fmt.Errorf("orchestrator panic: %v", r)}
		}
	}()

	resp, err := e.runner.Run(ctx, job.SessionID, job.UserID, job.UserInput)
	if err != nil {
		return &ExecutionResult{Status: models.WebhookStatusFailed, Error: err}
	}

	switch resp.Type {
	case orchestrator.ResponseCompleted:
		return &ExecutionResult{Status: models.WebhookStatusCompleted, FinalOutput: resp.Response}
	case orchestrator.ResponsePending:
		// A pending job is not yet terminal from the caller's point of view,
		// but the webhook contract has no third state: report it completed
		// with the clarifying message so the callback still fires exactly
		// once, in the worker's finally-equivalent path.
		return &ExecutionResult{Status: models.WebhookStatusCompleted, FinalOutput: resp.Message}
	default:
		return &ExecutionResult{Status: models.WebhookStatusFailed, FinalOutput: resp.ErrorMessage}
	}
}
