// Package manager implements the Manager Executor: a bounded reason-act
// loop that works one sub-question against a single manager's agents,
// dispatching tool calls through the Agent Executor.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/agentexec"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/llm"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// DefaultMaxReactCycles is the reason-act cycle bound used when the
// caller does not override it.
const DefaultMaxReactCycles = 2

// ExecutionLogger receives the manager-local log shape once the loop
// exits, and individual tool-result/observation events as they occur.
// A failure to persist never aborts the loop — logging is best-effort.
type ExecutionLogger interface {
	RecordManagerObservation(ctx context.Context, executionID, managerID, content string)
	RecordToolResult(ctx context.Context, executionID, managerID, agentID, toolName string, result *models.ToolResult)
}

// Executor runs the bounded reason-act loop for one manager invocation.
type Executor struct {
	adapter        llm.Adapter
	agentExecutor  *agentexec.Executor
	logger         ExecutionLogger
	maxReactCycles int
}

// New builds a Manager Executor. maxReactCycles <= 0 uses DefaultMaxReactCycles.
func New(adapter llm.Adapter, agentExecutor *agentexec.Executor, logger ExecutionLogger, maxReactCycles int) *Executor {
	if maxReactCycles <= 0 {
		maxReactCycles = DefaultMaxReactCycles
	}
	return &Executor{adapter: adapter, agentExecutor: agentExecutor, logger: logger, maxReactCycles: maxReactCycles}
}

// Outcome reports how the loop ended. Produced holds only the tool
// results this invocation itself stored — not the results inherited from
// the step context's snapshot — so the durable per-manager log records
// each manager's own delta rather than re-embedding every prior
// manager's output.
type Outcome struct {
	RequiresInput  bool
	PendingActions []models.PendingAction
	Produced       models.PreviousResults
}

// Run executes the bounded reason-act loop for stepCtx against manager,
// where stepCtx.UserQuestion holds the sub-question and originalQuestion
// is the top-level user question (needed by the reason-act prompt for
// context the sub-question alone does not carry).
//
// The state-merge contract is the caller's responsibility: Run mutates
// stepCtx's PreviousResults/ReactHistory/PendingActions in place and
// returns only how the loop ended; it is up to the Orchestrator to
// snapshot-before and merge-back per the delegation boundary protocol.
func (e *Executor) Run(ctx context.Context, manager models.ManagerDefinition, stepCtx *models.ExecutionContext, originalQuestion string) Outcome {
	produced := models.PreviousResults{}

	for cycle := 0; cycle < e.maxReactCycles; cycle++ {
		resp, err := e.adapter.ReactCycle(ctx, manager, originalQuestion, stepCtx)
		if err != nil {
			slog.Error("react cycle failed", "manager_id", manager.ManagerID, "error", err)
			stepCtx.AppendHistory(models.LabelObservation, fmt.Sprintf("Erro ao consultar o modelo: %v", err))
			continue
		}

		if resp.Thought != "" {
			stepCtx.AppendHistory(models.LabelThought, resp.Thought)
			e.logger.RecordManagerObservation(ctx, stepCtx.ExecutionID, manager.ManagerID, models.HistoryEntry{Label: models.LabelThought, Content: resp.Thought}.String())
		}

		// final_answer is authoritative over action when both are present.
		if resp.FinalAnswer != "" {
			stepCtx.AppendHistory(models.LabelFinalAnswer, resp.FinalAnswer)
			stepCtx.FinalOutput = resp.FinalAnswer
			e.logger.RecordManagerObservation(ctx, stepCtx.ExecutionID, manager.ManagerID, models.HistoryEntry{Label: models.LabelFinalAnswer, Content: resp.FinalAnswer}.String())
			return Outcome{RequiresInput: false, Produced: produced}
		}

		if resp.Action == "" {
			continue
		}

		stepCtx.AppendHistory(models.LabelAction, resp.Action)
		e.logger.RecordManagerObservation(ctx, stepCtx.ExecutionID, manager.ManagerID, models.HistoryEntry{Label: models.LabelAction, Content: resp.Action}.String())

		outcome, done := e.dispatch(ctx, manager, stepCtx, produced, resp.Action)
		if done {
			return outcome
		}
	}

	stepCtx.AppendHistory(models.LabelObservation, "Limite máximo de ciclos atingido")
	return Outcome{RequiresInput: false, Produced: produced}
}

// dispatch interprets and executes one [ACTION] string, recording any
// stored tool result in both the step context and produced. done=true
// means the loop should return immediately with outcome; done=false means
// the loop should proceed to its next cycle.
func (e *Executor) dispatch(ctx context.Context, manager models.ManagerDefinition, stepCtx *models.ExecutionContext, produced models.PreviousResults, action string) (Outcome, bool) {
	parsed, ok := ParseAction(action)
	if !ok {
		stepCtx.AppendHistory(models.LabelObservation, fmt.Sprintf("Formato de ação não reconhecido: %s", action))
		return Outcome{}, false
	}

	agent, toolDef, found := manager.FindAgentByTool(parsed.ToolName)
	if !found {
		stepCtx.AppendHistory(models.LabelObservation, fmt.Sprintf("Ferramenta '%s' ou seu agente não foram encontrados", parsed.ToolName))
		return Outcome{}, false
	}

	result, err := e.agentExecutor.Execute(ctx, agent, toolDef.Name, parsed.Params, stepCtx)
	if err != nil {
		stepCtx.AppendHistory(models.LabelObservation, fmt.Sprintf("Erro ao executar a ferramenta: %v", err))
		return Outcome{}, false
	}

	e.logger.RecordToolResult(ctx, stepCtx.ExecutionID, manager.ManagerID, agent.AgentID, toolDef.Name, result)

	if result.NextStep == models.NextStepRequestUserInput {
		stepCtx.PendingActions = append(stepCtx.PendingActions, models.PendingAction{
			AgentID:        agent.AgentID,
			RequiredParams: result.RequiredParams,
		})
		return Outcome{RequiresInput: true, PendingActions: stepCtx.PendingActions, Produced: produced}, true
	}

	observation := stringifyOutput(result.Output)
	stepCtx.AppendHistory(models.LabelObservation, observation)

	if stepCtx.PreviousResults == nil {
		stepCtx.PreviousResults = models.PreviousResults{}
	}
	if _, ok := stepCtx.PreviousResults[agent.AgentID]; !ok {
		stepCtx.PreviousResults[agent.AgentID] = models.ToolOutputs{}
	}
	stepCtx.PreviousResults[agent.AgentID][toolDef.Name] = result.Output

	if _, ok := produced[agent.AgentID]; !ok {
		produced[agent.AgentID] = models.ToolOutputs{}
	}
	produced[agent.AgentID][toolDef.Name] = result.Output

	return Outcome{}, false
}

func stringifyOutput(output any) string {
	switch v := output.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
