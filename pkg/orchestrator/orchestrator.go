// Package orchestrator implements the top-level delegation loop: the
// Orchestrator repeatedly asks the LLM Adapter which manager (if any)
// should handle the next step of a user's question, runs that manager's
// bounded reason-act loop, merges its results back into the outer
// execution context, and — once the delegator signals a final answer or
// the cycle cap is reached — synthesizes the user-visible response.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/definitions"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/llm"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/manager"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// DefaultMaxCycles is the delegation loop bound used when the caller does
// not override it.
const DefaultMaxCycles = 5

// ChatHistoryLimit is the number of most-recent conversation messages
// fetched per execution to populate the delegator prompt's chat_history.
const ChatHistoryLimit = 10

// ApologyNoDefinitions is returned as the completed response when the
// Definition Loader cannot be reached at all.
const ApologyNoDefinitions = "I'm sorry, I can't process requests right now. Please try again shortly."

// ApologyInternalError is returned when the delegator produces a decision
// kind the Orchestrator does not recognize.
const ApologyInternalError = "I'm sorry, something went wrong while processing your request."

// DefinitionLoader is the subset of *definitions.Loader the Orchestrator
// depends on.
type DefinitionLoader interface {
	Load(ctx context.Context, userID string) (definitions.Result, error)
}

// ConversationStore is the subset of *store.Client used to persist and
// replay a session's chat history.
type ConversationStore interface {
	AppendConversationMessage(ctx context.Context, msg models.ConversationMessage) error
	ConversationHistory(ctx context.Context, sessionID string) ([]models.ConversationMessage, error)
}

// ExecutionLog is the subset of *store.Client used to finalize the
// durable, hierarchical record of one execution. It is combined with
// manager.ExecutionLogger (used for in-flight observations) via Logger
// below.
type ExecutionLog interface {
	UpsertExecutionLog(ctx context.Context, entry models.LogEntry) error
}

// Logger bundles everything the Orchestrator and the Manager Executor it
// drives need from the Execution Logger.
type Logger interface {
	manager.ExecutionLogger
	ExecutionLog
}

// Orchestrator runs the bounded top-level delegation loop for one user
// question end to end.
type Orchestrator struct {
	loader      DefinitionLoader
	adapter     llm.Adapter
	managerExec *manager.Executor
	convo       ConversationStore
	logger      Logger
	maxCycles   int
}

// New builds an Orchestrator. maxCycles <= 0 uses DefaultMaxCycles.
func New(loader DefinitionLoader, adapter llm.Adapter, managerExec *manager.Executor, convo ConversationStore, logger Logger, maxCycles int) *Orchestrator {
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}
	return &Orchestrator{
		loader:      loader,
		adapter:     adapter,
		managerExec: managerExec,
		convo:       convo,
		logger:      logger,
		maxCycles:   maxCycles,
	}
}

// ResponseType discriminates the three shapes an Orchestrator run can
// return.
type ResponseType string

const (
	ResponseCompleted ResponseType = "completed"
	ResponsePending   ResponseType = "pending"
	ResponseError     ResponseType = "error"
)

// Response is the single return shape of Run.
type Response struct {
	Type           ResponseType             `json:"type"`
	SessionID      string                   `json:"session_id"`
	Response       string                   `json:"response,omitempty"`
	Message        string                   `json:"message,omitempty"`
	RequiredParams []string                 `json:"required_params,omitempty"`
	Context        *models.ExecutionContext `json:"context,omitempty"`
	ErrorMessage   string                   `json:"message_error,omitempty"`
}

// ErrInvalidRequest is returned by Run when user_id or user_input is
// missing — the caller (the worker invoking the Orchestrator) should not
// have enqueued such a job in the first place, but this guards against it.
var ErrInvalidRequest = errors.New("user_id and user_input are required")

// newExecutionID generates "exec_" followed by 8 lowercase hex characters,
// the durable log's execution_id convention.
func newExecutionID() string {
	return "exec_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// Run processes one user question end to end: loads the catalog,
// initializes logs, then drives the delegation loop until a final answer,
// a pending-input suspension, or the cycle cap.
func (o *Orchestrator) Run(ctx context.Context, sessionID, userID, userQuestion string) (Response, error) {
	if userID == "" || userQuestion == "" {
		return Response{}, ErrInvalidRequest
	}

	result, err := o.loader.Load(ctx, userID)
	if err != nil {
		slog.Error("definition loader unavailable, aborting execution", "user_id", userID, "error", err)
		return Response{Type: ResponseCompleted, SessionID: sessionID, Response: ApologyNoDefinitions}, nil
	}

	executionID := newExecutionID()
	start := time.Now()

	execCtx := models.NewExecutionContext(sessionID, userID, userQuestion, executionID)
	execCtx.AvailableManagers = result.Managers
	execCtx.AvailableAgents = result.Agents

	o.persistUserMessage(ctx, execCtx)

	chatHistory := o.recentChatHistory(ctx, sessionID)

	var invokedManagers []string
	var managerLogs []models.ManagerLog

	for cycle := 0; cycle < o.maxCycles; cycle++ {
		decision, err := o.adapter.DecideNextManagerAction(ctx, execCtx, chatHistory)
		if err != nil {
			slog.Error("delegator call failed", "execution_id", executionID, "error", err)
			execCtx.AppendHistory(models.LabelOrchestratorObserved, fmt.Sprintf("Erro ao consultar o modelo: %v", err))
			continue
		}

		if decision.Thought != "" {
			execCtx.AppendHistory(models.LabelOrchestratorThought, decision.Thought)
		}

		switch decision.Kind {
		case llm.DecisionFinalAnswer:
			return o.finalize(ctx, execCtx, invokedManagers, managerLogs, start)

		case llm.DecisionCallManager:
			mgr, ok := findManager(execCtx.AvailableManagers, decision.ManagerID)
			if !ok {
				execCtx.AppendHistory(models.LabelOrchestratorObserved, fmt.Sprintf("invalid manager: %s", decision.ManagerID))
				continue
			}

			invokedManagers = append(invokedManagers, mgr.ManagerID)

			stepCtx := execCtx.StepContext(decision.NewQuestion)

			outcome := o.managerExec.Run(ctx, mgr, stepCtx, userQuestion)

			// Only previous_results and react_history consolidate back into
			// the outer context. A manager's [FINAL_ANSWER] text is
			// step-local: it reaches the user only through the history
			// entries the final-response synthesis reads.
			execCtx.PreviousResults = execCtx.PreviousResults.Merge(stepCtx.PreviousResults)
			execCtx.ReactHistory = append(execCtx.ReactHistory, stepCtx.ReactHistory...)

			// The durable per-manager record is scoped to this invocation's
			// own delta: the tool results it produced and the history it
			// emitted, never the snapshot it inherited from earlier
			// delegations.
			managerLogs = append(managerLogs, models.ManagerLog{
				ManagerID:       mgr.ManagerID,
				NewQuestion:     decision.NewQuestion,
				PreviousResults: outcome.Produced,
				ReactHistory:    stepCtx.ReactHistory,
			})

			if outcome.RequiresInput {
				execCtx.PendingActions = outcome.PendingActions
				return o.suspend(ctx, execCtx, invokedManagers, managerLogs, start)
			}

		default:
			slog.Error("delegator produced an unrecognized decision kind", "execution_id", executionID, "kind", decision.Kind)
			return Response{Type: ResponseError, SessionID: sessionID, ErrorMessage: ApologyInternalError}, nil
		}
	}

	return o.finalize(ctx, execCtx, invokedManagers, managerLogs, start)
}

// persistUserMessage records the incoming question in the conversation
// log before delegation begins. A store failure is logged and swallowed —
// conversation logging is best-effort.
func (o *Orchestrator) persistUserMessage(ctx context.Context, execCtx *models.ExecutionContext) {
	if o.convo == nil {
		return
	}
	msg := models.ConversationMessage{
		SessionID:   execCtx.SessionID,
		ExecutionID: execCtx.ExecutionID,
		Role:        models.ConversationRoleUser,
		UserID:      execCtx.UserID,
		Message:     execCtx.UserQuestion,
		Timestamp:   time.Now().UTC(),
	}
	if err := o.convo.AppendConversationMessage(ctx, msg); err != nil {
		slog.Warn("failed to persist user message", "session_id", execCtx.SessionID, "error", err)
	}
}

// recentChatHistory fetches up to ChatHistoryLimit of the most recent
// messages for sessionID. A store failure degrades to an empty history
// rather than aborting the execution.
func (o *Orchestrator) recentChatHistory(ctx context.Context, sessionID string) []models.ConversationMessage {
	if o.convo == nil {
		return nil
	}
	history, err := o.convo.ConversationHistory(ctx, sessionID)
	if err != nil {
		slog.Warn("failed to load chat history, continuing with none", "session_id", sessionID, "error", err)
		return nil
	}
	if len(history) > ChatHistoryLimit {
		history = history[len(history)-ChatHistoryLimit:]
	}
	return history
}

// finalize always builds the user-visible text through
// ConsolidateFinalResponse — the synthesis pass over previous_results,
// react_history, and the per-agent formatting guidelines — then persists
// the durable execution log. The delegator's own final_answer draft is
// never returned directly.
func (o *Orchestrator) finalize(ctx context.Context, execCtx *models.ExecutionContext, invokedManagers []string, managerLogs []models.ManagerLog, start time.Time) (Response, error) {
	finalText, err := o.adapter.ConsolidateFinalResponse(ctx, execCtx, o.formattingGuidelines(execCtx))
	if err != nil {
		slog.Error("final-response synthesis failed", "execution_id", execCtx.ExecutionID, "error", err)
		finalText = ApologyInternalError
	}
	execCtx.FinalOutput = finalText

	o.persistLog(ctx, execCtx, invokedManagers, managerLogs, start, models.ExecutionStatusCompleted)

	return Response{Type: ResponseCompleted, SessionID: execCtx.SessionID, Response: finalText}, nil
}

// suspend persists the durable execution log for a pending-input
// suspension and builds the pending response shape.
func (o *Orchestrator) suspend(ctx context.Context, execCtx *models.ExecutionContext, invokedManagers []string, managerLogs []models.ManagerLog, start time.Time) (Response, error) {
	o.persistLog(ctx, execCtx, invokedManagers, managerLogs, start, models.ExecutionStatusPending)

	var required []string
	for _, p := range execCtx.PendingActions {
		required = append(required, p.RequiredParams...)
	}

	return Response{
		Type:           ResponsePending,
		SessionID:      execCtx.SessionID,
		Message:        "Precisamos de mais informações para continuar.",
		RequiredParams: required,
		Context:        execCtx,
	}, nil
}

// persistLog writes the durable LogEntry exactly once, per execution.
func (o *Orchestrator) persistLog(ctx context.Context, execCtx *models.ExecutionContext, invokedManagers []string, managerLogs []models.ManagerLog, start time.Time, status models.ExecutionStatus) {
	end := time.Now()
	entry := models.LogEntry{
		SessionID:      execCtx.SessionID,
		ExecutionID:    execCtx.ExecutionID,
		UserID:         execCtx.UserID,
		UserQuestion:   execCtx.UserQuestion,
		StartTS:        start,
		EndTS:          end,
		DurationMS:     end.Sub(start).Milliseconds(),
		Status:         status,
		Orchestrator:   invokedManagers,
		Managers:       managerLogs,
		FinalOutput:    execCtx.FinalOutput,
		PendingActions: execCtx.PendingActions,
	}
	if err := o.logger.UpsertExecutionLog(ctx, entry); err != nil {
		slog.Warn("failed to persist execution log", "execution_id", execCtx.ExecutionID, "error", err)
	}
}

// formattingGuidelines collects one formatting guideline per distinct
// agent_id present in previous_results.
func (o *Orchestrator) formattingGuidelines(execCtx *models.ExecutionContext) map[string]string {
	guidelines := make(map[string]string)
	for agentID := range execCtx.PreviousResults {
		agent, ok := execCtx.AvailableAgents[agentID]
		if !ok || agent.ResponseGuideline == "" {
			continue
		}
		guidelines[agentID] = fmt.Sprintf(
			"For results from the specialist '%s', follow this format rule: '%s'",
			agent.Description, agent.ResponseGuideline,
		)
	}
	return guidelines
}

func findManager(managers []models.ManagerDefinition, managerID string) (models.ManagerDefinition, bool) {
	for _, m := range managers {
		if m.ManagerID == managerID {
			return m, true
		}
	}
	return models.ManagerDefinition{}, false
}
