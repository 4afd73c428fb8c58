// Package executionlog wires together the two halves of the Execution
// Logger: best-effort live observation/tool-result logging during a run
// (RecordManagerObservation/RecordToolResult, never aborting the loop on
// failure), and the exactly-once durable write at the end of a run
// (UpsertExecutionLog). It is the concrete type satisfying
// orchestrator.Logger, applying a masking.Service pass to tool output
// before it reaches any log line.
package executionlog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/masking"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// LogStore is the subset of *store.Client used for the durable,
// exactly-once write at the end of a run.
type LogStore interface {
	UpsertExecutionLog(ctx context.Context, entry models.LogEntry) error
}

// Logger implements manager.ExecutionLogger + orchestrator.ExecutionLog.
type Logger struct {
	store  LogStore
	masker *masking.Service
}

// New builds a Logger. masker may be nil to disable output masking
// (tests only — production wiring always supplies one).
func New(store LogStore, masker *masking.Service) *Logger {
	return &Logger{store: store, masker: masker}
}

// RecordManagerObservation logs one react-loop entry as it is emitted.
// This is a visibility aid only: the durable record is the full
// react_history captured in the LogEntry written by UpsertExecutionLog.
func (l *Logger) RecordManagerObservation(_ context.Context, executionID, managerID, content string) {
	slog.Info("manager observation", "execution_id", executionID, "manager_id", managerID, "content", l.mask(content))
}

// RecordToolResult logs one tool invocation's outcome, masking secret-
// shaped substrings in the output before it ever reaches a log line.
func (l *Logger) RecordToolResult(_ context.Context, executionID, managerID, agentID, toolName string, result *models.ToolResult) {
	slog.Info("tool result",
		"execution_id", executionID,
		"manager_id", managerID,
		"agent_id", agentID,
		"tool_name", toolName,
		"success", result.Success,
		"output", l.mask(stringifyOutput(result.Output)),
	)
}

// UpsertExecutionLog persists the final, hierarchical execution record.
// The caller (orchestrator.persistLog) is responsible for logging and
// swallowing a failure — log persistence is best-effort.
func (l *Logger) UpsertExecutionLog(ctx context.Context, entry models.LogEntry) error {
	return l.store.UpsertExecutionLog(ctx, entry)
}

func (l *Logger) mask(text string) string {
	if l.masker == nil {
		return text
	}
	return l.masker.Mask(text)
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
			return ""
		}
		return string(b)
	}
}
