package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// UpsertExecutionLog writes (or overwrites) the durable record of one
// Orchestrator execution. Called once at finalization — on successful
// final answer, on hitting the delegation cycle cap, or on pending-input
// suspension.
func (c *Client) UpsertExecutionLog(ctx context.Context, entry models.LogEntry) error {
	orchestratorJSON, err := json.Marshal(entry.Orchestrator)
	if err != nil {
		return fmt.Errorf("marshal orchestrator: %w", err)
	}
	managersJSON, err := json.Marshal(entry.Managers)
	if err != nil {
		return fmt.Errorf("marshal managers: %w", err)
	}
	pendingJSON, err := json.Marshal(entry.PendingActions)
	if err != nil {
		return fmt.Errorf("marshal pending_actions: %w", err)
	}
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO execution_logs (
			execution_id, session_id, user_id, user_question,
			start_ts, end_ts, duration_ms, status,
			orchestrator, managers, final_output, pending_actions, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (execution_id) DO UPDATE SET
			end_ts = EXCLUDED.end_ts,
			duration_ms = EXCLUDED.duration_ms,
			status = EXCLUDED.status,
			orchestrator = EXCLUDED.orchestrator,
			managers = EXCLUDED.managers,
			final_output = EXCLUDED.final_output,
			pending_actions = EXCLUDED.pending_actions,
			metadata = EXCLUDED.metadata`,
		entry.ExecutionID, entry.SessionID, entry.UserID, entry.UserQuestion,
		entry.StartTS, entry.EndTS, entry.DurationMS, entry.Status,
		orchestratorJSON, managersJSON, entry.FinalOutput, pendingJSON, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert execution log: %w", err)
	}
	return nil
}

// ExecutionLogByID fetches one durable execution record, mainly for
// session-history and debugging endpoints.
func (c *Client) ExecutionLogByID(ctx context.Context, executionID string) (models.LogEntry, error) {
	var (
		entry                                                      models.LogEntry
		orchestratorJSON, managersJSON, pendingJSON, metadataJSON []byte
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT execution_id, session_id, user_id, user_question,
			start_ts, end_ts, duration_ms, status,
			orchestrator, managers, final_output, pending_actions, metadata
		FROM execution_logs WHERE execution_id = $1`, executionID,
	).Scan(
		&entry.ExecutionID, &entry.SessionID, &entry.UserID, &entry.UserQuestion,
		&entry.StartTS, &entry.EndTS, &entry.DurationMS, &entry.Status,
		&orchestratorJSON, &managersJSON, &entry.FinalOutput, &pendingJSON, &metadataJSON,
	)
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("query execution log: %w", err)
	}

	if err := json.Unmarshal(orchestratorJSON, &entry.Orchestrator); err != nil {
		return models.LogEntry{}, fmt.Errorf("unmarshal orchestrator: %w", err)
	}
	if err := json.Unmarshal(managersJSON, &entry.Managers); err != nil {
		return models.LogEntry{}, fmt.Errorf("unmarshal managers: %w", err)
	}
	if err := json.Unmarshal(pendingJSON, &entry.PendingActions); err != nil {
		return models.LogEntry{}, fmt.Errorf("unmarshal pending_actions: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
		return models.LogEntry{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return entry, nil
}
