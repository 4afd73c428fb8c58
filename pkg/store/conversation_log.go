package store

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// AppendConversationMessage records one chronological entry in a session's
// conversation log.
func (c *Client) AppendConversationMessage(ctx context.Context, msg models.ConversationMessage) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (session_id, execution_id, role, user_id, message, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.SessionID, msg.ExecutionID, msg.Role, msg.UserID, msg.Message, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append conversation message: %w", err)
	}
	return nil
}

// ConversationHistory returns every message for a session in chronological
// order, used to populate the delegator prompt's chat_history section.
func (c *Client) ConversationHistory(ctx context.Context, sessionID string) ([]models.ConversationMessage, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT session_id, execution_id, role, user_id, message, timestamp
		FROM conversation_messages
		WHERE session_id = $1
		ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query conversation history: %w", err)
	}
	defer rows.Close()

	var messages []models.ConversationMessage
	for rows.Next() {
		var m models.ConversationMessage
		if err := rows.Scan(&m.SessionID, &m.ExecutionID, &m.Role, &m.UserID, &m.Message, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan conversation message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation history: %w", err)
	}
	return messages, nil
}
