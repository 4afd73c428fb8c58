package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// ErrUserNotFound is returned by UserByID when no row matches.
var ErrUserNotFound = errors.New("user not found")

// UserRecord is the subset of the users table the orchestration engine
// needs: whether long-term memory search should be offered to this user.
type UserRecord struct {
	ID                    string
	LongTermMemoryEnabled bool
}

// UserByID fetches a user's long-term-memory flag. Absence of the user is
// reported via ErrUserNotFound so the caller can fall back to system
// defaults rather than failing the whole request.
func (c *Client) UserByID(ctx context.Context, userID string) (UserRecord, error) {
	var rec UserRecord
	err := c.db.QueryRowContext(ctx,
		`SELECT id, long_term_memory_enabled FROM users WHERE id = $1`, userID,
	).Scan(&rec.ID, &rec.LongTermMemoryEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("query user: %w", err)
	}
	return rec, nil
}

// ManagersForUser loads every active manager (with its active agents and
// tools) belonging to a project the user is a member of. It performs one
// query per table level rather than a single join, since the agents and
// tools of a manager form a three-level tree that does not flatten
// cleanly into one row set.
func (c *Client) ManagersForUser(ctx context.Context, userID string) ([]models.ManagerDefinition, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT m.manager_id, m.description, m.active, m.is_system_tool, m.model_config
		FROM managers m
		JOIN user_projects up ON up.project_id = m.project_id
		WHERE up.user_id = $1 AND m.active = TRUE
		ORDER BY m.manager_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query managers: %w", err)
	}
	defer rows.Close()

	var managers []models.ManagerDefinition
	for rows.Next() {
		var m models.ManagerDefinition
		var modelJSON sql.NullString
		if err := rows.Scan(&m.ManagerID, &m.Description, &m.Active, &m.IsSystemTool, &modelJSON); err != nil {
			return nil, fmt.Errorf("scan manager: %w", err)
		}
		if modelJSON.Valid && modelJSON.String != "" {
			var cfg models.ModelConfig
			if err := json.Unmarshal([]byte(modelJSON.String), &cfg); err != nil {
				return nil, fmt.Errorf("unmarshal model_config for %s: %w", m.ManagerID, err)
			}
			m.Model = &cfg
		}
		managers = append(managers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate managers: %w", err)
	}

	for i := range managers {
		agents, err := c.agentsForManager(ctx, managers[i].ManagerID)
		if err != nil {
			return nil, err
		}
		managers[i].Agents = agents
	}

	return managers, nil
}

// SeedManager upserts a manager definition (and its agents and tools) into
// the catalog under projectID, idempotently. Used at startup to apply the
// YAML-defined catalog seed (pkg/config) on top of whatever is already
// persisted, so operators can redeploy a seed file as often as they like.
func (c *Client) SeedManager(ctx context.Context, projectID string, m models.ManagerDefinition) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	managerModelJSON, err := marshalModelConfig(m.Model)
	if err != nil {
		return fmt.Errorf("marshal model_config for manager %s: %w", m.ManagerID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO managers (manager_id, project_id, description, active, is_system_tool, model_config)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (manager_id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			description = EXCLUDED.description,
			active = EXCLUDED.active,
			is_system_tool = EXCLUDED.is_system_tool,
			model_config = EXCLUDED.model_config`,
		m.ManagerID, projectID, m.Description, m.Active, m.IsSystemTool, managerModelJSON,
	); err != nil {
		return fmt.Errorf("seed manager %s: %w", m.ManagerID, err)
	}

	for _, a := range m.Agents {
		agentModelJSON, err := marshalModelConfig(a.Model)
		if err != nil {
			return fmt.Errorf("marshal model_config for agent %s/%s: %w", m.ManagerID, a.AgentID, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agents (agent_id, manager_id, description, active, response_guideline, model_config)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (manager_id, agent_id) DO UPDATE SET
				description = EXCLUDED.description,
				active = EXCLUDED.active,
				response_guideline = EXCLUDED.response_guideline,
				model_config = EXCLUDED.model_config`,
			a.AgentID, m.ManagerID, a.Description, a.Active, a.ResponseGuideline, agentModelJSON,
		); err != nil {
			return fmt.Errorf("seed agent %s/%s: %w", m.ManagerID, a.AgentID, err)
		}

		for _, t := range a.Tools {
			paramsJSON, err := json.Marshal(t.MandatoryParams)
			if err != nil {
				return fmt.Errorf("marshal mandatory_params for %s: %w", t.Name, err)
			}
			var apiJSON, promptJSON []byte
			if t.API != nil {
				if apiJSON, err = json.Marshal(t.API); err != nil {
					return fmt.Errorf("marshal api_spec for %s: %w", t.Name, err)
				}
			}
			if t.Prompt != nil {
				if promptJSON, err = json.Marshal(t.Prompt); err != nil {
					return fmt.Errorf("marshal prompt_spec for %s: %w", t.Name, err)
				}
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tools (manager_id, agent_id, name, description, mandatory_params, kind, api_spec, prompt_spec, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (manager_id, agent_id, name) DO UPDATE SET
					description = EXCLUDED.description,
					mandatory_params = EXCLUDED.mandatory_params,
					kind = EXCLUDED.kind,
					api_spec = EXCLUDED.api_spec,
					prompt_spec = EXCLUDED.prompt_spec,
					active = EXCLUDED.active`,
				m.ManagerID, a.AgentID, t.Name, t.Description, paramsJSON, t.Kind, nullableJSON(apiJSON), nullableJSON(promptJSON), t.Active,
			); err != nil {
				return fmt.Errorf("seed tool %s/%s/%s: %w", m.ManagerID, a.AgentID, t.Name, err)
			}
		}
	}

	return tx.Commit()
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// marshalModelConfig returns nil for a nil override so the column stores
// SQL NULL rather than the literal string "null".
func marshalModelConfig(cfg *models.ModelConfig) (any, error) {
	if cfg == nil {
		return nil, nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Client) agentsForManager(ctx context.Context, managerID string) ([]models.AgentDefinition, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT agent_id, description, active, response_guideline, model_config
		FROM agents
		WHERE manager_id = $1 AND active = TRUE
		ORDER BY agent_id`, managerID)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var agents []models.AgentDefinition
	for rows.Next() {
		var a models.AgentDefinition
		var modelJSON sql.NullString
		if err := rows.Scan(&a.AgentID, &a.Description, &a.Active, &a.ResponseGuideline, &modelJSON); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		if modelJSON.Valid && modelJSON.String != "" {
			var cfg models.ModelConfig
			if err := json.Unmarshal([]byte(modelJSON.String), &cfg); err != nil {
				return nil, fmt.Errorf("unmarshal model_config for %s: %w", a.AgentID, err)
			}
			a.Model = &cfg
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}

	for i := range agents {
		tools, err := c.toolsForAgent(ctx, managerID, agents[i].AgentID)
		if err != nil {
			return nil, err
		}
		agents[i].Tools = tools
	}

	return agents, nil
}

func (c *Client) toolsForAgent(ctx context.Context, managerID, agentID string) ([]models.ToolDefinition, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT name, description, mandatory_params, kind, api_spec, prompt_spec, active
		FROM tools
		WHERE manager_id = $1 AND agent_id = $2 AND active = TRUE
		ORDER BY name`, managerID, agentID)
	if err != nil {
		return nil, fmt.Errorf("query tools: %w", err)
	}
	defer rows.Close()

	var tools []models.ToolDefinition
	for rows.Next() {
		var (
			t                   models.ToolDefinition
			paramsJSON          []byte
			apiJSON, promptJSON sql.NullString
		)
		if err := rows.Scan(&t.Name, &t.Description, &paramsJSON, &t.Kind, &apiJSON, &promptJSON, &t.Active); err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		if len(paramsJSON) > 0 {
			if err := json.Unmarshal(paramsJSON, &t.MandatoryParams); err != nil {
				return nil, fmt.Errorf("unmarshal mandatory_params for %s: %w", t.Name, err)
			}
		}
		if apiJSON.Valid && apiJSON.String != "" {
			var api models.APISpec
			if err := json.Unmarshal([]byte(apiJSON.String), &api); err != nil {
				return nil, fmt.Errorf("unmarshal api_spec for %s: %w", t.Name, err)
			}
			t.API = &api
		}
		if promptJSON.Valid && promptJSON.String != "" {
			var prompt models.PromptSpec
			if err := json.Unmarshal([]byte(promptJSON.String), &prompt); err != nil {
				return nil, fmt.Errorf("unmarshal prompt_spec for %s: %w", t.Name, err)
			}
			t.Prompt = &prompt
		}
		tools = append(tools, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tools: %w", err)
	}
	return tools, nil
}
