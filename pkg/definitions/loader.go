// Package definitions implements the Definition Loader: assembling the
// manager/agent/tool catalog a given user is permitted to see, always
// augmented with the built-in system managers.
package definitions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/store"
)

// ErrDefinitionsUnavailable is returned when the catalog store cannot be
// reached at all — distinct from an unknown user, which degrades instead
// of failing.
var ErrDefinitionsUnavailable = errors.New("definitions unavailable")

// CatalogStore is the subset of *store.Client the loader depends on.
type CatalogStore interface {
	UserByID(ctx context.Context, userID string) (store.UserRecord, error)
	ManagersForUser(ctx context.Context, userID string) ([]models.ManagerDefinition, error)
}

// Loader assembles the catalog for a given user on demand. It performs no
// caching: catalog definitions may change between one execution and the
// next, so every call re-reads the store.
type Loader struct {
	catalog CatalogStore
}

// New builds a Loader backed by catalog.
func New(catalog CatalogStore) *Loader {
	return &Loader{catalog: catalog}
}

// Result is the catalog assembled for one user: the manager list in
// display/dispatch order, and a flattened lookup by agent_id.
type Result struct {
	Managers []models.ManagerDefinition
	Agents   map[string]models.AgentDefinition
}

// Load fetches the manager/agent/tool catalog for userID, always
// prepending SYS_META_MANAGER and, when the user has long-term memory
// enabled, appending SYS_MEMORY_MANAGER. An unreachable store fails with
// ErrDefinitionsUnavailable; an unknown user logs a warning and degrades
// to the system managers alone.
func (l *Loader) Load(ctx context.Context, userID string) (Result, error) {
	user, err := l.catalog.UserByID(ctx, userID)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		slog.Warn("user not found, loading system default catalog only", "user_id", userID)
		return l.assemble(nil, false), nil
	case err != nil:
		return Result{}, fmt.Errorf("%w: %s", ErrDefinitionsUnavailable, err)
	}

	managers, err := l.catalog.ManagersForUser(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrDefinitionsUnavailable, err)
	}

	return l.assemble(managers, user.LongTermMemoryEnabled), nil
}

func (l *Loader) assemble(userManagers []models.ManagerDefinition, longTermMemoryEnabled bool) Result {
	managers := make([]models.ManagerDefinition, 0, len(userManagers)+2)
	managers = append(managers, systemMetaManager())
	managers = append(managers, userManagers...)
	if longTermMemoryEnabled {
		managers = append(managers, systemMemoryManager())
	}

	agents := make(map[string]models.AgentDefinition)
	for _, m := range managers {
		for _, a := range m.Agents {
			agents[a.AgentID] = a
		}
	}

	return Result{Managers: managers, Agents: agents}
}

func systemMetaManager() models.ManagerDefinition {
	return models.ManagerDefinition{
		ManagerID:    models.SysMetaManagerID,
		Description:  "Lists the capabilities available to the current user.",
		Active:       true,
		IsSystemTool: true,
		Agents: []models.AgentDefinition{
			{
				AgentID:     models.SysMetaAgentID,
				Description: "Reports which managers and tools are available.",
				Active:      true,
				Tools: []models.ToolDefinition{
					{
						Name:        models.ListCapabilitiesTool,
						Description: "Lists the non-system managers and agents available to the user.",
						Kind:        models.ToolKindNative,
						Active:      true,
					},
				},
			},
		},
	}
}

func systemMemoryManager() models.ManagerDefinition {
	return models.ManagerDefinition{
		ManagerID:    models.SysMemoryManagerID,
		Description:  "Searches the user's long-term memory for relevant prior context.",
		Active:       true,
		IsSystemTool: true,
		Agents: []models.AgentDefinition{
			{
				AgentID:     models.SysMemoryAgentID,
				Description: "Searches previously stored memories.",
				Active:      true,
				Tools: []models.ToolDefinition{
					{
						Name:        models.SearchLongTermMemoryTool,
						Description: "Searches long-term memory for passages relevant to a query.",
						Kind:        models.ToolKindNative,
						Active:      true,
						MandatoryParams: []models.ParamDefinition{
							{Name: "query", Type: models.ParamTypeString, Required: true, Description: "search text"},
						},
					},
				},
			},
		},
	}
}
