// Package tools implements the built-in and definition-driven tool
// plug-ins registered into the Tool Registry: the two native system tools
// (listCapabilities, searchLongTermMemory) and the two definition-driven
// dispatch targets every API/LLM_PROMPT tool resolves to (ExecutarAPI,
// PromptExecutionTool).
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/registry"
)

// ListCapabilities is the SYS_META_MANAGER's native tool: it reads the
// execution context's available_managers, filters out system managers,
// and produces a human-readable bullet list of what the user can ask for.
type ListCapabilities struct{}

func (ListCapabilities) Name() string        { return models.ListCapabilitiesTool }
func (ListCapabilities) Description() string { return "Lists the non-system managers available to the current user." }
func (ListCapabilities) MandatoryParams() []models.ParamDefinition { return nil }

func (ListCapabilities) Execute(_ context.Context, in registry.Input) (*models.ToolResult, error) {
	if in.Context == nil {
		return &models.ToolResult{Success: true, Output: "No capabilities are available right now."}, nil
	}

	var sb strings.Builder
	count := 0
	for _, m := range in.Context.AvailableManagers {
		if m.IsSystemTool || !m.Active {
			continue
		}
		count++
		fmt.Fprintf(&sb, "- %s: %s\n", m.ManagerID, m.Description)
	}

	if count == 0 {
		return &models.ToolResult{Success: true, Output: "No specialist capabilities are currently configured for this user."}, nil
	}

	return &models.ToolResult{Success: true, Output: sb.String()}, nil
}
