// Package agentexec implements the Agent Executor: the component that
// turns one (agent, tool_name, params) triple into a ToolResult, covering
// parameter validation, dispatch-key selection, and plug-in invocation.
package agentexec

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/registry"
)

// Executor runs tool calls against the shared Tool Registry.
type Executor struct {
	registry *registry.Registry
}

// New builds an Executor backed by reg.
func New(reg *registry.Registry) *Executor {
	return &Executor{registry: reg}
}

// Execute dispatches one tool call on behalf of agent. It never returns a
// Go error for an ordinary failure — every failure mode (unknown tool,
// missing params, missing plug-in, plug-in panic) is reported through
// ToolResult.Success, matching the rest of the delegation loop's
// error-as-data convention. A non-nil error return means the call could
// not be attempted at all (e.g. a canceled context).
func (e *Executor) Execute(ctx context.Context, agent models.AgentDefinition, toolName string, params map[string]any, execCtx *models.ExecutionContext) (result *models.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = &models.ToolResult{
				Success: false,
				Output:  fmt.Sprintf("tool %q panicked: %v", toolName, r),
			}
		}
	}()

	toolDef, ok := agent.FindTool(toolName)
	if !ok {
		return &models.ToolResult{Success: false, Output: "agent/tool invalid"}, nil
	}

	if missing := missingRequiredParams(toolDef, params); len(missing) > 0 {
		return &models.ToolResult{
			Success:        false,
			NextStep:       models.NextStepRequestUserInput,
			RequiredParams: missing,
		}, nil
	}

	key := registry.DispatchKeyFor(toolDef)
	plugin, lookupErr := e.registry.Get(key)
	if lookupErr != nil {
		return &models.ToolResult{Success: false, Output: fmt.Sprintf("no plug-in registered for dispatch key %q", key)}, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result, execErr := plugin.Execute(ctx, registry.Input{Params: params, Context: execCtx, ToolDef: toolDef, AgentModel: agent.Model})
	if execErr != nil {
		return &models.ToolResult{Success: false, Output: execErr.Error()}, nil
	}
	if result == nil {
		return &models.ToolResult{Success: false, Output: "tool returned no result"}, nil
	}
	return result, nil
}

func missingRequiredParams(toolDef models.ToolDefinition, params map[string]any) []string {
	var missing []string
	for _, name := range toolDef.RequiredParamNames() {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
