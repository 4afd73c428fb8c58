package tools

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/llm"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/registry"
)

// PromptTool is the PromptExecutionTool dispatch target every kind=LLM_PROMPT
// tool resolves to: it renders the tool definition's
// prompt template against the caller-supplied params and returns the raw
// completion text as the tool's output.
type PromptTool struct {
	completer llm.Completer
}

// NewPromptTool builds the PromptExecutionTool plug-in around completer.
func NewPromptTool(completer llm.Completer) *PromptTool {
	return &PromptTool{completer: completer}
}

func (t *PromptTool) Name() string                             { return registry.DispatchKeyPromptExecution }
func (t *PromptTool) Description() string                       { return "Executes a definition-driven LLM prompt." }
func (t *PromptTool) MandatoryParams() []models.ParamDefinition { return nil }

func (t *PromptTool) Execute(ctx context.Context, in registry.Input) (*models.ToolResult, error) {
	spec := in.ToolDef.Prompt
	if spec == nil {
		return &models.ToolResult{Success: false, Output: fmt.Sprintf("tool %q has kind=LLM_PROMPT but no prompt spec", in.ToolDef.Name)}, nil
	}

	stringParams := make(map[string]string, len(in.Params))
	for k, v := range in.Params {
		stringParams[k] = fmt.Sprint(v)
	}

	prompt := llm.Render(spec.Template, stringParams)

	output, err := t.completer.CompleteWithConfig(ctx, prompt, in.AgentModel)
	if err != nil {
		return &models.ToolResult{Success: false, Output: fmt.Sprintf("prompt execution failed: %v", err)}, nil
	}

	return &models.ToolResult{Success: true, Output: output}, nil
}
