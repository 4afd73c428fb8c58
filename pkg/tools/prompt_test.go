package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/registry"
)

type stubCompleter struct {
	gotPrompt string
	response  string
	err       error
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.gotPrompt = prompt
	return s.response, s.err
}

func (s *stubCompleter) CompleteWithConfig(_ context.Context, prompt string, _ *models.ModelConfig) (string, error) {
	s.gotPrompt = prompt
	return s.response, s.err
}

func TestPromptTool_RendersTemplateAndReturnsCompletion(t *testing.T) {
	completer := &stubCompleter{response: "The summary is ready."}
	tool := NewPromptTool(completer)
	def := models.ToolDefinition{
		Name: "summarize",
		Kind: models.ToolKindLLMPrompt,
		Prompt: &models.PromptSpec{
			Template: "Summarize the following text for {audience}: {text}",
		},
	}

	result, err := tool.Execute(context.Background(), registry.Input{
		Params:  map[string]any{"audience": "executives", "text": "a very long report"},
		ToolDef: def,
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "The summary is ready.", result.Output)
	assert.Equal(t, "Summarize the following text for executives: a very long report", completer.gotPrompt)
}

func TestPromptTool_MissingPromptSpecFails(t *testing.T) {
	tool := NewPromptTool(&stubCompleter{})

	result, err := tool.Execute(context.Background(), registry.Input{
		ToolDef: models.ToolDefinition{Name: "badPrompt", Kind: models.ToolKindLLMPrompt},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestPromptTool_CompletionErrorIsReportedNotPropagated(t *testing.T) {
	tool := NewPromptTool(&stubCompleter{err: assert.AnError})

	result, err := tool.Execute(context.Background(), registry.Input{
		ToolDef: models.ToolDefinition{
			Name:   "summarize",
			Kind:   models.ToolKindLLMPrompt,
			Prompt: &models.PromptSpec{Template: "Summarize: {text}"},
		},
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
}
