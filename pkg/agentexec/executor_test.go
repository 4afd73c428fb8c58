package agentexec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/registry"
)

type stubTool struct {
	name    string
	result  *models.ToolResult
	err     error
	panicOn bool
}

func (s *stubTool) Name() string                             { return s.name }
func (s *stubTool) Description() string                      { return "stub" }
func (s *stubTool) MandatoryParams() []models.ParamDefinition { return nil }
func (s *stubTool) Execute(_ context.Context, _ registry.Input) (*models.ToolResult, error) {
	if s.panicOn {
		panic("boom")
	}
	return s.result, s.err
}

func agentWith(tool models.ToolDefinition) models.AgentDefinition {
	return models.AgentDefinition{AgentID: "WeatherAgent", Tools: []models.ToolDefinition{tool}}
}

func TestExecutor_UnknownToolReturnsInvalid(t *testing.T) {
	exec := New(registry.New())

	result, err := exec.Execute(context.Background(), models.AgentDefinition{}, "missing", nil, nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "agent/tool invalid", result.Output)
}

func TestExecutor_MissingRequiredParamsRequestsUserInput(t *testing.T) {
	toolDef := models.ToolDefinition{
		Name: "getWeather", Kind: models.ToolKindNative,
		MandatoryParams: []models.ParamDefinition{{Name: "city", Required: true}},
	}
	exec := New(registry.New())

	result, err := exec.Execute(context.Background(), agentWith(toolDef), "getWeather", map[string]any{}, nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.NextStepRequestUserInput, result.NextStep)
	assert.Equal(t, []string{"city"}, result.RequiredParams)
}

func TestExecutor_MissingPluginReturnsFailure(t *testing.T) {
	toolDef := models.ToolDefinition{Name: "getWeather", Kind: models.ToolKindNative}
	exec := New(registry.New())

	result, err := exec.Execute(context.Background(), agentWith(toolDef), "getWeather", nil, nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Output.(string), "no plug-in registered")
}

func TestExecutor_DispatchesThroughRegisteredPlugin(t *testing.T) {
	toolDef := models.ToolDefinition{Name: "getWeather", Kind: models.ToolKindNative}
	reg := registry.NewWithTools(&stubTool{name: "getWeather", result: &models.ToolResult{Success: true, Output: "sunny"}})
	exec := New(reg)

	result, err := exec.Execute(context.Background(), agentWith(toolDef), "getWeather", nil, nil)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "sunny", result.Output)
}

func TestExecutor_APIKindDispatchesThroughExecutarAPI(t *testing.T) {
	toolDef := models.ToolDefinition{Name: "getWeather", Kind: models.ToolKindAPI}
	reg := registry.NewWithTools(&stubTool{name: registry.DispatchKeyAPIExecution, result: &models.ToolResult{Success: true, Output: "27C"}})
	exec := New(reg)

	result, err := exec.Execute(context.Background(), agentWith(toolDef), "getWeather", nil, nil)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "27C", result.Output)
}

func TestExecutor_PluginErrorBecomesFailureResult(t *testing.T) {
	toolDef := models.ToolDefinition{Name: "getWeather", Kind: models.ToolKindNative}
	reg := registry.NewWithTools(&stubTool{name: "getWeather", err: errors.New("upstream timeout")})
	exec := New(reg)

	result, err := exec.Execute(context.Background(), agentWith(toolDef), "getWeather", nil, nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "upstream timeout", result.Output)
}

func TestExecutor_PluginPanicBecomesFailureResult(t *testing.T) {
	toolDef := models.ToolDefinition{Name: "getWeather", Kind: models.ToolKindNative}
	reg := registry.NewWithTools(&stubTool{name: "getWeather", panicOn: true})
	exec := New(reg)

	result, err := exec.Execute(context.Background(), agentWith(toolDef), "getWeather", nil, nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Output.(string), "panicked")
}
