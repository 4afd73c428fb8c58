package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

func TestSimplifyManagerCatalog_DropsInactiveAndToollessManagers(t *testing.T) {
	managers := []models.ManagerDefinition{
		{ManagerID: "WeatherManager", Active: true, Agents: []models.AgentDefinition{
			{AgentID: "WeatherAgent", Active: true, Tools: []models.ToolDefinition{
				{Name: "getWeather", Active: true, MandatoryParams: []models.ParamDefinition{
					{Name: "city", Type: models.ParamTypeString, Required: true},
					{Name: "units", Type: models.ParamTypeString},
				}},
				{Name: "retiredTool", Active: false},
			}},
		}},
		{ManagerID: "RetiredManager", Active: false},
		{ManagerID: "EmptyManager", Active: true},
	}

	simplified := simplifyManagerCatalog(managers)

	assert.Len(t, simplified, 1)
	assert.Equal(t, "WeatherManager", simplified[0].ManagerID)
	assert.Len(t, simplified[0].Tools, 1)
	assert.Equal(t, "getWeather", simplified[0].Tools[0].Name)
	assert.Equal(t, "city: string, units: string", simplified[0].Tools[0].Parameters)
}

func TestSimplifyManagerCatalog_KeepsSystemManagers(t *testing.T) {
	managers := []models.ManagerDefinition{
		{ManagerID: models.SysMetaManagerID, Active: true, IsSystemTool: true, Agents: []models.AgentDefinition{
			{AgentID: models.SysMetaAgentID, Active: true, Tools: []models.ToolDefinition{
				{Name: models.ListCapabilitiesTool, Active: true},
			}},
		}},
	}

	simplified := simplifyManagerCatalog(managers)

	// is_system_tool hides a manager from the capability listing, never
	// from the delegator — otherwise SYS_META_MANAGER could not be chosen.
	assert.Len(t, simplified, 1)
	assert.Equal(t, models.SysMetaManagerID, simplified[0].ManagerID)
	assert.Equal(t, "Nenhum", simplified[0].Tools[0].Parameters)
}

func TestFormatReactHistory_Empty(t *testing.T) {
	assert.Equal(t, "(none yet)", formatReactHistory(nil))
}

func TestFormatReactHistory_RendersBracketedLabels(t *testing.T) {
	history := []models.HistoryEntry{
		{Label: models.LabelThought, Content: "checking forecast"},
		{Label: models.LabelAction, Content: "getWeather(city=Uberlandia)"},
	}

	out := formatReactHistory(history)

	assert.Contains(t, out, "[THOUGHT]: checking forecast")
	assert.Contains(t, out, "[ACTION]: getWeather(city=Uberlandia)")
}

func TestFormatChatHistory_Empty(t *testing.T) {
	assert.Equal(t, "(none)", formatChatHistory(nil))
}

func TestMarshalIndented_InvalidValueFallsBackToEmptyObject(t *testing.T) {
	// channels are not JSON-marshalable; the helper must not panic.
	out := marshalIndented(make(chan int))
	assert.Equal(t, "{}", out)
}

func TestOpenAIAdapter_FallsBackToDefaultTemplatesWhenNilSet(t *testing.T) {
	a := NewOpenAIAdapter("test-key", "gpt-4o-mini", nil, 0)

	assert.Equal(t, DefaultSystemInstruction, a.systemInstruction())
	assert.Equal(t, DefaultDelegatorPrompt, a.delegatorPrompt())
	assert.Equal(t, DefaultReactCyclePrompt, a.reactCyclePrompt())
}

func TestResolveModelConfig_NilOverrideUsesAdapterDefault(t *testing.T) {
	a := NewOpenAIAdapter("test-key", "gpt-4o-mini", nil, 0)

	model, temp, maxTokens := a.resolveModelConfig(nil)

	assert.Equal(t, "gpt-4o-mini", model)
	assert.Zero(t, temp)
	assert.Zero(t, maxTokens)
}

func TestResolveModelConfig_PartialOverrideKeepsAdapterModel(t *testing.T) {
	a := NewOpenAIAdapter("test-key", "gpt-4o-mini", nil, 0)

	model, temp, maxTokens := a.resolveModelConfig(&models.ModelConfig{Temperature: 0.2, MaxTokens: 500})

	assert.Equal(t, "gpt-4o-mini", model)
	assert.Equal(t, float32(0.2), temp)
	assert.Equal(t, 500, maxTokens)
}

func TestResolveModelConfig_ModelOverrideWins(t *testing.T) {
	a := NewOpenAIAdapter("test-key", "gpt-4o-mini", nil, 0)

	model, _, _ := a.resolveModelConfig(&models.ModelConfig{Model: "gpt-4o"})

	assert.Equal(t, "gpt-4o", model)
}

func TestOpenAIAdapter_UsesProvidedTemplates(t *testing.T) {
	set := &TemplateSet{
		SystemInstruction: "custom system",
		DelegatorPrompt:   "custom delegator",
		ReactCyclePrompt:  "custom react",
	}
	a := NewOpenAIAdapter("test-key", "gpt-4o-mini", set, 0)

	assert.Equal(t, "custom system", a.systemInstruction())
	assert.Equal(t, "custom delegator", a.delegatorPrompt())
	assert.Equal(t, "custom react", a.reactCyclePrompt())
}
