package manager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/agentexec"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/llm"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/registry"
)

type scriptedAdapter struct {
	responses []llm.ReactResponse
	calls     int
}

func (s *scriptedAdapter) DecideNextManagerAction(context.Context, *models.ExecutionContext, []models.ConversationMessage) (llm.Decision, error) {
	panic("not used by the manager executor")
}

func (s *scriptedAdapter) ReactCycle(_ context.Context, _ models.ManagerDefinition, _ string, _ *models.ExecutionContext) (llm.ReactResponse, error) {
	if s.calls >= len(s.responses) {
		return llm.ReactResponse{}, nil
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func (s *scriptedAdapter) ConsolidateFinalResponse(context.Context, *models.ExecutionContext, map[string]string) (string, error) {
	panic("not used by the manager executor")
}

type recordingLogger struct {
	observations []string
	toolResults  int
}

func (r *recordingLogger) RecordManagerObservation(_ context.Context, _, _, content string) {
	r.observations = append(r.observations, content)
}

func (r *recordingLogger) RecordToolResult(_ context.Context, _, _, _, _ string, _ *models.ToolResult) {
	r.toolResults++
}

type weatherTool struct{}

func (weatherTool) Name() string                             { return "getWeather" }
func (weatherTool) Description() string                      { return "fetches weather" }
func (weatherTool) MandatoryParams() []models.ParamDefinition { return nil }
func (weatherTool) Execute(_ context.Context, in registry.Input) (*models.ToolResult, error) {
	return &models.ToolResult{Success: true, Output: map[string]any{"temp": 27}}, nil
}

func weatherManager() models.ManagerDefinition {
	return models.ManagerDefinition{
		ManagerID: "WeatherManager",
		Agents: []models.AgentDefinition{
			{AgentID: "WeatherAgent", Tools: []models.ToolDefinition{
				{Name: "getWeather", Kind: models.ToolKindNative, Active: true},
			}},
		},
	}
}

func TestExecutor_Run_SingleToolHappyPath(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.ReactResponse{
		{Thought: "need weather", Action: `getWeather(city=Uberlandia)`},
		{FinalAnswer: "It's 27 degrees."},
	}}
	reg := registry.NewWithTools(weatherTool{})
	exec := agentexec.New(reg)
	logger := &recordingLogger{}
	m := New(adapter, exec, logger, 0)

	stepCtx := models.NewExecutionContext("sess-1", "user-1", "Get today's weather in Uberlandia", "exec-1")

	outcome := m.Run(context.Background(), weatherManager(), stepCtx, "What is the weather in Uberlandia today?")

	require.False(t, outcome.RequiresInput)
	assert.Equal(t, "It's 27 degrees.", stepCtx.FinalOutput)
	require.True(t, stepCtx.PreviousResults.Has("WeatherAgent", "getWeather"))
	assert.Equal(t, map[string]any{"temp": 27}, stepCtx.PreviousResults["WeatherAgent"]["getWeather"])
	require.True(t, outcome.Produced.Has("WeatherAgent", "getWeather"))

	var labels []string
	for _, h := range stepCtx.ReactHistory {
		labels = append(labels, h.Label)
	}
	assert.Equal(t, []string{
		models.LabelThought, models.LabelAction, models.LabelObservation, models.LabelFinalAnswer,
	}, labels)
}

func TestExecutor_Run_UnrecognizedActionRecordsObservationAndContinues(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.ReactResponse{
		{Action: "I should look this up"},
		{FinalAnswer: "done"},
	}}
	m := New(adapter, agentexec.New(registry.New()), &recordingLogger{}, 0)
	stepCtx := models.NewExecutionContext("sess-1", "user-1", "question", "exec-1")

	outcome := m.Run(context.Background(), weatherManager(), stepCtx, "question")

	require.False(t, outcome.RequiresInput)
	found := false
	for _, h := range stepCtx.ReactHistory {
		if h.Label == models.LabelObservation && h.Content == "Formato de ação não reconhecido: I should look this up" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExecutor_Run_UnknownToolRecordsObservation(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.ReactResponse{
		{Action: `unknownTool(x=1)`},
		{FinalAnswer: "done"},
	}}
	m := New(adapter, agentexec.New(registry.New()), &recordingLogger{}, 0)
	stepCtx := models.NewExecutionContext("sess-1", "user-1", "question", "exec-1")

	m.Run(context.Background(), weatherManager(), stepCtx, "question")

	found := false
	for _, h := range stepCtx.ReactHistory {
		if h.Label == models.LabelObservation && h.Content == "Ferramenta 'unknownTool' ou seu agente não foram encontrados" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExecutor_Run_CycleCapReachedRecordsObservation(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.ReactResponse{
		{Thought: "still thinking"},
		{Thought: "still thinking"},
	}}
	m := New(adapter, agentexec.New(registry.New()), &recordingLogger{}, 2)
	stepCtx := models.NewExecutionContext("sess-1", "user-1", "question", "exec-1")

	outcome := m.Run(context.Background(), weatherManager(), stepCtx, "question")

	require.False(t, outcome.RequiresInput)
	last := stepCtx.ReactHistory[len(stepCtx.ReactHistory)-1]
	assert.Equal(t, models.LabelObservation, last.Label)
	assert.Equal(t, "Limite máximo de ciclos atingido", last.Content)
}

func TestExecutor_Run_ProducedExcludesInheritedResults(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.ReactResponse{
		{Action: `getWeather(city=Uberlandia)`},
		{FinalAnswer: "done"},
	}}
	reg := registry.NewWithTools(weatherTool{})
	m := New(adapter, agentexec.New(reg), &recordingLogger{}, 0)

	stepCtx := models.NewExecutionContext("sess-1", "user-1", "weather?", "exec-1")
	stepCtx.PreviousResults["EmailAgent"] = models.ToolOutputs{"sendEmail": "sent"}

	outcome := m.Run(context.Background(), weatherManager(), stepCtx, "weather?")

	// The step context keeps the inherited snapshot, but the invocation's
	// own delta carries only what this run dispatched.
	require.True(t, stepCtx.PreviousResults.Has("EmailAgent", "sendEmail"))
	assert.True(t, outcome.Produced.Has("WeatherAgent", "getWeather"))
	assert.False(t, outcome.Produced.Has("EmailAgent", "sendEmail"))
}

type pendingTool struct{}

func (pendingTool) Name() string                             { return "sendEmail" }
func (pendingTool) Description() string                      { return "sends email" }
func (pendingTool) MandatoryParams() []models.ParamDefinition { return nil }
func (pendingTool) Execute(context.Context, registry.Input) (*models.ToolResult, error) {
	return &models.ToolResult{Success: false, NextStep: models.NextStepRequestUserInput, RequiredParams: []string{"recipient"}}, nil
}

func TestExecutor_Run_RequestUserInputSuspendsLoop(t *testing.T) {
	mgr := models.ManagerDefinition{
		ManagerID: "EmailManager",
		Agents: []models.AgentDefinition{
			{AgentID: "EmailAgent", Tools: []models.ToolDefinition{{Name: "sendEmail", Kind: models.ToolKindNative, Active: true}}},
		},
	}
	adapter := &scriptedAdapter{responses: []llm.ReactResponse{
		{Action: `sendEmail(subject=Meeting)`},
	}}
	reg := registry.NewWithTools(pendingTool{})
	m := New(adapter, agentexec.New(reg), &recordingLogger{}, 0)
	stepCtx := models.NewExecutionContext("sess-1", "user-1", "Send an email about the meeting", "exec-1")

	outcome := m.Run(context.Background(), mgr, stepCtx, "Send an email about the meeting")

	require.True(t, outcome.RequiresInput)
	require.Len(t, outcome.PendingActions, 1)
	assert.Equal(t, "EmailAgent", outcome.PendingActions[0].AgentID)
	assert.Equal(t, []string{"recipient"}, outcome.PendingActions[0].RequiredParams)
}
