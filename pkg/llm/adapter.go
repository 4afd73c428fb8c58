// Package llm implements the LLM Adapter: the single text-in/text-out
// boundary between the orchestration engine and a chat-completion model.
// Every call funnels through three operations — deciding the next
// delegation step, running one reason-act cycle inside a manager, and
// consolidating per-agent results into a final answer — each built from a
// prompt template rendered against the live execution context.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// Adapter is the contract the Orchestrator and Manager Executor depend on.
// Implementations never leak provider-specific types across this boundary.
type Adapter interface {
	// DecideNextManagerAction asks the model to pick the single next
	// delegation step given the execution context accumulated so far.
	DecideNextManagerAction(ctx context.Context, execCtx *models.ExecutionContext, chatHistory []models.ConversationMessage) (Decision, error)

	// ReactCycle runs one reason-act turn for a manager working a
	// sub-question, returning its parsed thought/action/final-answer.
	ReactCycle(ctx context.Context, manager models.ManagerDefinition, originalQuestion string, execCtx *models.ExecutionContext) (ReactResponse, error)

	// ConsolidateFinalResponse synthesizes the accumulated previous_results
	// into a single natural-language answer, honoring each agent's
	// response guideline when present.
	ConsolidateFinalResponse(ctx context.Context, execCtx *models.ExecutionContext, guidelines map[string]string) (string, error)
}

// OpenAIAdapter is an Adapter backed by a non-streaming chat-completion
// model. Streaming responses are out of scope: every operation here
// produces one bounded text blob the caller parses in full.
type OpenAIAdapter struct {
	client    *openai.Client
	model     string
	templates *TemplateSet
	timeout   time.Duration
}

// NewOpenAIAdapter builds an adapter around apiKey. templates may be nil,
// in which case the built-in Default* prompts are used — useful for tests
// and for first-run deployments that have not yet populated a prompt
// directory.
func NewOpenAIAdapter(apiKey, model string, templates *TemplateSet, timeout time.Duration) *OpenAIAdapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIAdapter{
		client:    openai.NewClient(apiKey),
		model:     model,
		templates: templates,
		timeout:   timeout,
	}
}

func (a *OpenAIAdapter) systemInstruction() string {
	if a.templates != nil {
		return a.templates.SystemInstruction
	}
	return DefaultSystemInstruction
}

func (a *OpenAIAdapter) delegatorPrompt() string {
	if a.templates != nil {
		return a.templates.DelegatorPrompt
	}
	return DefaultDelegatorPrompt
}

func (a *OpenAIAdapter) reactCyclePrompt() string {
	if a.templates != nil {
		return a.templates.ReactCyclePrompt
	}
	return DefaultReactCyclePrompt
}

// Completer is the plain text-in/text-out boundary a definition-driven
// LLM_PROMPT tool depends on, distinct from the three higher-level Adapter
// operations: it has no execution-context shape opinions of its own.
// CompleteWithConfig lets the caller apply a per-manager/agent model
// override; Complete is the zero-override shorthand.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithConfig(ctx context.Context, prompt string, override *models.ModelConfig) (string, error)
}

// Complete exposes the adapter's raw chat-completion call for tools whose
// entire behavior is "render a template, ask the model, return the text"
// (see pkg/tools.PromptExecutionTool).
func (a *OpenAIAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	return a.complete(ctx, prompt, nil)
}

// CompleteWithConfig is Complete with an optional per-manager/agent
// provider override applied on top of the adapter's own defaults.
func (a *OpenAIAdapter) CompleteWithConfig(ctx context.Context, prompt string, override *models.ModelConfig) (string, error) {
	return a.complete(ctx, prompt, override)
}

// resolveModelConfig collapses the defaults -> manager -> agent override
// cascade into the concrete request fields, falling back to the adapter's
// own configured default model wherever override is nil or a field is the
// zero value.
func (a *OpenAIAdapter) resolveModelConfig(override *models.ModelConfig) (model string, temperature float32, maxTokens int) {
	model = a.model
	if override == nil {
		return model, 0, 0
	}
	if override.Model != "" {
		model = override.Model
	}
	return model, override.Temperature, override.MaxTokens
}

// complete issues one non-streaming chat completion with a bounded
// per-call timeout, independent of the caller's own deadline.
func (a *OpenAIAdapter) complete(ctx context.Context, prompt string, override *models.ModelConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	model, temperature, maxTokens := a.resolveModelConfig(override)
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if temperature > 0 {
		req.Temperature = temperature
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *OpenAIAdapter) DecideNextManagerAction(ctx context.Context, execCtx *models.ExecutionContext, chatHistory []models.ConversationMessage) (Decision, error) {
	prompt := Render(a.delegatorPrompt(), map[string]string{
		"system_instruction": a.systemInstruction(),
		"user_id":            execCtx.UserID,
		"now":                time.Now().UTC().Format(time.RFC3339),
		"chat_history":       formatChatHistory(chatHistory),
		"previous_results":   marshalIndented(execCtx.PreviousResults),
		"react_history":      formatReactHistory(execCtx.ReactHistory),
		"manager_catalog":    marshalIndented(simplifyManagerCatalog(execCtx.AvailableManagers)),
		"user_input":         execCtx.UserQuestion,
	})

	raw, err := a.complete(ctx, prompt, nil)
	if err != nil {
		return Decision{}, err
	}

	decision := ParseDecision(raw)
	if decision.Kind == DecisionFinalAnswer && decision.FinalAnswer == ApologyMessage {
		slog.Warn("delegator response could not be parsed into a decision", "raw_response", raw)
	}
	return decision, nil
}

func (a *OpenAIAdapter) ReactCycle(ctx context.Context, manager models.ManagerDefinition, originalQuestion string, execCtx *models.ExecutionContext) (ReactResponse, error) {
	prompt := Render(a.reactCyclePrompt(), map[string]string{
		"system_instruction": a.systemInstruction(),
		"manager_id":         manager.ManagerID,
		"original_question":  originalQuestion,
		"new_question":       execCtx.UserQuestion,
		"history":            formatReactHistory(execCtx.ReactHistory),
		"tool_catalog":       marshalIndented(simplifyToolCatalog(manager)),
	})

	raw, err := a.complete(ctx, prompt, manager.Model)
	if err != nil {
		return ReactResponse{}, err
	}

	// An all-empty parse is a no-op cycle: nothing fires and the manager's
	// loop proceeds to its next cycle, not a fabricated final answer.
	resp := ParseReactResponse(raw)
	if resp.Thought == "" && resp.Action == "" && resp.FinalAnswer == "" {
		slog.Warn("reason-act response had no recognizable labeled section, treating as no-op cycle", "raw_response", raw)
	}
	return resp, nil
}

func (a *OpenAIAdapter) ConsolidateFinalResponse(ctx context.Context, execCtx *models.ExecutionContext, guidelines map[string]string) (string, error) {
	var sb strings.Builder
	sb.WriteString(a.systemInstruction())
	sb.WriteString("\n\nThe user asked: ")
	sb.WriteString(execCtx.UserQuestion)
	sb.WriteString("\n\nHere is everything gathered to answer it (agent_id -> tool_name -> output):\n")
	sb.WriteString(marshalIndented(execCtx.PreviousResults))

	if len(guidelines) > 0 {
		sb.WriteString("\n\nWhen composing the answer, follow each contributing agent's formatting guideline:\n")
		for agentID, guideline := range guidelines {
			if guideline == "" {
				continue
			}
			fmt.Fprintf(&sb, "- %s: %s\n", agentID, guideline)
		}
	}

	sb.WriteString("\nWrite a single, direct natural-language answer for the user. Do not mention tools, agents, or managers by name.")

	return a.complete(ctx, sb.String(), nil)
}

func marshalIndented(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func formatReactHistory(history []models.HistoryEntry) string {
	if len(history) == 0 {
		return "(none yet)"
	}
	var sb strings.Builder
	for _, h := range history {
		sb.WriteString(h.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatChatHistory(messages []models.ConversationMessage) string {
	if len(messages) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Message)
	}
	return sb.String()
}

// simplifiedManager/simplifiedTool trim a catalog entry down to the fields
// the delegator actually needs to pick a manager, keeping the prompt
// payload small. Managers flagged is_system_tool ARE included here — the
// flag only hides them from the listCapabilities output, and the delegator
// must be able to pick SYS_META_MANAGER / SYS_MEMORY_MANAGER. Managers
// whose active agents expose no active tools are omitted.
type simplifiedManager struct {
	ManagerID   string           `json:"manager_id"`
	Description string           `json:"description"`
	Tools       []simplifiedTool `json:"tools"`
}

type simplifiedTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  string `json:"parameters"` // "p1: T1, p2: T2" or "Nenhum"
}

func simplifyManagerCatalog(managers []models.ManagerDefinition) []simplifiedManager {
	out := make([]simplifiedManager, 0, len(managers))
	for _, m := range managers {
		if !m.Active {
			continue
		}
		var tools []simplifiedTool
		for _, a := range m.ActiveAgents() {
			for _, t := range a.ActiveTools() {
				tools = append(tools, simplifiedTool{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  formatParameters(t.MandatoryParams),
				})
			}
		}
		if len(tools) == 0 {
			continue
		}
		out = append(out, simplifiedManager{
			ManagerID:   m.ManagerID,
			Description: m.Description,
			Tools:       tools,
		})
	}
	return out
}

func formatParameters(params []models.ParamDefinition) string {
	if len(params) == 0 {
		return "Nenhum"
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, p.Type))
	}
	return strings.Join(parts, ", ")
}

// catalogAgent/agentTool carry the richer per-agent view the reason-act
// prompt renders, where the full parameter declarations help the model
// produce a well-formed tool call.
type catalogAgent struct {
	AgentID     string      `json:"agent_id"`
	Description string      `json:"description"`
	Tools       []agentTool `json:"tools"`
}

type agentTool struct {
	Name            string                   `json:"name"`
	Description     string                   `json:"description"`
	MandatoryParams []models.ParamDefinition `json:"mandatory_params,omitempty"`
}

func simplifyToolCatalog(manager models.ManagerDefinition) []catalogAgent {
	agents := manager.ActiveAgents()
	out := make([]catalogAgent, 0, len(agents))
	for _, a := range agents {
		active := a.ActiveTools()
		tools := make([]agentTool, 0, len(active))
		for _, t := range active {
			tools = append(tools, agentTool{
				Name:            t.Name,
				Description:     t.Description,
				MandatoryParams: t.MandatoryParams,
			})
		}
		out = append(out, catalogAgent{
			AgentID:     a.AgentID,
			Description: a.Description,
			Tools:       tools,
		})
	}
	return out
}
