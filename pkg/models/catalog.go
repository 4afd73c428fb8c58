// Package models defines the data types shared across the orchestration
// engine: the manager/agent/tool catalog, the per-request execution
// context, and the durable log shapes persisted by the Execution Logger
// and Conversation Log.
package models

import "strings"

// ToolKind discriminates how a ToolDefinition is dispatched. Modeled as a
// tagged-variant string type, rather than two booleans, so a switch over
// it stays exhaustive-checkable as new kinds are added.
type ToolKind string

const (
	ToolKindAPI       ToolKind = "API"
	ToolKindLLMPrompt ToolKind = "LLM_PROMPT"
	ToolKindNative    ToolKind = "NATIVE"
)

// AuthType selects how an API tool authenticates its HTTP calls.
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBearer AuthType = "bearer"
)

// ParamType is a semantic type tag for a tool parameter. Not enforced as a
// Go type at dispatch time — the LLM produces a string or JSON value and
// tools are responsible for their own coercion.
type ParamType string

const (
	ParamTypeString  ParamType = "string"
	ParamTypeNumber  ParamType = "number"
	ParamTypeBoolean ParamType = "boolean"
	ParamTypeObject  ParamType = "object"
	ParamTypeArray   ParamType = "array"
)

// ParamDefinition describes one mandatory parameter of a tool.
type ParamDefinition struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Description string    `json:"description" yaml:"description"`
	Required    bool      `json:"required" yaml:"required"`
}

// AuthConfig describes how an API tool authenticates.
type AuthConfig struct {
	Type  AuthType `json:"type" yaml:"type"`
	Token string   `json:"token,omitempty" yaml:"token,omitempty"`
}

// APISpec holds the kind=API-specific declaration of a tool.
type APISpec struct {
	Method  string            `json:"method" yaml:"method"`
	BaseURL string            `json:"base_url" yaml:"base_url"` // may contain {placeholder} path segments
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"` // template, may contain {placeholder}
	Auth    AuthConfig        `json:"auth" yaml:"auth"`
}

// PromptSpec holds the kind=LLM_PROMPT-specific declaration of a tool.
type PromptSpec struct {
	Template string `json:"template" yaml:"template"` // {placeholder} substitutions
}

// ToolDefinition is the declarative, immutable-within-one-execution spec
// for a single tool. Exactly one of API / Prompt is populated, selected by
// Kind; NATIVE tools populate neither (their behavior lives in Go code
// registered under Name in the Tool Registry).
type ToolDefinition struct {
	Name            string            `json:"name" yaml:"name"`
	Description     string            `json:"description" yaml:"description"`
	MandatoryParams []ParamDefinition `json:"mandatory_params" yaml:"mandatory_params"`
	Kind            ToolKind          `json:"kind" yaml:"kind"`
	API             *APISpec          `json:"api,omitempty" yaml:"api,omitempty"`
	Prompt          *PromptSpec       `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Active          bool              `json:"active" yaml:"active"`
}

// RequiredParamNames returns the names of parameters flagged required=true.
func (t ToolDefinition) RequiredParamNames() []string {
	names := make([]string, 0, len(t.MandatoryParams))
	for _, p := range t.MandatoryParams {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// AgentDefinition is a named specialist within a manager, owning a set of
// tools (each tool belongs to exactly one agent within a given manager)
// and an optional formatting guideline consulted during final-response
// synthesis.
type AgentDefinition struct {
	AgentID           string           `json:"agent_id" yaml:"agent_id"`
	Description       string           `json:"description" yaml:"description"`
	Active            bool             `json:"active" yaml:"active"`
	Tools             []ToolDefinition `json:"tools" yaml:"tools"`
	ResponseGuideline string           `json:"response_guideline,omitempty" yaml:"response_guideline,omitempty"`
	Model             *ModelConfig     `json:"model,omitempty" yaml:"model,omitempty"`
}

// ActiveTools returns the subset of Tools with Active == true.
func (a AgentDefinition) ActiveTools() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(a.Tools))
	for _, t := range a.Tools {
		if t.Active {
			out = append(out, t)
		}
	}
	return out
}

// FindTool locates a tool definition on this agent by name (case-sensitive
// exact match — the case-insensitive match used during dispatch lives in
// the Manager Executor, see pkg/manager).
func (a AgentDefinition) FindTool(name string) (ToolDefinition, bool) {
	for _, t := range a.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDefinition{}, false
}

// ModelConfig overrides the default LLM provider settings for a single
// manager. Any zero field falls back to the adapter's own default — see
// pkg/llm's resolveModelConfig — so a catalog author only needs to name
// the fields they actually want to change.
type ModelConfig struct {
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// ManagerDefinition is a named bundle of agents exposing a thematic
// capability. IsSystemTool managers are hidden from the capability
// listing (e.g. SYS_META_MANAGER, SYS_MEMORY_MANAGER).
type ManagerDefinition struct {
	ManagerID    string            `json:"manager_id" yaml:"manager_id"`
	Description  string            `json:"description" yaml:"description"`
	Active       bool              `json:"active" yaml:"active"`
	Agents       []AgentDefinition `json:"agents" yaml:"agents"`
	IsSystemTool bool              `json:"is_system_tool" yaml:"is_system_tool"`
	Model        *ModelConfig      `json:"model,omitempty" yaml:"model,omitempty"`
}

// ActiveAgents returns the subset of Agents with Active == true.
func (m ManagerDefinition) ActiveAgents() []AgentDefinition {
	out := make([]AgentDefinition, 0, len(m.Agents))
	for _, a := range m.Agents {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}

// FindAgentByTool returns the agent owning a tool matched case-insensitively
// by name, and the matched tool definition.
func (m ManagerDefinition) FindAgentByTool(toolName string) (AgentDefinition, ToolDefinition, bool) {
	for _, a := range m.Agents {
		for _, t := range a.Tools {
			if strings.EqualFold(t.Name, toolName) {
				return a, t, true
			}
		}
	}
	return AgentDefinition{}, ToolDefinition{}, false
}

// Built-in system manager/agent/tool IDs, always injected by the
// Definition Loader.
const (
	SysMetaManagerID     = "SYS_META_MANAGER"
	SysMetaAgentID       = "SystemAgent"
	ListCapabilitiesTool = "listCapabilities"

	SysMemoryManagerID       = "SYS_MEMORY_MANAGER"
	SysMemoryAgentID         = "MemoryAgent"
	SearchLongTermMemoryTool = "searchLongTermMemory"
)
