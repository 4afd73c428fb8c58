// Package registry implements the Tool Registry: a process-wide,
// immutable-after-startup map from a tool's declared name to the Go
// plug-in that executes it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// ErrToolNotFound is returned by Get when no plug-in is registered under
// the requested key.
var ErrToolNotFound = errors.New("tool not found")

// Tool is the contract every plug-in implements. Rather than overload
// Execute's arity to distinguish static tools from definition-driven ones
// (API, LLM_PROMPT), every call receives the full Input struct; native
// static tools simply ignore the ToolDef field.
type Tool interface {
	Name() string
	Description() string
	MandatoryParams() []models.ParamDefinition
	Execute(ctx context.Context, in Input) (*models.ToolResult, error)
}

// Input bundles everything a plug-in's Execute needs: the caller-supplied
// params, the live execution context (so native tools like
// listCapabilities can read AvailableManagers), and — for definition-driven
// tools — the resolved ToolDefinition carrying the API/prompt spec.
type Input struct {
	Params  map[string]any
	Context *models.ExecutionContext
	ToolDef models.ToolDefinition

	// AgentModel carries the owning agent's LLM config override, if any,
	// through to PromptExecutionTool — the one plug-in that itself calls
	// the LLM Adapter. Other tools ignore it.
	AgentModel *models.ModelConfig
}

// Registry is the process-wide, read-only-after-startup tool catalog.
// Registration happens once at process start (NewRegistry); after that,
// Get/List only ever read, so no lock is required on the hot path beyond
// what sync.Map-style read safety needs — we use a plain map guarded by a
// RWMutex to keep Register available for tests that build a Registry
// incrementally.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// New creates an empty registry. Use Register (or NewWithTools) to
// populate it; by convention, production code populates it once during
// process bootstrap via an explicit list of constructors rather than
// filesystem plug-in discovery, so each tool's dependencies (HTTP client,
// LLM adapter, vector store) are injected rather than hidden globals.
func New() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// NewWithTools builds a registry pre-populated with the given tools, in
// order. A duplicate name logs a warning and the later registration wins.
func NewWithTools(tools ...Tool) *Registry {
	r := New()
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds (or replaces) a tool under its declared Name. Last
// registration wins on a duplicate name, with a warning logged.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		slog.Warn("duplicate tool registration, last registration wins", "tool_name", name)
	}
	r.tools[name] = t
}

// Get resolves a dispatch key to a tool instance.
func (r *Registry) Get(key string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, key)
	}
	return t, nil
}

// List returns a snapshot map of all registered tools, keyed by name. The
// returned map is a copy — mutating it does not affect the registry.
func (r *Registry) List() map[string]Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Tool, len(r.tools))
	for k, v := range r.tools {
		out[k] = v
	}
	return out
}

// Names returns the sorted list of registered tool names, mostly useful
// for deterministic test assertions and debug endpoints.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for k := range r.tools {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Dispatch keys for definition-driven tools: the kind determines the
// plug-in invoked, not the tool's own declared name.
const (
	DispatchKeyPromptExecution = "PromptExecutionTool"
	DispatchKeyAPIExecution    = "ExecutarAPI"
)

// DispatchKeyFor selects the registry lookup key for a tool definition:
// LLM_PROMPT tools always dispatch through PromptExecutionTool, API tools
// through ExecutarAPI, and everything else (NATIVE) dispatches under its
// own declared name.
func DispatchKeyFor(def models.ToolDefinition) string {
	switch def.Kind {
	case models.ToolKindLLMPrompt:
		return DispatchKeyPromptExecution
	case models.ToolKindAPI:
		return DispatchKeyAPIExecution
	default:
		return def.Name
	}
}
