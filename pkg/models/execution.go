package models

import "time"

// HistoryEntry is one labeled line in a react_history sequence.
type HistoryEntry struct {
	Label   string `json:"label"` // e.g. "THOUGHT", "ACTION", "OBSERVATION", "FINAL_ANSWER", "ORCHESTRATOR_THOUGHT", "ORCHESTRATOR_OBSERVATION"
	Content string `json:"content"`
}

// History entry labels, matching the bracketed tags used in prompts and in
// the durable log.
const (
	LabelThought              = "THOUGHT"
	LabelAction               = "ACTION"
	LabelObservation          = "OBSERVATION"
	LabelFinalAnswer          = "FINAL_ANSWER"
	LabelOrchestratorThought  = "ORCHESTRATOR_THOUGHT"
	LabelOrchestratorObserved = "ORCHESTRATOR_OBSERVATION"
)

// String renders an entry as "[LABEL]: content", the wire format used in
// prompts and in the durable log.
func (h HistoryEntry) String() string {
	return "[" + h.Label + "]: " + h.Content
}

// PendingAction records a tool call suspended on missing user-supplied
// parameters.
type PendingAction struct {
	AgentID        string   `json:"agent_id"`
	RequiredParams []string `json:"required_params"`
}

// ToolOutputs maps tool name to its raw (string or JSON-able) output for a
// single agent, i.e. previous_results[agent_id].
type ToolOutputs map[string]any

// PreviousResults is the per-execution monotonic results map
// (agent_id -> tool_name -> output). Entries are only ever added or
// overwritten, never removed, for the lifetime of one execution.
type PreviousResults map[string]ToolOutputs

// Clone performs a deep copy sufficient for the state-merge snapshot
// protocol used at delegation boundaries: nested maps are copied by value,
// and tool outputs (which are only ever replaced wholesale, never mutated
// in place) are copied by reference.
func (p PreviousResults) Clone() PreviousResults {
	if p == nil {
		return PreviousResults{}
	}
	out := make(PreviousResults, len(p))
	for agentID, tools := range p {
		toolsCopy := make(ToolOutputs, len(tools))
		for name, output := range tools {
			toolsCopy[name] = output
		}
		out[agentID] = toolsCopy
	}
	return out
}

// Merge overlays other on top of p: new agent/tool keys are added, and
// colliding (agent_id, tool_name) keys are overwritten by other's value
// (last write wins). Keys present only in p are left untouched, so a
// sibling manager's results are never lost by merging another manager's
// results in afterwards. p is mutated and returned.
func (p PreviousResults) Merge(other PreviousResults) PreviousResults {
	if p == nil {
		p = PreviousResults{}
	}
	for agentID, tools := range other {
		existing, ok := p[agentID]
		if !ok {
			existing = make(ToolOutputs, len(tools))
			p[agentID] = existing
		}
		for name, output := range tools {
			existing[name] = output
		}
	}
	return p
}

// Has reports whether previous_results[agentID][toolName] is present.
func (p PreviousResults) Has(agentID, toolName string) bool {
	tools, ok := p[agentID]
	if !ok {
		return false
	}
	_, ok = tools[toolName]
	return ok
}

// ExecutionContext is the per-request mutable state carried through the
// Orchestrator → Manager Executor → Agent Executor delegation loops.
type ExecutionContext struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	UserQuestion string `json:"user_question"`
	ExecutionID  string `json:"execution_id"`

	PreviousResults PreviousResults `json:"previous_results"`
	ReactHistory    []HistoryEntry  `json:"react_history"`
	PendingActions  []PendingAction `json:"pending_actions"`
	FinalOutput     string          `json:"final_output"`

	AvailableManagers []ManagerDefinition        `json:"available_managers"`
	AvailableAgents   map[string]AgentDefinition `json:"available_agents"`
}

// NewExecutionContext builds a freshly initialized context for one
// Orchestrator invocation.
func NewExecutionContext(sessionID, userID, userQuestion, executionID string) *ExecutionContext {
	return &ExecutionContext{
		SessionID:       sessionID,
		UserID:          userID,
		UserQuestion:    userQuestion,
		ExecutionID:     executionID,
		PreviousResults: PreviousResults{},
		ReactHistory:    []HistoryEntry{},
		PendingActions:  []PendingAction{},
	}
}

// AppendHistory appends one labeled entry to react_history. react_history
// is append-only for the duration of an execution: entries are never
// rewritten or removed, only added.
func (c *ExecutionContext) AppendHistory(label, content string) {
	c.ReactHistory = append(c.ReactHistory, HistoryEntry{Label: label, Content: content})
}

// StepContext builds the deep-copied "step context" the Orchestrator hands
// to the Manager Executor for one call_manager decision: a copy of the
// outer context with react_history reset to empty and user_question
// replaced by the new sub-question. AvailableManagers / AvailableAgents
// are shared by reference (read-only catalog data).
func (c *ExecutionContext) StepContext(newQuestion string) *ExecutionContext {
	return &ExecutionContext{
		SessionID:         c.SessionID,
		UserID:            c.UserID,
		UserQuestion:      newQuestion,
		ExecutionID:       c.ExecutionID,
		PreviousResults:   c.PreviousResults.Clone(),
		ReactHistory:      []HistoryEntry{},
		PendingActions:    []PendingAction{},
		AvailableManagers: c.AvailableManagers,
		AvailableAgents:   c.AvailableAgents,
	}
}

// ExecutionStatus is the terminal state of a logged execution.
type ExecutionStatus string

const (
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusPending   ExecutionStatus = "pending_input"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ManagerLog is the durable record of one Manager Executor invocation
// within an execution.
type ManagerLog struct {
	ManagerID       string          `json:"manager_id"`
	NewQuestion     string          `json:"new_question"`
	PreviousResults PreviousResults `json:"previous_results"`
	ReactHistory    []HistoryEntry  `json:"react_history"`
}

// LogEntry is the durable, hierarchical record of one Orchestrator
// execution, written by the Execution Logger.
type LogEntry struct {
	SessionID      string          `json:"session_id"`
	ExecutionID    string          `json:"execution_id"`
	UserID         string          `json:"user_id"`
	UserQuestion   string          `json:"user_question"`
	StartTS        time.Time       `json:"start_ts"`
	EndTS          time.Time       `json:"end_ts"`
	DurationMS     int64           `json:"duration_ms"`
	Status         ExecutionStatus `json:"status"`
	Orchestrator   []string        `json:"orchestrator"` // manager_ids invoked, in order
	Managers       []ManagerLog    `json:"managers"`
	FinalOutput    string          `json:"final_output,omitempty"`
	PendingActions []PendingAction `json:"pending_actions,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

// ConversationRole distinguishes the author of a persisted chat message.
type ConversationRole string

const (
	ConversationRoleUser   ConversationRole = "user"
	ConversationRoleSystem ConversationRole = "system"
)

// ConversationMessage is one entry in the per-session chronological
// message store.
type ConversationMessage struct {
	SessionID   string           `json:"session_id"`
	ExecutionID string           `json:"execution_id"`
	Role        ConversationRole `json:"role"`
	UserID      string           `json:"user_id"`
	Message     string           `json:"message"`
	Timestamp   time.Time        `json:"timestamp"`
}
