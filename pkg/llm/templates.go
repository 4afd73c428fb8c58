package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TemplateSet holds the three prompt templates the LLM Adapter loads from
// disk at construction time: the system instruction shared by every call,
// the delegator prompt used by DecideNextManagerAction, and the
// reason-act prompt used by ReactCycle. The final-response consolidation
// prompt shares the system instruction and is built inline (it has no
// manager-catalog section to vary).
type TemplateSet struct {
	SystemInstruction string
	DelegatorPrompt   string
	ReactCyclePrompt  string
}

// Template file names, relative to the configured prompt directory.
const (
	FileSystemInstruction = "system_instruction.tmpl"
	FileDelegatorPrompt   = "delegator_prompt.tmpl"
	FileReactCyclePrompt  = "react_cycle_prompt.tmpl"
)

// LoadTemplateSet reads the three named template files from dir. Missing
// files are a startup-fatal error: prompt templates are not optional
// ambient config, they define the adapter's entire behavior.
func LoadTemplateSet(dir string) (*TemplateSet, error) {
	system, err := readTemplate(dir, FileSystemInstruction)
	if err != nil {
		return nil, err
	}
	delegator, err := readTemplate(dir, FileDelegatorPrompt)
	if err != nil {
		return nil, err
	}
	react, err := readTemplate(dir, FileReactCyclePrompt)
	if err != nil {
		return nil, err
	}

	return &TemplateSet{
		SystemInstruction: system,
		DelegatorPrompt:   delegator,
		ReactCyclePrompt:  react,
	}, nil
}

func readTemplate(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to load prompt template %s: %w", path, err)
	}
	return string(content), nil
}

// Render substitutes every "{key}" occurrence in tmpl with the
// corresponding value from data. Unmatched placeholders are left as-is —
// the parser downstream must be total and never panic on a surprising LLM
// or template shape.
func Render(tmpl string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// DefaultSystemInstruction is used when no template directory is
// configured (e.g. in unit tests) so callers can still exercise the
// adapter end to end.
const DefaultSystemInstruction = `You are the orchestration engine for an AI agent system. Respond only in the requested structured format.`

// DefaultDelegatorPrompt is rendered with user_id, chat_history,
// user_input, the simplified manager catalog (as JSON), previous_results
// (as JSON), react_history (as JSON) and the current datetime.
const DefaultDelegatorPrompt = `{system_instruction}

User ID: {user_id}
Current datetime: {now}

Chat history:
{chat_history}

Previous results so far:
{previous_results}

Reasoning so far:
{react_history}

Available managers and their tools:
{manager_catalog}

User question: {user_input}

Decide the single next step. Respond with EXACTLY one JSON object, either:
{"decision": "call_manager", "manager_id": "<id>", "new_question": "<sub-question for that manager>", "thought": "<why>"}
or:
{"decision": "final_answer", "thought": "<why>", "final_answer": "<optional draft>"}
`

// DefaultReactCyclePrompt mirrors the reason-act contract every manager
// invocation follows.
const DefaultReactCyclePrompt = `{system_instruction}

You are the agent "{manager_id}" working on the following original question:
{original_question}

Your current sub-task: {new_question}

History so far:
{history}

Available tools:
{tool_catalog}

Respond using labeled sections. Emit [THOUGHT]: your reasoning, then EITHER
[ACTION]: a tool call (as JSON {"tool_name": "...", "params": {...}} or
toolName(k1=v1, k2=v2)) OR [FINAL_ANSWER]: your conclusion — never both.
`
