package manager

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/llm"
)

// ParsedAction is a successfully interpreted [ACTION] section: a tool name
// and its call parameters.
type ParsedAction struct {
	ToolName string
	Params   map[string]any
}

// callExprPattern matches "toolName(k1=v1, k2=v2, ...)", including the
// degenerate zero-argument "toolName()" form.
var callExprPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*\((.*)\)\s*$`)

// ParseAction interprets one raw [ACTION] string. It first tries the JSON
// {"tool_name": ..., "params": {...}} shape (extracting the first balanced
// object, tolerating surrounding prose), then falls back to the
// toolName(k1=v1, k2=v2) call-expression shape. Returns ok=false if
// neither shape matches — the caller records an unrecognized-format
// observation and continues rather than treating this as a fatal error.
func ParseAction(raw string) (ParsedAction, bool) {
	if jsonStr, found := llm.ExtractBalancedJSON(raw); found {
		var parsed struct {
			ToolName string         `json:"tool_name"`
			Params   map[string]any `json:"params"`
		}
		if err := json.Unmarshal([]byte(jsonStr), &parsed); err == nil && parsed.ToolName != "" {
			if parsed.Params == nil {
				parsed.Params = map[string]any{}
			}
			return ParsedAction{ToolName: parsed.ToolName, Params: parsed.Params}, true
		}
	}

	m := callExprPattern.FindStringSubmatch(raw)
	if m == nil {
		return ParsedAction{}, false
	}

	return ParsedAction{ToolName: m[1], Params: parseCallArgs(m[2])}, true
}

// parseCallArgs splits a "k1=v1, k2=v2" argument list on top-level commas
// (commas nested inside quotes are not split on). Quoted values are
// unquoted, every other "k=v" value stays the literal string, and only a
// bare token with no "=" becomes a boolean-true flag keyed by its own
// name.
func parseCallArgs(argList string) map[string]any {
	params := map[string]any{}
	argList = strings.TrimSpace(argList)
	if argList == "" {
		return params
	}

	for _, arg := range splitTopLevel(argList) {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		key, value, hasEq := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !hasEq {
			params[key] = true
			continue
		}
		params[key] = coerceValue(strings.TrimSpace(value))
	}
	return params
}

func splitTopLevel(s string) []string {
	var parts []string
	var sb strings.Builder
	inQuotes := false
	var quoteChar byte

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuotes:
			sb.WriteByte(c)
			if c == quoteChar {
				inQuotes = false
			}
		case c == '"' || c == '\'':
			inQuotes = true
			quoteChar = c
			sb.WriteByte(c)
		case c == ',':
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	parts = append(parts, sb.String())
	return parts
}

// coerceValue strips surrounding quotes; anything else is kept as the
// literal string so a string-typed parameter like a zip code "007" is
// never silently retyped.
func coerceValue(v string) any {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
