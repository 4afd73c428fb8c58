package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DecisionKind is the discriminator of a delegator decision.
type DecisionKind string

const (
	DecisionCallManager DecisionKind = "call_manager"
	DecisionFinalAnswer DecisionKind = "final_answer"
)

// Decision is the parsed result of DecideNextManagerAction.
type Decision struct {
	Kind        DecisionKind
	ManagerID   string
	NewQuestion string
	Thought     string
	FinalAnswer string
}

// ApologyMessage is returned as the final answer whenever the delegator's
// raw output cannot be parsed into a decision.
const ApologyMessage = "I'm sorry, I wasn't able to process that request. Could you rephrase your question?"

// ExtractBalancedJSON scans text for the first top-level `{...}` substring
// with balanced braces, tracking (and skipping over) braces that occur
// inside JSON string literals. Returns ("", false) if no balanced object is
// found; this function never panics.
func ExtractBalancedJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseDecision parses a delegator LLM response into a Decision. Any
// failure to find or unmarshal a balanced JSON object, or an unrecognized
// "decision" value, coerces into a final_answer apology.
func ParseDecision(raw string) Decision {
	jsonStr, ok := ExtractBalancedJSON(raw)
	if !ok {
		return Decision{Kind: DecisionFinalAnswer, FinalAnswer: ApologyMessage}
	}

	var parsed struct {
		Decision    string `json:"decision"`
		ManagerID   string `json:"manager_id"`
		NewQuestion string `json:"new_question"`
		Thought     string `json:"thought"`
		FinalAnswer string `json:"final_answer"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return Decision{Kind: DecisionFinalAnswer, FinalAnswer: ApologyMessage}
	}

	switch DecisionKind(parsed.Decision) {
	case DecisionCallManager:
		return Decision{
			Kind:        DecisionCallManager,
			ManagerID:   parsed.ManagerID,
			NewQuestion: parsed.NewQuestion,
			Thought:     parsed.Thought,
		}
	case DecisionFinalAnswer:
		return Decision{
			Kind:        DecisionFinalAnswer,
			Thought:     parsed.Thought,
			FinalAnswer: parsed.FinalAnswer,
		}
	default:
		return Decision{Kind: DecisionFinalAnswer, FinalAnswer: ApologyMessage}
	}
}

// ReactResponse is the parsed result of one reason-act cycle.
type ReactResponse struct {
	Thought     string
	Action      string
	FinalAnswer string
}

// reactSectionLabels lists the labels recognized in a reason-act response,
// in the order their captured groups appear in reactSectionPattern.
var reactSectionLabels = []string{"thought", "action", "final_answer"}

// reactSectionPattern matches a labeled section header
// (`[THOUGHT]:`, `[ACTION]:`, `[FINAL_ANSWER]:`, case-insensitive) and
// captures everything up to the next recognized label or end of string.
// Built once at package init.
var reactSectionPattern = regexp.MustCompile(
	`(?is)\[\s*(THOUGHT|ACTION|FINAL_ANSWER)\s*\]\s*:\s*(.*?)(?:\[\s*(?:THOUGHT|ACTION|FINAL_ANSWER)\s*\]\s*:|$)`,
)

// ParseReactResponse extracts the THOUGHT / ACTION / FINAL_ANSWER sections
// from free-text LLM output. Label search is case-insensitive and order
// independent; a missing section collapses to "" rather than erroring —
// the parser is total and never panics.
func ParseReactResponse(raw string) ReactResponse {
	var resp ReactResponse

	matches := reactSectionPattern.FindAllStringSubmatch(raw, -1)
	for _, m := range matches {
		label := strings.ToLower(m[1])
		content := strings.TrimSpace(m[2])
		switch label {
		case "thought":
			resp.Thought = content
		case "action":
			resp.Action = content
		case "final_answer":
			resp.FinalAnswer = content
		}
	}

	return resp
}
