// Package masking redacts secret-shaped substrings from tool output before
// it is written to the durable execution log or folded back into an LLM
// prompt. Patterns are compiled once at startup; masking itself never
// fails the caller — a pattern that cannot be applied is skipped, not
// propagated as an error.
package masking

import (
	"log/slog"
	"regexp"
)

// Pattern is one named regex substitution rule.
type Pattern struct {
	Name        string
	Regex       string
	Replacement string
}

type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// BuiltinPatterns are the secret shapes masked regardless of configuration:
// bearer tokens, common cloud/API key prefixes, and JWTs. Additional
// patterns can be layered on top via NewService's extra argument.
// Order matters: the specific shapes (bearer, AWS key, JWT) run before the
// generic assignment pattern so a JWT in "token: eyJ..." gets its own mask
// rather than being swallowed by api_key_assignment.
var BuiltinPatterns = []Pattern{
	{Name: "bearer_token", Regex: `(?i)bearer\s+[A-Za-z0-9._-]{10,}`, Replacement: "[MASKED_BEARER_TOKEN]"},
	{Name: "aws_access_key", Regex: `AKIA[0-9A-Z]{16}`, Replacement: "[MASKED_AWS_KEY]"},
	{Name: "generic_jwt", Regex: `eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`, Replacement: "[MASKED_JWT]"},
	{Name: "api_key_assignment", Regex: `(?i)"?(api[_-]?key|secret|token|password)"?\s*[:=]\s*"?[A-Za-z0-9._-]{8,}"?`, Replacement: "$1=[MASKED]"},
}

// Service applies the compiled pattern set to arbitrary text. Built once
// at process startup and shared read-only across every tool invocation.
type Service struct {
	patterns []compiledPattern
}

// NewService compiles BuiltinPatterns plus any caller-supplied extras.
// An invalid regex is logged and dropped rather than failing startup —
// masking is a defense-in-depth measure, not a correctness dependency.
func NewService(extra ...Pattern) *Service {
	s := &Service{}
	for _, p := range append(append([]Pattern{}, BuiltinPatterns...), extra...) {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			slog.Error("masking pattern failed to compile, skipping", "pattern", p.Name, "error", err)
			continue
		}
		s.patterns = append(s.patterns, compiledPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}
	slog.Info("masking service initialized", "compiled_patterns", len(s.patterns))
	return s
}

// Mask applies every compiled pattern to text in order and returns the
// result. Safe to call with empty input.
func (s *Service) Mask(text string) string {
	if text == "" {
		return text
	}
	masked := text
	for _, p := range s.patterns {
		masked = p.regex.ReplaceAllString(masked, p.replacement)
	}
	return masked
}
