package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/registry"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/vectormemory"
)

// MemorySearcher is the subset of *vectormemory.Store this tool depends
// on, narrowed to keep the tool testable without a real embedder.
type MemorySearcher interface {
	Search(ctx context.Context, userID, query string, topK int) ([]vectormemory.SearchResult, error)
}

// SearchLongTermMemory is the SYS_MEMORY_MANAGER's native tool: it
// vector-searches the requesting user's long-term-memory collection and
// returns the top matching summaries with their similarity scores.
type SearchLongTermMemory struct {
	store MemorySearcher
	topK  int
}

// NewSearchLongTermMemory builds the tool around store. topK <= 0 returns
// the top-3 summaries.
func NewSearchLongTermMemory(store MemorySearcher, topK int) *SearchLongTermMemory {
	if topK <= 0 {
		topK = 3
	}
	return &SearchLongTermMemory{store: store, topK: topK}
}

func (t *SearchLongTermMemory) Name() string { return models.SearchLongTermMemoryTool }
func (t *SearchLongTermMemory) Description() string {
	return "Searches the requesting user's long-term memory for past conversation summaries related to a query."
}

func (t *SearchLongTermMemory) MandatoryParams() []models.ParamDefinition {
	return []models.ParamDefinition{
		{Name: "query", Type: models.ParamTypeString, Description: "What to recall", Required: true},
	}
}

func (t *SearchLongTermMemory) Execute(ctx context.Context, in registry.Input) (*models.ToolResult, error) {
	query, _ := in.Params["query"].(string)
	if query == "" {
		return &models.ToolResult{Success: false, Output: "missing required param 'query'"}, nil
	}
	if in.Context == nil || in.Context.UserID == "" {
		return &models.ToolResult{Success: false, Output: "no user context available for memory search"}, nil
	}

	results, err := t.store.Search(ctx, in.Context.UserID, query, t.topK)
	if err != nil {
		slog.Error("long-term memory search failed", "user_id", in.Context.UserID, "error", err)
		return &models.ToolResult{Success: false, Output: fmt.Sprintf("memory search failed: %v", err)}, nil
	}
	if len(results) == 0 {
		return &models.ToolResult{Success: true, Output: "No related memories were found."}, nil
	}

	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{
			"session_id":         r.Summary.SessionID,
			"summary":            r.Summary.Text,
			"conversation_start": r.Summary.ConversationStart,
			"conversation_end":   r.Summary.ConversationEnd,
			"similarity_score":   r.Score,
		})
	}

	return &models.ToolResult{Success: true, Output: out}, nil
}
