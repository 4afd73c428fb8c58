// Package vectormemory implements the long-term-memory vector store: an
// embedded chromem-go collection holding per-user conversation summaries,
// searched by cosine similarity and filtered by user_id.
package vectormemory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/philippgille/chromem-go"
)

// CollectionName is the single collection this store manages.
const CollectionName = "long_term_memory"

// Embedder turns free text into the fixed-dimension vector chromem-go
// indexes. Kept as a narrow interface so the store never imports a
// provider SDK directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Summary is one persisted long-term-memory record: a batch summarizer's
// digest of a slice of a user's conversation history.
type Summary struct {
	ID                string
	UserID            string
	SessionID         string
	Text              string
	ConversationStart time.Time
	ConversationEnd   time.Time
	ProcessedAt       time.Time
}

// SearchResult is one hit returned by Search, carrying the similarity
// score alongside the stored summary.
type SearchResult struct {
	Summary Summary
	Score   float32
}

// Store wraps a chromem-go database with the embed-then-upsert/search
// operations the searchLongTermMemory native tool and the batch
// summarizer depend on.
type Store struct {
	db       *chromem.DB
	embedder Embedder
}

// New builds an in-memory store. persistPath, if non-empty, makes the
// database durable across restarts (gob-encoded on disk).
func New(embedder Embedder, persistPath string) (*Store, error) {
	var db *chromem.DB
	var err error

	if persistPath != "" {
		db, err = chromem.NewPersistentDB(persistPath, true)
		if err != nil {
			slog.Warn("failed to open persistent vector store, falling back to in-memory", "path", persistPath, "error", err)
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	return &Store{db: db, embedder: embedder}, nil
}

// identityEmbed is installed on the collection itself: every vector this
// store writes is already embedded by Embedder before it reaches
// chromem-go, so the collection-level embedding function is never called.
func identityEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("long-term memory collection received unembedded text %q", text)
}

func (s *Store) collection(ctx context.Context) (*chromem.Collection, error) {
	col, err := s.db.GetOrCreateCollection(CollectionName, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create %s collection: %w", CollectionName, err)
	}
	return col, nil
}

// Upsert embeds summary.Text and stores it along with its metadata
// payload (user_id, session_id, summary, conversation_start,
// conversation_end, processed_at).
func (s *Store) Upsert(ctx context.Context, summary Summary) error {
	col, err := s.collection(ctx)
	if err != nil {
		return err
	}

	vector, err := s.embedder.Embed(ctx, summary.Text)
	if err != nil {
		return fmt.Errorf("failed to embed summary: %w", err)
	}

	doc := chromem.Document{
		ID:      summary.ID,
		Content: summary.Text,
		Metadata: map[string]string{
			"user_id":            summary.UserID,
			"session_id":         summary.SessionID,
			"summary":            summary.Text,
			"conversation_start": summary.ConversationStart.UTC().Format(time.RFC3339),
			"conversation_end":   summary.ConversationEnd.UTC().Format(time.RFC3339),
			"processed_at":       summary.ProcessedAt.UTC().Format(time.RFC3339),
		},
		Embedding: vector,
	}

	if err := col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("failed to upsert long-term memory record: %w", err)
	}
	return nil
}

// Search embeds query and returns the topK most similar summaries for
// userID, ordered by descending similarity. Results are always filtered
// to the requesting user — cross-user memory sharing is an explicit
// Non-goal.
func (s *Store) Search(ctx context.Context, userID, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}

	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	if col.Count() == 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	if topK > col.Count() {
		topK = col.Count()
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, map[string]string{"user_id": userID}, nil)
	if err != nil {
		return nil, fmt.Errorf("long-term memory search failed: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			Summary: summaryFromMetadata(r.ID, r.Metadata),
			Score:   r.Similarity,
		})
	}
	return out, nil
}

func summaryFromMetadata(id string, md map[string]string) Summary {
	start, _ := time.Parse(time.RFC3339, md["conversation_start"])
	end, _ := time.Parse(time.RFC3339, md["conversation_end"])
	processed, _ := time.Parse(time.RFC3339, md["processed_at"])
	return Summary{
		ID:                id,
		UserID:            md["user_id"],
		SessionID:         md["session_id"],
		Text:              md["summary"],
		ConversationStart: start,
		ConversationEnd:   end,
		ProcessedAt:       processed,
	}
}
