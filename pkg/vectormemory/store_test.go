package vectormemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func TestStore_UpsertAndSearch_FiltersByUser(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"discussed the project Alpha rollout timeline": {1, 0, 0},
		"discussed lunch plans":                        {0, 1, 0},
		"project Alpha":                                {1, 0, 0},
	}}
	store, err := New(embedder, "")
	require.NoError(t, err)

	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(context.Background(), Summary{
		ID:                "mem-1",
		UserID:            "user-1",
		SessionID:         "sess-1",
		Text:              "discussed the project Alpha rollout timeline",
		ConversationStart: now.Add(-time.Hour),
		ConversationEnd:   now,
		ProcessedAt:       now,
	}))
	require.NoError(t, store.Upsert(context.Background(), Summary{
		ID:                "mem-2",
		UserID:            "user-2",
		SessionID:         "sess-2",
		Text:              "discussed lunch plans",
		ConversationStart: now.Add(-time.Hour),
		ConversationEnd:   now,
		ProcessedAt:       now,
	}))

	results, err := store.Search(context.Background(), "user-1", "project Alpha", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "mem-1", results[0].Summary.ID)
	assert.Equal(t, "user-1", results[0].Summary.UserID)
	assert.Equal(t, now, results[0].Summary.ProcessedAt)
}

func TestStore_Search_EmptyCollectionReturnsNoResults(t *testing.T) {
	store, err := New(&stubEmbedder{}, "")
	require.NoError(t, err)

	results, err := store.Search(context.Background(), "user-1", "anything", 3)

	require.NoError(t, err)
	assert.Empty(t, results)
}
