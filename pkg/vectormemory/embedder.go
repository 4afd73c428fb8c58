package vectormemory

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingDimensions is the vector width of the long_term_memory
// collection.
const EmbeddingDimensions = 768

// OpenAIEmbedder implements Embedder using an embeddings-capable model.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder builds an embedder around apiKey using model (e.g.
// openai.SmallEmbedding3). Every request asks the model to truncate its
// output to EmbeddingDimensions so stored and query vectors share one
// width regardless of the model's native default.
func NewOpenAIEmbedder(apiKey string, model openai.EmbeddingModel) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: model}
}

// Embed requests a single embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding request returned no vectors")
	}
	return resp.Data[0].Embedding, nil
}
