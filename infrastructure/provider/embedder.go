package provider

import (
	"context"

	"github.com/archielabs/archie/domain/search"
)

// SearchEmbedder adapts a provider Embedder to the search.Embedder port
// consumed by the ingestion pipeline and the vector search path.
type SearchEmbedder struct {
	inner Embedder
}

// NewSearchEmbedder creates a SearchEmbedder.
func NewSearchEmbedder(inner Embedder) *SearchEmbedder {
	return &SearchEmbedder{inner: inner}
}

// Embed converts texts to vectors, positionally aligned with the input.
func (e *SearchEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.inner.Embed(ctx, NewEmbeddingRequest(texts))
	if err != nil {
		return nil, err
	}

	return resp.Embeddings(), nil
}

var _ search.Embedder = (*SearchEmbedder)(nil)
