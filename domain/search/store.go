package search

import (
	"context"

	"github.com/archielabs/archie/domain/repository"
)

// KeywordStore defines operations for full-text keyword search indexing.
type KeywordStore interface {
	// Index adds documents to the keyword index.
	Index(ctx context.Context, request IndexRequest) error

	// Find performs keyword search using options.
	// Query text must be passed via WithQuery.
	Find(ctx context.Context, options ...repository.Option) ([]Result, error)

	// DeleteBy removes documents matching the given options.
	DeleteBy(ctx context.Context, options ...repository.Option) error
}

// VectorStore defines operations for vector similarity search.
type VectorStore interface {
	// SaveAll persists pre-computed embeddings.
	SaveAll(ctx context.Context, embeddings []Embedding) error

	// Search performs vector similarity search using options.
	// The query embedding must be passed via WithEmbedding.
	Search(ctx context.Context, options ...repository.Option) ([]Result, error)

	// HasEmbeddings reports which of the given document IDs already have
	// a stored embedding.
	HasEmbeddings(ctx context.Context, documentIDs []string) (map[string]bool, error)

	// DeleteBy removes embeddings matching the given options.
	DeleteBy(ctx context.Context, options ...repository.Option) error
}
