package document

import (
	"context"

	"github.com/archielabs/archie/domain/repository"
	"github.com/google/uuid"
)

// Store defines the interface for Document persistence operations.
type Store interface {
	// Upsert inserts or replaces documents by their deterministic ids.
	// Re-running with identical inputs produces identical index state.
	Upsert(ctx context.Context, docs []Document) error

	// Get retrieves a document by id.
	Get(ctx context.Context, id uuid.UUID) (Document, error)

	// Find retrieves documents matching the given options.
	Find(ctx context.Context, options ...repository.Option) ([]Document, error)

	// Count returns the number of documents matching the given options.
	Count(ctx context.Context, options ...repository.Option) (int64, error)

	// PathSHAs returns the blob sha recorded for every indexed path of a
	// repository branch. Used by incremental refresh to diff against the
	// provider tree.
	PathSHAs(ctx context.Context, repositoryID uuid.UUID, branch string) (map[string]string, error)

	// DeleteByPath removes all chunks of one file.
	DeleteByPath(ctx context.Context, repositoryID uuid.UUID, branch, path string) error

	// DeleteChunksFrom removes chunks of a file whose index is >= firstStale.
	// Used when a re-chunked file yields fewer chunks than before.
	DeleteChunksFrom(ctx context.Context, repositoryID uuid.UUID, branch, path string, firstStale int) error

	// DeleteByRepository removes every document of a repository.
	DeleteByRepository(ctx context.Context, repositoryID uuid.UUID) error
}

// StatusStore defines the interface for IndexStatus persistence operations.
type StatusStore interface {
	// Get retrieves the index status for a repository.
	// Returns a NotStarted status if none has been recorded.
	Get(ctx context.Context, repositoryID uuid.UUID) (IndexStatus, error)

	// Save creates or updates the index status for a repository.
	Save(ctx context.Context, status IndexStatus) (IndexStatus, error)

	// Delete removes the index status for a repository.
	Delete(ctx context.Context, repositoryID uuid.UUID) error
}
