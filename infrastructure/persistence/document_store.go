package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/internal/database"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// upsertBatchSize bounds insert statement size for bulk document writes.
const upsertBatchSize = 50

// DocumentStore implements document.Store using GORM.
type DocumentStore struct {
	database.Repository[document.Document, DocumentModel]
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(db database.Database) DocumentStore {
	return DocumentStore{
		Repository: database.NewRepository[document.Document, DocumentModel](db, DocumentMapper{}, "document"),
	}
}

// Upsert inserts or replaces documents by their deterministic ids.
func (s DocumentStore) Upsert(ctx context.Context, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}

	models := make([]DocumentModel, len(docs))
	for i, d := range docs {
		models[i] = s.Mapper().ToModel(d)
	}

	result := s.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(models, upsertBatchSize)

	if result.Error != nil {
		return fmt.Errorf("upsert documents: %w", result.Error)
	}
	return nil
}

// Get retrieves a document by id.
func (s DocumentStore) Get(ctx context.Context, id uuid.UUID) (document.Document, error) {
	doc, err := s.FindOne(ctx, repository.WithID(id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return document.Document{}, errs.Newf(errs.KindNotFound, "document %s not found", id)
		}
		return document.Document{}, err
	}
	return doc, nil
}

// PathSHAs returns the blob sha recorded for every indexed path of a
// repository branch. Chunks of one file carry the same blob sha, so the
// distinct projection collapses them to one row per path.
func (s DocumentStore) PathSHAs(ctx context.Context, repositoryID uuid.UUID, branch string) (map[string]string, error) {
	var rows []struct {
		Path    string
		BlobSHA string
	}

	result := s.DB(ctx).
		Model(&DocumentModel{}).
		Distinct("path", "blob_sha").
		Where("repository_id = ? AND branch = ?", repositoryID.String(), branch).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("load path shas: %w", result.Error)
	}

	shas := make(map[string]string, len(rows))
	for _, row := range rows {
		shas[row.Path] = row.BlobSHA
	}
	return shas, nil
}

// DeleteByPath removes all chunks of one file.
func (s DocumentStore) DeleteByPath(ctx context.Context, repositoryID uuid.UUID, branch, path string) error {
	return s.DeleteBy(ctx,
		repository.WithRepositoryID(repositoryID),
		document.WithBranch(branch),
		document.WithPath(path),
	)
}

// DeleteChunksFrom removes chunks of a file whose index is >= firstStale.
// Used when a re-chunked file yields fewer chunks than before.
func (s DocumentStore) DeleteChunksFrom(ctx context.Context, repositoryID uuid.UUID, branch, path string, firstStale int) error {
	return s.DeleteBy(ctx,
		repository.WithRepositoryID(repositoryID),
		document.WithBranch(branch),
		document.WithPath(path),
		repository.WithWhere("chunk_index >= ?", firstStale),
	)
}

// DeleteByRepository removes every document of a repository.
func (s DocumentStore) DeleteByRepository(ctx context.Context, repositoryID uuid.UUID) error {
	return s.DeleteBy(ctx, repository.WithRepositoryID(repositoryID))
}
