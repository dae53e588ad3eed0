package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/internal/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IndexStatusStore implements document.StatusStore using GORM.
type IndexStatusStore struct {
	db     database.Database
	mapper IndexStatusMapper
}

// NewIndexStatusStore creates a new IndexStatusStore.
func NewIndexStatusStore(db database.Database) IndexStatusStore {
	return IndexStatusStore{db: db, mapper: IndexStatusMapper{}}
}

// Get retrieves the index status for a repository. A repository with no
// recorded run yields a NotStarted status rather than an error.
func (s IndexStatusStore) Get(ctx context.Context, repositoryID uuid.UUID) (document.IndexStatus, error) {
	var model IndexStatusModel
	result := s.db.Session(ctx).
		Where("repository_id = ?", repositoryID.String()).
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return document.NewIndexStatus(repositoryID), nil
		}
		return document.IndexStatus{}, fmt.Errorf("get index status: %w", result.Error)
	}
	return s.mapper.ToDomain(model), nil
}

// Save creates or updates the index status for a repository.
func (s IndexStatusStore) Save(ctx context.Context, status document.IndexStatus) (document.IndexStatus, error) {
	model := s.mapper.ToModel(status)
	if result := s.db.Session(ctx).Save(&model); result.Error != nil {
		return document.IndexStatus{}, fmt.Errorf("save index status: %w", result.Error)
	}
	return s.mapper.ToDomain(model), nil
}

// Delete removes the index status for a repository.
func (s IndexStatusStore) Delete(ctx context.Context, repositoryID uuid.UUID) error {
	result := s.db.Session(ctx).
		Where("repository_id = ?", repositoryID.String()).
		Delete(&IndexStatusModel{})
	if result.Error != nil {
		return fmt.Errorf("delete index status: %w", result.Error)
	}
	return nil
}
