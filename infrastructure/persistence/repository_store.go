package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/internal/database"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
)

// RepositoryStore implements repository.Store using GORM.
type RepositoryStore struct {
	database.Repository[repository.Repository, RepositoryModel]
}

// NewRepositoryStore creates a new RepositoryStore.
func NewRepositoryStore(db database.Database) RepositoryStore {
	return RepositoryStore{
		Repository: database.NewRepository[repository.Repository, RepositoryModel](db, RepositoryMapper{}, "repository"),
	}
}

// Save creates or updates a repository.
func (s RepositoryStore) Save(ctx context.Context, repo repository.Repository) error {
	model := s.Mapper().ToModel(repo)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return fmt.Errorf("save repository: %w", result.Error)
	}
	return nil
}

// Get returns a repository by id.
func (s RepositoryStore) Get(ctx context.Context, id uuid.UUID) (repository.Repository, error) {
	repo, err := s.FindOne(ctx, repository.WithID(id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return repository.Repository{}, errs.Newf(errs.KindNotFound, "repository %s not found", id)
		}
		return repository.Repository{}, err
	}
	return repo, nil
}

// GetByURL returns a repository by its canonical URL.
func (s RepositoryStore) GetByURL(ctx context.Context, url string) (repository.Repository, error) {
	repo, err := s.FindOne(ctx, repository.WithURL(url))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return repository.Repository{}, errs.Newf(errs.KindNotFound, "repository %s not found", url)
		}
		return repository.Repository{}, err
	}
	return repo, nil
}

// Exists checks whether a repository with the given id exists.
func (s RepositoryStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.Repository.Exists(ctx, repository.WithID(id))
}

// Delete removes a repository by id.
func (s RepositoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.DeleteBy(ctx, repository.WithID(id))
}
