package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/internal/database"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GraphStore implements graph.Store using GORM.
//
// Builds are installed wholesale: ReplaceBuild deletes every record of the
// repository's prior build and writes the new one inside a single
// transaction, so concurrent readers see either the old graph or the new
// one, never a mix.
type GraphStore struct {
	db            database.Database
	entities      database.Repository[graph.Entity, EntityModel]
	relationships database.Repository[graph.Relationship, RelationshipModel]
	patterns      database.Repository[graph.Pattern, PatternModel]
	builds        BuildMapper
}

// NewGraphStore creates a new GraphStore.
func NewGraphStore(db database.Database) GraphStore {
	return GraphStore{
		db:            db,
		entities:      database.NewRepository[graph.Entity, EntityModel](db, EntityMapper{}, "entity"),
		relationships: database.NewRepository[graph.Relationship, RelationshipModel](db, RelationshipMapper{}, "relationship"),
		patterns:      database.NewRepository[graph.Pattern, PatternModel](db, PatternMapper{}, "pattern"),
	}
}

// ReplaceBuild atomically installs a completed build, removing all records
// of the repository's prior builds in the same transaction.
func (s GraphStore) ReplaceBuild(ctx context.Context, build graph.Build, entities []graph.Entity, relationships []graph.Relationship, patterns []graph.Pattern) error {
	if build.IsEmpty() {
		return errs.Newf(errs.KindInvalidInput, "replace build: build has no id")
	}

	repoID := build.RepositoryID().String()
	stamped := build.WithCounts(len(entities), len(relationships), len(patterns))
	buildModel := s.builds.ToModel(stamped)

	entityModels := make([]EntityModel, len(entities))
	for i, e := range entities {
		entityModels[i] = EntityMapper{}.ToModel(e)
	}

	relationshipModels := make([]RelationshipModel, len(relationships))
	for i, r := range relationships {
		m := RelationshipMapper{}.ToModel(r)
		m.RepositoryID = repoID
		relationshipModels[i] = m
	}

	patternModels := make([]PatternModel, len(patterns))
	for i, p := range patterns {
		patternModels[i] = PatternMapper{}.ToModel(p)
	}

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		for _, model := range []any{&EntityModel{}, &RelationshipModel{}, &PatternModel{}, &BuildModel{}} {
			if result := tx.Where("repository_id = ?", repoID).Delete(model); result.Error != nil {
				return fmt.Errorf("remove prior build: %w", result.Error)
			}
		}

		if result := tx.Create(&buildModel); result.Error != nil {
			return fmt.Errorf("insert build: %w", result.Error)
		}
		if len(entityModels) > 0 {
			if result := tx.CreateInBatches(entityModels, upsertBatchSize); result.Error != nil {
				return fmt.Errorf("insert entities: %w", result.Error)
			}
		}
		if len(relationshipModels) > 0 {
			if result := tx.CreateInBatches(relationshipModels, upsertBatchSize); result.Error != nil {
				return fmt.Errorf("insert relationships: %w", result.Error)
			}
		}
		if len(patternModels) > 0 {
			if result := tx.CreateInBatches(patternModels, upsertBatchSize); result.Error != nil {
				return fmt.Errorf("insert patterns: %w", result.Error)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace build for repository %s: %w", repoID, err)
	}
	return nil
}

// CurrentBuild returns the repository's active build.
func (s GraphStore) CurrentBuild(ctx context.Context, repositoryID uuid.UUID) (graph.Build, error) {
	var model BuildModel
	result := s.db.Session(ctx).
		Where("repository_id = ?", repositoryID.String()).
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return graph.Build{}, errs.Newf(errs.KindNotFound, "no graph build for repository %s", repositoryID)
		}
		return graph.Build{}, fmt.Errorf("get current build: %w", result.Error)
	}
	return s.builds.ToDomain(model), nil
}

// Entities returns entities matching the options.
func (s GraphStore) Entities(ctx context.Context, options ...repository.Option) ([]graph.Entity, error) {
	return s.entities.Find(ctx, options...)
}

// Entity returns a single entity by its stable id.
func (s GraphStore) Entity(ctx context.Context, entityID string) (graph.Entity, error) {
	entity, err := s.entities.FindOne(ctx, repository.WithCondition("entity_id", entityID))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return graph.Entity{}, errs.Newf(errs.KindNotFound, "entity %s not found", entityID)
		}
		return graph.Entity{}, err
	}
	return entity, nil
}

// Relationships returns relationships matching the options.
func (s GraphStore) Relationships(ctx context.Context, options ...repository.Option) ([]graph.Relationship, error) {
	return s.relationships.Find(ctx, options...)
}

// Patterns returns patterns matching the options.
func (s GraphStore) Patterns(ctx context.Context, options ...repository.Option) ([]graph.Pattern, error) {
	return s.patterns.Find(ctx, options...)
}

// CountEntities counts entities matching the options.
func (s GraphStore) CountEntities(ctx context.Context, options ...repository.Option) (int, error) {
	count, err := s.entities.Count(ctx, options...)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteByRepository removes every build of the repository.
func (s GraphStore) DeleteByRepository(ctx context.Context, repositoryID uuid.UUID) error {
	repoID := repositoryID.String()
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		for _, model := range []any{&EntityModel{}, &RelationshipModel{}, &PatternModel{}, &BuildModel{}} {
			if result := tx.Where("repository_id = ?", repoID).Delete(model); result.Error != nil {
				return fmt.Errorf("delete graph records: %w", result.Error)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete graph for repository %s: %w", repoID, err)
	}
	return nil
}
