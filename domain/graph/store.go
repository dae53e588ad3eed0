package graph

import (
	"context"

	"github.com/archielabs/archie/domain/repository"
	"github.com/google/uuid"
)

// Store persists knowledge graph builds.
//
// A repository's graph is only ever replaced wholesale: ReplaceBuild
// writes the new build's records and flips the repository's current
// build in one transaction, so readers never observe a partial graph.
type Store interface {
	// ReplaceBuild atomically installs a completed build. Records from
	// prior builds of the same repository are removed in the same
	// transaction.
	ReplaceBuild(ctx context.Context, build Build, entities []Entity, relationships []Relationship, patterns []Pattern) error

	// CurrentBuild returns the repository's active build.
	CurrentBuild(ctx context.Context, repositoryID uuid.UUID) (Build, error)

	// Entities returns entities of the current builds matching the options.
	Entities(ctx context.Context, options ...repository.Option) ([]Entity, error)

	// Entity returns a single entity by its stable id.
	Entity(ctx context.Context, entityID string) (Entity, error)

	// Relationships returns relationships of the current builds matching the options.
	Relationships(ctx context.Context, options ...repository.Option) ([]Relationship, error)

	// Patterns returns patterns of the current builds matching the options.
	Patterns(ctx context.Context, options ...repository.Option) ([]Pattern, error)

	// CountEntities counts entities matching the options.
	CountEntities(ctx context.Context, options ...repository.Option) (int, error)

	// DeleteByRepository removes every build of the repository.
	DeleteByRepository(ctx context.Context, repositoryID uuid.UUID) error
}
