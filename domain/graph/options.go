package graph

import (
	"github.com/archielabs/archie/domain/repository"
	"github.com/google/uuid"
)

// WithBuildID filters graph records by the "build_id" column.
func WithBuildID(buildID uuid.UUID) repository.Option {
	return repository.WithCondition("build_id", buildID.String())
}

// WithEntityKind filters entities by the "kind" column.
func WithEntityKind(kind EntityKind) repository.Option {
	return repository.WithCondition("kind", string(kind))
}

// WithEntityKindIn filters entities by the "kind" column using IN.
func WithEntityKindIn(kinds []EntityKind) repository.Option {
	values := make([]string, len(kinds))
	for i, k := range kinds {
		values[i] = string(k)
	}
	return repository.WithConditionIn("kind", values)
}

// WithRelationshipKind filters relationships by the "kind" column.
func WithRelationshipKind(kind RelationshipKind) repository.Option {
	return repository.WithCondition("kind", string(kind))
}

// WithSourceID filters relationships by the "source_id" column.
func WithSourceID(entityID string) repository.Option {
	return repository.WithCondition("source_id", entityID)
}

// WithTargetID filters relationships by the "target_id" column.
func WithTargetID(entityID string) repository.Option {
	return repository.WithCondition("target_id", entityID)
}

// WithEitherEndpoint filters relationships touching the entity on
// either end.
func WithEitherEndpoint(entityID string) repository.Option {
	return repository.WithWhere("source_id = ? OR target_id = ?", entityID, entityID)
}

// WithCategory filters patterns by the "category" column.
func WithCategory(category PatternCategory) repository.Option {
	return repository.WithCondition("category", string(category))
}

// WithPatternName filters patterns by the "name" column.
func WithPatternName(name string) repository.Option {
	return repository.WithCondition("name", name)
}

// WithNameContains filters entities whose name matches a substring.
func WithNameContains(fragment string) repository.Option {
	return repository.WithWhere("name LIKE ?", "%"+fragment+"%")
}

// WithQualifiedName filters entities by the "qualified_name" column.
func WithQualifiedName(qualifiedName string) repository.Option {
	return repository.WithCondition("qualified_name", qualifiedName)
}

// WithMinComplexity filters entities at or above a complexity score.
func WithMinComplexity(score float64) repository.Option {
	return repository.WithWhere("complexity >= ?", score)
}
