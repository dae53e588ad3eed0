package graph

import (
	"time"

	"github.com/google/uuid"
)

// Build identifies one complete graph construction run for a repository.
// All entities, relationships and patterns written during a run carry the
// build id, and queries only ever see the repository's current build.
type Build struct {
	buildID           uuid.UUID
	repositoryID      uuid.UUID
	depth             AnalysisDepth
	entityCount       int
	relationshipCount int
	patternCount      int
	builtAt           time.Time
}

// NewBuild creates a Build for a fresh construction run.
func NewBuild(repositoryID uuid.UUID, depth AnalysisDepth) Build {
	if !depth.IsValid() {
		depth = DefaultAnalysisDepth
	}
	return Build{
		buildID:      uuid.New(),
		repositoryID: repositoryID,
		depth:        depth,
		builtAt:      time.Now().UTC(),
	}
}

// ReconstructBuild reconstructs a Build from persistence.
func ReconstructBuild(
	buildID, repositoryID uuid.UUID,
	depth AnalysisDepth,
	entityCount, relationshipCount, patternCount int,
	builtAt time.Time,
) Build {
	return Build{
		buildID:           buildID,
		repositoryID:      repositoryID,
		depth:             depth,
		entityCount:       entityCount,
		relationshipCount: relationshipCount,
		patternCount:      patternCount,
		builtAt:           builtAt,
	}
}

// BuildID returns the build id.
func (b Build) BuildID() uuid.UUID { return b.buildID }

// RepositoryID returns the repository the build belongs to.
func (b Build) RepositoryID() uuid.UUID { return b.repositoryID }

// Depth returns the analysis depth the build ran at.
func (b Build) Depth() AnalysisDepth { return b.depth }

// EntityCount returns how many entities the build produced.
func (b Build) EntityCount() int { return b.entityCount }

// RelationshipCount returns how many relationships the build produced.
func (b Build) RelationshipCount() int { return b.relationshipCount }

// PatternCount returns how many patterns the build produced.
func (b Build) PatternCount() int { return b.patternCount }

// BuiltAt returns when the build ran.
func (b Build) BuiltAt() time.Time { return b.builtAt }

// WithCounts returns a copy with result counts recorded.
func (b Build) WithCounts(entities, relationships, patterns int) Build {
	b.entityCount = entities
	b.relationshipCount = relationships
	b.patternCount = patterns
	return b
}

// IsEmpty returns true if the build has no id.
func (b Build) IsEmpty() bool { return b.buildID == uuid.Nil }
