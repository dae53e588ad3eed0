// Package graph provides knowledge graph domain types for code structure analysis.
package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityKind represents the kind of a code entity.
type EntityKind string

// EntityKind values.
const (
	EntityKindFile        EntityKind = "file"
	EntityKindPackage     EntityKind = "package"
	EntityKindClass       EntityKind = "class"
	EntityKindInterface   EntityKind = "interface"
	EntityKindStruct      EntityKind = "struct"
	EntityKindEnum        EntityKind = "enum"
	EntityKindFunction    EntityKind = "function"
	EntityKindMethod      EntityKind = "method"
	EntityKindField       EntityKind = "field"
	EntityKindConstant    EntityKind = "constant"
	EntityKindVariable    EntityKind = "variable"
	EntityKindService     EntityKind = "service"
	EntityKindRepository  EntityKind = "repository"
	EntityKindController  EntityKind = "controller"
	EntityKindAggregate   EntityKind = "aggregate"
	EntityKindValueObject EntityKind = "value_object"
)

// entityNamespace is the UUIDv5 namespace for entity ids.
var entityNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("github.com/archielabs/archie/graph/entity"))

// NewEntityID derives the stable id for an entity. The same (repository,
// kind, qualifiedName) always yields the same id across re-analysis.
func NewEntityID(repositoryID uuid.UUID, kind EntityKind, qualifiedName string) string {
	name := fmt.Sprintf("%s/%s/%s", repositoryID, kind, qualifiedName)
	return uuid.NewSHA1(entityNamespace, []byte(name)).String()
}

// Entity represents a code entity extracted from a repository.
type Entity struct {
	entityID      string
	repositoryID  uuid.UUID
	name          string
	qualifiedName string
	kind          EntityKind
	complexity    float64
	language      string
	path          string
	startLine     int
	endLine       int
	buildID       uuid.UUID
	createdAt     time.Time
}

// NewEntity creates an Entity with a stable derived id.
func NewEntity(repositoryID uuid.UUID, kind EntityKind, name, qualifiedName string) Entity {
	return Entity{
		entityID:      NewEntityID(repositoryID, kind, qualifiedName),
		repositoryID:  repositoryID,
		name:          name,
		qualifiedName: qualifiedName,
		kind:          kind,
		createdAt:     time.Now().UTC(),
	}
}

// ReconstructEntity reconstructs an Entity from persistence.
func ReconstructEntity(
	entityID string,
	repositoryID uuid.UUID,
	name, qualifiedName string,
	kind EntityKind,
	complexity float64,
	language, path string,
	startLine, endLine int,
	buildID uuid.UUID,
	createdAt time.Time,
) Entity {
	return Entity{
		entityID:      entityID,
		repositoryID:  repositoryID,
		name:          name,
		qualifiedName: qualifiedName,
		kind:          kind,
		complexity:    complexity,
		language:      language,
		path:          path,
		startLine:     startLine,
		endLine:       endLine,
		buildID:       buildID,
		createdAt:     createdAt,
	}
}

// EntityID returns the stable entity id.
func (e Entity) EntityID() string { return e.entityID }

// RepositoryID returns the owning repository id.
func (e Entity) RepositoryID() uuid.UUID { return e.repositoryID }

// Name returns the short entity name.
func (e Entity) Name() string { return e.name }

// QualifiedName returns the fully qualified name.
func (e Entity) QualifiedName() string { return e.qualifiedName }

// Kind returns the entity kind.
func (e Entity) Kind() EntityKind { return e.kind }

// Complexity returns the complexity score.
func (e Entity) Complexity() float64 { return e.complexity }

// Language returns the source language.
func (e Entity) Language() string { return e.language }

// Path returns the source file path.
func (e Entity) Path() string { return e.path }

// StartLine returns the first source line (1-based).
func (e Entity) StartLine() int { return e.startLine }

// EndLine returns the last source line (1-based).
func (e Entity) EndLine() int { return e.endLine }

// BuildID returns the graph build this entity belongs to.
func (e Entity) BuildID() uuid.UUID { return e.buildID }

// CreatedAt returns the creation timestamp.
func (e Entity) CreatedAt() time.Time { return e.createdAt }

// WithLocation returns a copy with the source location set.
func (e Entity) WithLocation(language, path string, startLine, endLine int) Entity {
	e.language = language
	e.path = path
	e.startLine = startLine
	e.endLine = endLine
	return e
}

// WithComplexity returns a copy with the complexity score set.
// Negative scores are clamped to zero.
func (e Entity) WithComplexity(score float64) Entity {
	if score < 0 {
		score = 0
	}
	e.complexity = score
	return e
}

// WithBuild returns a copy assigned to the given build.
func (e Entity) WithBuild(buildID uuid.UUID) Entity {
	e.buildID = buildID
	return e
}

// IsEmpty returns true if the entity has no id.
func (e Entity) IsEmpty() bool { return e.entityID == "" }

// Equal returns true if two entities have the same id.
func (e Entity) Equal(other Entity) bool {
	return e.entityID == other.entityID
}
