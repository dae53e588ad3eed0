package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RelationshipKind represents the kind of a typed relationship between entities.
type RelationshipKind string

// RelationshipKind values.
const (
	RelationshipKindCalls      RelationshipKind = "calls"
	RelationshipKindUses       RelationshipKind = "uses"
	RelationshipKindInherits   RelationshipKind = "inherits"
	RelationshipKindImplements RelationshipKind = "implements"
	RelationshipKindDependsOn  RelationshipKind = "depends_on"
	RelationshipKindContains   RelationshipKind = "contains"
	RelationshipKindReferences RelationshipKind = "references"
	RelationshipKindImports    RelationshipKind = "imports"
)

// IsArchitectural returns true for kinds that express structural design
// relationships rather than code-level usage.
func (k RelationshipKind) IsArchitectural() bool {
	switch k {
	case RelationshipKindInherits, RelationshipKindImplements,
		RelationshipKindDependsOn, RelationshipKindContains, RelationshipKindImports:
		return true
	default:
		return false
	}
}

// relationshipNamespace is the UUIDv5 namespace for relationship ids.
var relationshipNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("github.com/archielabs/archie/graph/relationship"))

// NewRelationshipID derives the stable id for a relationship between two entities.
func NewRelationshipID(sourceID, targetID string, kind RelationshipKind) string {
	name := fmt.Sprintf("%s/%s/%s", sourceID, targetID, kind)
	return uuid.NewSHA1(relationshipNamespace, []byte(name)).String()
}

// Relationship represents a directed typed edge between two entities.
type Relationship struct {
	id         string
	sourceID   string
	targetID   string
	kind       RelationshipKind
	weight     float64
	confidence float64
	buildID    uuid.UUID
	createdAt  time.Time
}

// NewRelationship creates a Relationship. Weight and confidence are
// clamped to [0, 1].
func NewRelationship(sourceID, targetID string, kind RelationshipKind, weight, confidence float64) Relationship {
	return Relationship{
		id:         NewRelationshipID(sourceID, targetID, kind),
		sourceID:   sourceID,
		targetID:   targetID,
		kind:       kind,
		weight:     clampUnit(weight),
		confidence: clampUnit(confidence),
		createdAt:  time.Now().UTC(),
	}
}

// ReconstructRelationship reconstructs a Relationship from persistence.
func ReconstructRelationship(
	id, sourceID, targetID string,
	kind RelationshipKind,
	weight, confidence float64,
	buildID uuid.UUID,
	createdAt time.Time,
) Relationship {
	return Relationship{
		id:         id,
		sourceID:   sourceID,
		targetID:   targetID,
		kind:       kind,
		weight:     weight,
		confidence: confidence,
		buildID:    buildID,
		createdAt:  createdAt,
	}
}

// ID returns the relationship id.
func (r Relationship) ID() string { return r.id }

// SourceID returns the source entity id.
func (r Relationship) SourceID() string { return r.sourceID }

// TargetID returns the target entity id.
func (r Relationship) TargetID() string { return r.targetID }

// Kind returns the relationship kind.
func (r Relationship) Kind() RelationshipKind { return r.kind }

// Weight returns the edge weight in [0, 1].
func (r Relationship) Weight() float64 { return r.weight }

// Confidence returns the extraction confidence in [0, 1].
func (r Relationship) Confidence() float64 { return r.confidence }

// IsArchitectural reports whether the relationship kind is architectural.
func (r Relationship) IsArchitectural() bool { return r.kind.IsArchitectural() }

// BuildID returns the graph build this relationship belongs to.
func (r Relationship) BuildID() uuid.UUID { return r.buildID }

// CreatedAt returns the creation timestamp.
func (r Relationship) CreatedAt() time.Time { return r.createdAt }

// WithBuild returns a copy assigned to the given build.
func (r Relationship) WithBuild(buildID uuid.UUID) Relationship {
	r.buildID = buildID
	return r
}

// IsEmpty returns true if the relationship has no id.
func (r Relationship) IsEmpty() bool { return r.id == "" }

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
