// Package patterns detects architectural patterns and anti-patterns in a
// repository's knowledge graph. Matchers are pure functions over an
// immutable snapshot, so the registry runs them all in parallel.
package patterns

import (
	"context"
	"log/slog"
	"slices"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/archielabs/archie/domain/graph"
)

// Detection thresholds.
const (
	layerRepresentatives = 3
	maxParticipants      = 10

	godEntityDegree         = 20
	godEntitySevereDegree   = 40
	highCouplingFanOut      = 15
	highCouplingSteepFanOut = 30
	maxReportedCycles       = 8
)

// Snapshot is the slice of one repository's graph a matcher analyzes.
// Indices are derived once at construction; matchers must not mutate
// the shared slices.
type Snapshot struct {
	repositoryID  uuid.UUID
	entities      []graph.Entity
	relationships []graph.Relationship
	byID          map[string]graph.Entity
	outgoing      map[string][]graph.Relationship
	incoming      map[string][]graph.Relationship
}

// NewSnapshot builds a snapshot with adjacency indices.
func NewSnapshot(repositoryID uuid.UUID, entities []graph.Entity, relationships []graph.Relationship) Snapshot {
	s := Snapshot{
		repositoryID:  repositoryID,
		entities:      slices.Clone(entities),
		relationships: slices.Clone(relationships),
		byID:          make(map[string]graph.Entity, len(entities)),
		outgoing:      make(map[string][]graph.Relationship),
		incoming:      make(map[string][]graph.Relationship),
	}
	for _, entity := range s.entities {
		s.byID[entity.EntityID()] = entity
	}
	for _, rel := range s.relationships {
		s.outgoing[rel.SourceID()] = append(s.outgoing[rel.SourceID()], rel)
		s.incoming[rel.TargetID()] = append(s.incoming[rel.TargetID()], rel)
	}
	return s
}

// RepositoryID returns the repository the snapshot belongs to.
func (s Snapshot) RepositoryID() uuid.UUID { return s.repositoryID }

// EntityCount returns the number of entities in the snapshot.
func (s Snapshot) EntityCount() int { return len(s.entities) }

// RelationshipCount returns the number of relationships in the snapshot.
func (s Snapshot) RelationshipCount() int { return len(s.relationships) }

// degree returns how many relationships touch the entity.
func (s Snapshot) degree(entityID string) int {
	return len(s.outgoing[entityID]) + len(s.incoming[entityID])
}

// entityName resolves an entity id to its short name for descriptions.
func (s Snapshot) entityName(entityID string) string {
	if entity, ok := s.byID[entityID]; ok {
		return entity.Name()
	}
	return entityID
}

// sortedEntities returns the entities ordered by id so matcher output is
// deterministic across runs.
func (s Snapshot) sortedEntities() []graph.Entity {
	entities := slices.Clone(s.entities)
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].EntityID() < entities[j].EntityID()
	})
	return entities
}

// Matcher inspects a snapshot and reports detected patterns. Matchers
// are pure and side-effect free.
type Matcher interface {
	Name() string
	Match(ctx context.Context, snap Snapshot) ([]graph.Pattern, error)
}

// Builtin returns the default matcher set.
func Builtin() []Matcher {
	return []Matcher{
		LayeredArchitecture{},
		RepositoryPattern{},
		ServiceLayer{},
		GodEntity{},
		CircularDependency{},
		HighCoupling{},
	}
}

// Registry runs matchers over a snapshot in parallel.
type Registry struct {
	matchers []Matcher
	logger   *slog.Logger
}

// NewRegistry creates a registry. Without explicit matchers the builtin
// set is used.
func NewRegistry(logger *slog.Logger, matchers ...Matcher) *Registry {
	if len(matchers) == 0 {
		matchers = Builtin()
	}
	return &Registry{matchers: matchers, logger: logger}
}

// Names lists the registered matcher names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.matchers))
	for i, matcher := range r.matchers {
		names[i] = matcher.Name()
	}
	return names
}

// Detect runs every matcher and merges their findings in registration
// order. A failing matcher is logged and skipped so one broken heuristic
// cannot hide the findings of the others.
func (r *Registry) Detect(ctx context.Context, snap Snapshot) ([]graph.Pattern, error) {
	results := make([][]graph.Pattern, len(r.matchers))

	g, gctx := errgroup.WithContext(ctx)
	for i, matcher := range r.matchers {
		g.Go(func() error {
			found, err := matcher.Match(gctx, snap)
			if err != nil {
				r.logger.Warn("pattern matcher failed",
					slog.String("matcher", matcher.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var patterns []graph.Pattern
	for _, found := range results {
		patterns = append(patterns, found...)
	}
	return patterns, nil
}
