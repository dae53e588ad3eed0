package patterns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archielabs/archie/domain/graph"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func typedEntity(repoID uuid.UUID, kind graph.EntityKind, name string) graph.Entity {
	return graph.NewEntity(repoID, kind, name, "app."+name)
}

func edge(source, target graph.Entity, kind graph.RelationshipKind) graph.Relationship {
	return graph.NewRelationship(source.EntityID(), target.EntityID(), kind, 0.5, 1.0)
}

func TestLayeredArchitecture(t *testing.T) {
	repoID := uuid.New()
	controller := typedEntity(repoID, graph.EntityKindController, "OrderController")
	service := typedEntity(repoID, graph.EntityKindService, "OrderService")
	store := typedEntity(repoID, graph.EntityKindRepository, "OrderRepository")
	aggregate := typedEntity(repoID, graph.EntityKindAggregate, "Order")

	entities := []graph.Entity{controller, service, store, aggregate}
	relationships := []graph.Relationship{
		edge(controller, service, graph.RelationshipKindCalls),
		edge(service, store, graph.RelationshipKindUses),
	}

	snap := NewSnapshot(repoID, entities, relationships)
	found, err := LayeredArchitecture{}.Match(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, found, 1)

	pattern := found[0]
	assert.Equal(t, "layered-architecture", pattern.Name())
	assert.Equal(t, graph.PatternCategoryArchitectural, pattern.Category())
	assert.InDelta(t, 0.9, pattern.Confidence(), 0.001)
	assert.Len(t, pattern.Participants(), 4)
	assert.False(t, pattern.HasViolations())
	assert.Contains(t, pattern.Description(), "4 of 4")
}

func TestLayeredArchitecture_SkipLayerViolation(t *testing.T) {
	repoID := uuid.New()
	controller := typedEntity(repoID, graph.EntityKindController, "OrderController")
	store := typedEntity(repoID, graph.EntityKindRepository, "OrderRepository")

	snap := NewSnapshot(repoID,
		[]graph.Entity{controller, store},
		[]graph.Relationship{edge(controller, store, graph.RelationshipKindUses)},
	)
	found, err := LayeredArchitecture{}.Match(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].HasViolations())
	assert.InDelta(t, 0.6, found[0].Confidence(), 0.001)
}

func TestLayeredArchitecture_TooFewLayers(t *testing.T) {
	repoID := uuid.New()
	snap := NewSnapshot(repoID, []graph.Entity{
		typedEntity(repoID, graph.EntityKindService, "OrderService"),
		typedEntity(repoID, graph.EntityKindService, "BillingService"),
	}, nil)

	found, err := LayeredArchitecture{}.Match(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestLayeredArchitecture_PathHeuristic(t *testing.T) {
	repoID := uuid.New()
	server := graph.NewEntity(repoID, graph.EntityKindStruct, "Server", "app.Server").
		WithLocation("go", "internal/api/server.go", 1, 100)
	backing := graph.NewEntity(repoID, graph.EntityKindStruct, "Backing", "app.Backing").
		WithLocation("go", "internal/persistence/backing.go", 1, 80)

	snap := NewSnapshot(repoID, []graph.Entity{server, backing}, nil)
	found, err := LayeredArchitecture{}.Match(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.InDelta(t, 0.6, found[0].Confidence(), 0.001)
}

func TestRepositoryPattern(t *testing.T) {
	repoID := uuid.New()

	t.Run("by kind", func(t *testing.T) {
		snap := NewSnapshot(repoID, []graph.Entity{
			typedEntity(repoID, graph.EntityKindRepository, "UserRepository"),
		}, nil)
		found, err := RepositoryPattern{}.Match(context.Background(), snap)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.InDelta(t, 0.9, found[0].Confidence(), 0.001)
	})

	t.Run("by name suffix", func(t *testing.T) {
		snap := NewSnapshot(repoID, []graph.Entity{
			typedEntity(repoID, graph.EntityKindStruct, "UserStore"),
		}, nil)
		found, err := RepositoryPattern{}.Match(context.Background(), snap)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.InDelta(t, 0.7, found[0].Confidence(), 0.001)
	})

	t.Run("absent", func(t *testing.T) {
		snap := NewSnapshot(repoID, []graph.Entity{
			typedEntity(repoID, graph.EntityKindStruct, "Parser"),
		}, nil)
		found, err := RepositoryPattern{}.Match(context.Background(), snap)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestServiceLayer(t *testing.T) {
	repoID := uuid.New()
	snap := NewSnapshot(repoID, []graph.Entity{
		typedEntity(repoID, graph.EntityKindService, "SearchService"),
		typedEntity(repoID, graph.EntityKindStruct, "IngestUseCase"),
	}, nil)

	found, err := ServiceLayer{}.Match(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "service-layer", found[0].Name())
	assert.InDelta(t, 0.9, found[0].Confidence(), 0.001)
	assert.Len(t, found[0].Participants(), 2)
}

func TestGodEntity(t *testing.T) {
	repoID := uuid.New()
	god := typedEntity(repoID, graph.EntityKindClass, "Kernel")
	entities := []graph.Entity{god}
	var relationships []graph.Relationship
	for i := 0; i < 25; i++ {
		callee := typedEntity(repoID, graph.EntityKindFunction, fmt.Sprintf("helper%02d", i))
		entities = append(entities, callee)
		relationships = append(relationships, edge(god, callee, graph.RelationshipKindCalls))
	}

	snap := NewSnapshot(repoID, entities, relationships)
	found, err := GodEntity{}.Match(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, found, 1)

	pattern := found[0]
	assert.Equal(t, "god-entity", pattern.Name())
	assert.True(t, pattern.IsAntiPattern())
	assert.Equal(t, graph.SeverityWarning, pattern.Severity())
	assert.Equal(t, []string{god.EntityID()}, pattern.Participants())
	assert.InDelta(t, 25.0/40.0, pattern.Confidence(), 0.001)
	assert.Contains(t, pattern.Description(), "25 relationships")
	assert.NotEmpty(t, pattern.Remediation())
}

func TestGodEntity_SevereDegree(t *testing.T) {
	repoID := uuid.New()
	god := typedEntity(repoID, graph.EntityKindStruct, "Monolith")
	entities := []graph.Entity{god}
	var relationships []graph.Relationship
	for i := 0; i < 45; i++ {
		other := typedEntity(repoID, graph.EntityKindStruct, fmt.Sprintf("Part%02d", i))
		entities = append(entities, other)
		relationships = append(relationships, edge(other, god, graph.RelationshipKindUses))
	}

	snap := NewSnapshot(repoID, entities, relationships)
	found, err := GodEntity{}.Match(context.Background(), snap)
	require.NoError(t, err)

	var monolith []graph.Pattern
	for _, p := range found {
		if p.Participants()[0] == god.EntityID() {
			monolith = append(monolith, p)
		}
	}
	require.Len(t, monolith, 1)
	assert.Equal(t, graph.SeverityError, monolith[0].Severity())
	assert.InDelta(t, 1.0, monolith[0].Confidence(), 0.001)
}

func TestGodEntity_IgnoresFunctions(t *testing.T) {
	repoID := uuid.New()
	hub := typedEntity(repoID, graph.EntityKindFunction, "main")
	entities := []graph.Entity{hub}
	var relationships []graph.Relationship
	for i := 0; i < 30; i++ {
		callee := typedEntity(repoID, graph.EntityKindFunction, fmt.Sprintf("step%02d", i))
		entities = append(entities, callee)
		relationships = append(relationships, edge(hub, callee, graph.RelationshipKindCalls))
	}

	snap := NewSnapshot(repoID, entities, relationships)
	found, err := GodEntity{}.Match(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestHighCoupling(t *testing.T) {
	repoID := uuid.New()
	coupled := typedEntity(repoID, graph.EntityKindStruct, "Orchestrator")
	entities := []graph.Entity{coupled}
	var relationships []graph.Relationship
	for i := 0; i < 16; i++ {
		dep := typedEntity(repoID, graph.EntityKindStruct, fmt.Sprintf("Dep%02d", i))
		entities = append(entities, dep)
		relationships = append(relationships, edge(coupled, dep, graph.RelationshipKindUses))
	}

	snap := NewSnapshot(repoID, entities, relationships)
	found, err := HighCoupling{}.Match(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "high-coupling", found[0].Name())
	assert.Equal(t, graph.SeverityWarning, found[0].Severity())
	assert.Contains(t, found[0].Description(), "16 distinct entities")
}

func TestHighCoupling_CountsDistinctTargets(t *testing.T) {
	repoID := uuid.New()
	source := typedEntity(repoID, graph.EntityKindStruct, "Caller")
	target := typedEntity(repoID, graph.EntityKindStruct, "Callee")

	// Many edges to the same target stay below the fan-out threshold.
	var relationships []graph.Relationship
	for _, kind := range []graph.RelationshipKind{
		graph.RelationshipKindCalls, graph.RelationshipKindUses, graph.RelationshipKindReferences,
	} {
		relationships = append(relationships, edge(source, target, kind))
	}

	snap := NewSnapshot(repoID, []graph.Entity{source, target}, relationships)
	found, err := HighCoupling{}.Match(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCircularDependency(t *testing.T) {
	repoID := uuid.New()
	a := typedEntity(repoID, graph.EntityKindPackage, "alpha")
	b := typedEntity(repoID, graph.EntityKindPackage, "beta")
	c := typedEntity(repoID, graph.EntityKindPackage, "gamma")

	snap := NewSnapshot(repoID,
		[]graph.Entity{a, b, c},
		[]graph.Relationship{
			edge(a, b, graph.RelationshipKindDependsOn),
			edge(b, c, graph.RelationshipKindImports),
			edge(c, a, graph.RelationshipKindDependsOn),
		},
	)

	found, err := CircularDependency{}.Match(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, found, 1)

	pattern := found[0]
	assert.Equal(t, "circular-dependency", pattern.Name())
	assert.Equal(t, graph.SeverityError, pattern.Severity())
	assert.InDelta(t, 1.0, pattern.Confidence(), 0.001)
	assert.Len(t, pattern.Participants(), 3)
	assert.Contains(t, pattern.Description(), " -> ")
}

func TestCircularDependency_IgnoresCallCycles(t *testing.T) {
	repoID := uuid.New()
	a := typedEntity(repoID, graph.EntityKindFunction, "ping")
	b := typedEntity(repoID, graph.EntityKindFunction, "pong")

	snap := NewSnapshot(repoID,
		[]graph.Entity{a, b},
		[]graph.Relationship{
			edge(a, b, graph.RelationshipKindCalls),
			edge(b, a, graph.RelationshipKindCalls),
		},
	)

	found, err := CircularDependency{}.Match(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCircularDependency_AcyclicGraph(t *testing.T) {
	repoID := uuid.New()
	a := typedEntity(repoID, graph.EntityKindPackage, "alpha")
	b := typedEntity(repoID, graph.EntityKindPackage, "beta")
	c := typedEntity(repoID, graph.EntityKindPackage, "gamma")

	snap := NewSnapshot(repoID,
		[]graph.Entity{a, b, c},
		[]graph.Relationship{
			edge(a, b, graph.RelationshipKindDependsOn),
			edge(a, c, graph.RelationshipKindDependsOn),
			edge(b, c, graph.RelationshipKindDependsOn),
		},
	)

	found, err := CircularDependency{}.Match(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestNormalizeCycle(t *testing.T) {
	assert.Equal(t,
		normalizeCycle([]string{"b", "c", "a"}),
		normalizeCycle([]string{"a", "b", "c"}),
	)
	assert.Equal(t, []string{"a", "b", "c"}, normalizeCycle([]string{"c", "a", "b"}))
}

func TestRegistry_Detect(t *testing.T) {
	repoID := uuid.New()
	controller := typedEntity(repoID, graph.EntityKindController, "APIController")
	service := typedEntity(repoID, graph.EntityKindService, "CoreService")
	store := typedEntity(repoID, graph.EntityKindRepository, "CoreStore")

	entities := []graph.Entity{controller, service, store}
	relationships := []graph.Relationship{
		edge(controller, service, graph.RelationshipKindCalls),
		edge(service, store, graph.RelationshipKindUses),
	}

	registry := NewRegistry(testLogger())
	snap := NewSnapshot(repoID, entities, relationships)
	found, err := registry.Detect(context.Background(), snap)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, p := range found {
		names[p.Name()] = true
		assert.Equal(t, repoID, p.RepositoryID())
	}
	assert.True(t, names["layered-architecture"])
	assert.True(t, names["repository-pattern"])
	assert.True(t, names["service-layer"])
	assert.False(t, names["god-entity"])
}

type stubMatcher struct {
	name     string
	patterns []graph.Pattern
	err      error
}

func (s stubMatcher) Name() string { return s.name }

func (s stubMatcher) Match(_ context.Context, _ Snapshot) ([]graph.Pattern, error) {
	return s.patterns, s.err
}

func TestRegistry_FailingMatcherSkipped(t *testing.T) {
	repoID := uuid.New()
	good := graph.NewArchitecturalPattern(repoID, "stub", nil, 0.5, "stub finding")

	registry := NewRegistry(testLogger(),
		stubMatcher{name: "broken", err: errors.New("matcher bug")},
		stubMatcher{name: "working", patterns: []graph.Pattern{good}},
	)

	found, err := registry.Detect(context.Background(), NewSnapshot(repoID, nil, nil))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "stub", found[0].Name())
}

func TestRegistry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	registry := NewRegistry(testLogger())
	_, err := registry.Detect(ctx, NewSnapshot(uuid.New(), nil, nil))
	assert.Error(t, err)
}

func TestRegistry_Names(t *testing.T) {
	registry := NewRegistry(testLogger())
	assert.Equal(t, []string{
		"layered-architecture", "repository-pattern", "service-layer",
		"god-entity", "circular-dependency", "high-coupling",
	}, registry.Names())
}
