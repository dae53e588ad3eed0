package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/infrastructure/patterns"
	"github.com/archielabs/archie/internal/errs"
)

type stubMatcher struct {
	name  string
	found []graph.Pattern
}

func (m stubMatcher) Name() string { return m.name }

func (m stubMatcher) Match(_ context.Context, _ patterns.Snapshot) ([]graph.Pattern, error) {
	return m.found, nil
}

func newGraphService(store *fakeGraphStore, tasks *fakeTaskStore, registry *patterns.Registry, repos ...repository.Repository) *Graph {
	if registry == nil {
		registry = patterns.NewRegistry(testLogger())
	}
	return NewGraph(
		newFakeRepositoryStore(repos...),
		store,
		registry,
		NewQueue(tasks, testLogger()),
		testLogger(),
	)
}

func TestGraph_BuildQueuesPerRepository(t *testing.T) {
	first := indexedRepository("https://github.com/acme/engine")
	second := indexedRepository("https://github.com/acme/console")
	tasks := &fakeTaskStore{}
	svc := newGraphService(newFakeGraphStore(), tasks, nil, first, second)

	queued, err := svc.Build(context.Background(), []uuid.UUID{first.ID(), second.ID()}, graph.AnalysisDepthDeep)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID(), second.ID()}, queued)

	saved := tasks.savedTasks()
	require.Len(t, saved, 2)
	for _, tk := range saved {
		assert.Equal(t, task.OperationBuildGraph, tk.Operation())
		assert.Equal(t, int(task.PriorityBackground), tk.Priority())
		assert.Equal(t, string(graph.AnalysisDepthDeep), tk.Payload()[PayloadDepth])
	}
}

func TestGraph_BuildRejectsUnindexedRepository(t *testing.T) {
	repo := connectedRepository("https://github.com/acme/engine")
	tasks := &fakeTaskStore{}
	svc := newGraphService(newFakeGraphStore(), tasks, nil, repo)

	_, err := svc.Build(context.Background(), []uuid.UUID{repo.ID()}, graph.AnalysisDepthStandard)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidState))
	assert.Empty(t, tasks.savedTasks())
}

func TestGraph_BuildRequiresRepositories(t *testing.T) {
	svc := newGraphService(newFakeGraphStore(), &fakeTaskStore{}, nil)

	_, err := svc.Build(context.Background(), nil, graph.AnalysisDepthStandard)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))
}

func TestGraph_BuildDefaultsInvalidDepth(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	tasks := &fakeTaskStore{}
	svc := newGraphService(newFakeGraphStore(), tasks, nil, repo)

	_, err := svc.Build(context.Background(), []uuid.UUID{repo.ID()}, graph.AnalysisDepth("bogus"))

	require.NoError(t, err)
	saved := tasks.savedTasks()
	require.Len(t, saved, 1)
	assert.Equal(t, string(graph.DefaultAnalysisDepth), saved[0].Payload()[PayloadDepth])
}

func TestGraph_UpdateReusesCurrentBuildDepth(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	store := newFakeGraphStore()
	require.NoError(t, store.ReplaceBuild(context.Background(), graph.NewBuild(repo.ID(), graph.AnalysisDepthDeep), nil, nil, nil))
	tasks := &fakeTaskStore{}
	svc := newGraphService(store, tasks, nil, repo)

	err := svc.Update(context.Background(), repo.ID())

	require.NoError(t, err)
	saved := tasks.savedTasks()
	require.Len(t, saved, 1)
	assert.Equal(t, string(graph.AnalysisDepthDeep), saved[0].Payload()[PayloadDepth])
}

func TestGraph_FindPathReturnsEntityChain(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	handler := graph.NewEntity(repo.ID(), graph.EntityKindClass, "OrderHandler", "api.OrderHandler")
	svcEntity := graph.NewEntity(repo.ID(), graph.EntityKindService, "OrderService", "orders.OrderService")
	repoEntity := graph.NewEntity(repo.ID(), graph.EntityKindRepository, "OrderRepository", "storage.OrderRepository")

	store := newFakeGraphStore()
	build := graph.NewBuild(repo.ID(), graph.AnalysisDepthStandard)
	entities := []graph.Entity{handler, svcEntity, repoEntity}
	relationships := []graph.Relationship{
		graph.NewRelationship(handler.EntityID(), svcEntity.EntityID(), graph.RelationshipKindReferences, 1, 1),
		graph.NewRelationship(svcEntity.EntityID(), repoEntity.EntityID(), graph.RelationshipKindReferences, 1, 1),
	}
	require.NoError(t, store.ReplaceBuild(context.Background(), build, entities, relationships, nil))
	svc := newGraphService(store, &fakeTaskStore{}, nil, repo)

	path, err := svc.FindPath(context.Background(), repo.ID(), handler.EntityID(), repoEntity.EntityID(), 5)

	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, "OrderHandler", path[0].Name())
	assert.Equal(t, "OrderService", path[1].Name())
	assert.Equal(t, "OrderRepository", path[2].Name())
}

func TestGraph_FindPathSameEndpoints(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	entity := graph.NewEntity(repo.ID(), graph.EntityKindClass, "OrderHandler", "api.OrderHandler")
	store := newFakeGraphStore()
	require.NoError(t, store.ReplaceBuild(context.Background(),
		graph.NewBuild(repo.ID(), graph.AnalysisDepthStandard),
		[]graph.Entity{entity}, nil, nil))
	svc := newGraphService(store, &fakeTaskStore{}, nil, repo)

	path, err := svc.FindPath(context.Background(), repo.ID(), entity.EntityID(), entity.EntityID(), 5)

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestGraph_FindPathRespectsMaxDepth(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	a := graph.NewEntity(repo.ID(), graph.EntityKindFunction, "a", "pkg.a")
	b := graph.NewEntity(repo.ID(), graph.EntityKindFunction, "b", "pkg.b")
	c := graph.NewEntity(repo.ID(), graph.EntityKindFunction, "c", "pkg.c")
	d := graph.NewEntity(repo.ID(), graph.EntityKindFunction, "d", "pkg.d")

	store := newFakeGraphStore()
	relationships := []graph.Relationship{
		graph.NewRelationship(a.EntityID(), b.EntityID(), graph.RelationshipKindReferences, 1, 1),
		graph.NewRelationship(b.EntityID(), c.EntityID(), graph.RelationshipKindReferences, 1, 1),
		graph.NewRelationship(c.EntityID(), d.EntityID(), graph.RelationshipKindReferences, 1, 1),
	}
	require.NoError(t, store.ReplaceBuild(context.Background(),
		graph.NewBuild(repo.ID(), graph.AnalysisDepthStandard),
		[]graph.Entity{a, b, c, d}, relationships, nil))
	svc := newGraphService(store, &fakeTaskStore{}, nil, repo)

	// Three hops separate a and d; a two-hop budget cannot reach.
	path, err := svc.FindPath(context.Background(), repo.ID(), a.EntityID(), d.EntityID(), 2)

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestGraph_FindPathRequiresEndpoints(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	svc := newGraphService(newFakeGraphStore(), &fakeTaskStore{}, nil, repo)

	_, err := svc.FindPath(context.Background(), repo.ID(), "", "some-id", 5)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))
}

func TestGraph_DetectPatternsFiltersCategories(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	store := newFakeGraphStore()
	require.NoError(t, store.ReplaceBuild(context.Background(),
		graph.NewBuild(repo.ID(), graph.AnalysisDepthStandard), nil, nil, nil))

	layered := graph.NewArchitecturalPattern(repo.ID(), "layered-architecture", nil, 0.9, "three layers found")
	god := graph.NewAntiPattern(repo.ID(), "god-entity", nil, 0.8, graph.SeverityWarning, "one entity dominates", "split it up")
	registry := patterns.NewRegistry(testLogger(), stubMatcher{name: "stub", found: []graph.Pattern{layered, god}})
	svc := newGraphService(store, &fakeTaskStore{}, registry, repo)

	architectural, err := svc.DetectPatterns(context.Background(), repo.ID())
	require.NoError(t, err)
	require.Len(t, architectural, 1)
	assert.Equal(t, "layered-architecture", architectural[0].Name())

	named, err := svc.DetectPatterns(context.Background(), repo.ID(), "hexagonal")
	require.NoError(t, err)
	assert.Empty(t, named)

	anti, err := svc.DetectAntiPatterns(context.Background(), repo.ID())
	require.NoError(t, err)
	require.Len(t, anti, 1)
	assert.Equal(t, "god-entity", anti[0].Name())
}

func TestGraph_DetectPatternsWithoutBuild(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	svc := newGraphService(newFakeGraphStore(), &fakeTaskStore{}, nil, repo)

	_, err := svc.DetectPatterns(context.Background(), repo.ID())

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestGraph_DeleteReportsExistence(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	store := newFakeGraphStore()
	svc := newGraphService(store, &fakeTaskStore{}, nil, repo)

	existed, err := svc.Delete(context.Background(), repo.ID())
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, store.ReplaceBuild(context.Background(),
		graph.NewBuild(repo.ID(), graph.AnalysisDepthStandard), nil, nil, nil))

	existed, err = svc.Delete(context.Background(), repo.ID())
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = store.CurrentBuild(context.Background(), repo.ID())
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}
