package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/infrastructure/patterns"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
)

// PayloadDepth is the payload key carrying the requested analysis depth.
const PayloadDepth = "depth"

// Graph provides knowledge graph operations: queueing construction runs
// and querying the current build's entities, relationships and patterns.
type Graph struct {
	repositories repository.Store
	store        graph.Store
	registry     *patterns.Registry
	queue        *Queue
	logger       *slog.Logger
}

// NewGraph creates a new Graph service.
func NewGraph(
	repositories repository.Store,
	store graph.Store,
	registry *patterns.Registry,
	queue *Queue,
	logger *slog.Logger,
) *Graph {
	return &Graph{
		repositories: repositories,
		store:        store,
		registry:     registry,
		queue:        queue,
		logger:       logger,
	}
}

// Build queues graph construction for the given repositories and returns
// the ids accepted. Every repository must exist and have completed at
// least one indexing run, since construction reads indexed documents.
func (s *Graph) Build(ctx context.Context, repositoryIDs []uuid.UUID, depth graph.AnalysisDepth) ([]uuid.UUID, error) {
	if len(repositoryIDs) == 0 {
		return nil, errs.New(errs.KindInvalidInput, "at least one repository id is required")
	}
	if !depth.IsValid() {
		depth = graph.DefaultAnalysisDepth
	}

	for _, id := range repositoryIDs {
		repo, err := s.repositories.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get repository: %w", err)
		}
		if !repo.HasBeenIndexed() {
			return nil, errs.Newf(errs.KindInvalidState,
				"repository %s has not been indexed yet", id)
		}
	}

	queued := make([]uuid.UUID, 0, len(repositoryIDs))
	for _, id := range repositoryIDs {
		payload := map[string]any{
			task.PayloadRepositoryID: id.String(),
			PayloadDepth:             string(depth),
		}
		t := task.NewTask(task.OperationBuildGraph, int(task.PriorityBackground), payload)
		if err := s.queue.Enqueue(ctx, t); err != nil {
			return queued, fmt.Errorf("enqueue graph build: %w", err)
		}
		queued = append(queued, id)
	}

	s.logger.Info("graph build queued",
		slog.Int("repositories", len(queued)),
		slog.String("depth", string(depth)),
	)

	return queued, nil
}

// Update re-queues graph construction for a repository at the depth of
// its current build, or the default depth if none exists yet.
func (s *Graph) Update(ctx context.Context, repositoryID uuid.UUID) error {
	depth := graph.DefaultAnalysisDepth

	build, err := s.store.CurrentBuild(ctx, repositoryID)
	switch {
	case err == nil:
		depth = build.Depth()
	case errs.IsKind(err, errs.KindNotFound):
		// First build for this repository.
	default:
		return fmt.Errorf("get current build: %w", err)
	}

	_, err = s.Build(ctx, []uuid.UUID{repositoryID}, depth)
	return err
}

// Delete removes every graph build of a repository. Returns true if a
// current build existed.
func (s *Graph) Delete(ctx context.Context, repositoryID uuid.UUID) (bool, error) {
	existed := true
	if _, err := s.store.CurrentBuild(ctx, repositoryID); err != nil {
		if !errs.IsKind(err, errs.KindNotFound) {
			return false, fmt.Errorf("get current build: %w", err)
		}
		existed = false
	}

	if err := s.store.DeleteByRepository(ctx, repositoryID); err != nil {
		return false, fmt.Errorf("delete graph: %w", err)
	}

	if existed {
		s.logger.Info("graph deleted", slog.String("repo_id", repositoryID.String()))
	}
	return existed, nil
}

// CurrentBuild returns the repository's active graph build.
func (s *Graph) CurrentBuild(ctx context.Context, repositoryID uuid.UUID) (graph.Build, error) {
	return s.store.CurrentBuild(ctx, repositoryID)
}

// Entities returns entities of the repository's current build.
func (s *Graph) Entities(ctx context.Context, repositoryID uuid.UUID, options ...repository.Option) ([]graph.Entity, error) {
	options = append([]repository.Option{repository.WithRepositoryID(repositoryID)}, options...)
	return s.store.Entities(ctx, options...)
}

// Entity returns a single entity by its stable id.
func (s *Graph) Entity(ctx context.Context, entityID string) (graph.Entity, error) {
	return s.store.Entity(ctx, entityID)
}

// Relationships returns relationships of the repository's current build.
func (s *Graph) Relationships(ctx context.Context, repositoryID uuid.UUID, options ...repository.Option) ([]graph.Relationship, error) {
	options = append([]repository.Option{repository.WithRepositoryID(repositoryID)}, options...)
	return s.store.Relationships(ctx, options...)
}

// Patterns returns the patterns stored with the repository's current build.
func (s *Graph) Patterns(ctx context.Context, repositoryID uuid.UUID, options ...repository.Option) ([]graph.Pattern, error) {
	options = append([]repository.Option{repository.WithRepositoryID(repositoryID)}, options...)
	return s.store.Patterns(ctx, options...)
}

// DetectPatterns runs the pattern matchers over the current build and
// returns architectural patterns, optionally restricted to the named
// kinds. Detection is live, so it reflects the present matcher set even
// for builds constructed before a matcher was added.
func (s *Graph) DetectPatterns(ctx context.Context, repositoryID uuid.UUID, names ...string) ([]graph.Pattern, error) {
	detected, err := s.detect(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	result := make([]graph.Pattern, 0, len(detected))
	for _, p := range detected {
		if p.Category() != graph.PatternCategoryArchitectural {
			continue
		}
		if len(names) > 0 && !slices.Contains(names, p.Name()) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

// DetectAntiPatterns runs the pattern matchers over the current build
// and returns the anti-patterns found.
func (s *Graph) DetectAntiPatterns(ctx context.Context, repositoryID uuid.UUID) ([]graph.Pattern, error) {
	detected, err := s.detect(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	result := make([]graph.Pattern, 0, len(detected))
	for _, p := range detected {
		if p.IsAntiPattern() {
			result = append(result, p)
		}
	}
	return result, nil
}

// FindPath finds the shortest relationship path between two entities in
// a repository's current build. The returned slice holds the entities
// along the path including both endpoints, or is empty when no path
// exists within maxDepth hops (capped at 5). Identical source and
// target yields an empty path.
func (s *Graph) FindPath(ctx context.Context, repositoryID uuid.UUID, sourceID, targetID string, maxDepth int) ([]graph.Entity, error) {
	if sourceID == "" || targetID == "" {
		return nil, errs.New(errs.KindInvalidInput, "source and target entity ids are required")
	}

	relationships, err := s.store.Relationships(ctx, repository.WithRepositoryID(repositoryID))
	if err != nil {
		return nil, fmt.Errorf("load relationships: %w", err)
	}

	ids := graph.ShortestPath(graph.NewAdjacency(relationships), sourceID, targetID, maxDepth)
	if len(ids) == 0 {
		return []graph.Entity{}, nil
	}

	path := make([]graph.Entity, 0, len(ids))
	for _, id := range ids {
		entity, err := s.store.Entity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve path entity %s: %w", id, err)
		}
		path = append(path, entity)
	}
	return path, nil
}

// detect loads the current build's records and runs the matcher registry.
func (s *Graph) detect(ctx context.Context, repositoryID uuid.UUID) ([]graph.Pattern, error) {
	if _, err := s.store.CurrentBuild(ctx, repositoryID); err != nil {
		return nil, fmt.Errorf("get current build: %w", err)
	}

	entities, err := s.store.Entities(ctx, repository.WithRepositoryID(repositoryID))
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	relationships, err := s.store.Relationships(ctx, repository.WithRepositoryID(repositoryID))
	if err != nil {
		return nil, fmt.Errorf("load relationships: %w", err)
	}

	return s.registry.Detect(ctx, patterns.NewSnapshot(repositoryID, entities, relationships))
}
