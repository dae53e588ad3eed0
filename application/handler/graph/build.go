// Package graph provides the task handler that builds a repository's
// knowledge graph.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/archielabs/archie/application/handler"
	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/githost"
	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/infrastructure/extract"
	"github.com/archielabs/archie/infrastructure/patterns"
	"github.com/archielabs/archie/internal/config"
	"github.com/google/uuid"
)

// Build handles the graph.build task operation: it fetches the
// repository's source files, extracts entities and relationships,
// detects architectural patterns, and atomically installs the result as
// the repository's current graph build.
type Build struct {
	repositories   repository.Store
	provider       githost.Provider
	graphs         graph.Store
	extractor      *extract.Extractor
	registry       *patterns.Registry
	cfg            config.IngestConfig
	filter         config.IngestFilter
	bus            event.Bus
	trackerFactory handler.TrackerFactory
	logger         *slog.Logger
}

// NewBuild creates a new Build handler.
func NewBuild(
	repositories repository.Store,
	provider githost.Provider,
	graphs graph.Store,
	extractor *extract.Extractor,
	registry *patterns.Registry,
	cfg config.IngestConfig,
	filter config.IngestFilter,
	bus event.Bus,
	trackerFactory handler.TrackerFactory,
	logger *slog.Logger,
) *Build {
	return &Build{
		repositories:   repositories,
		provider:       provider,
		graphs:         graphs,
		extractor:      extractor,
		registry:       registry,
		cfg:            cfg,
		filter:         filter,
		bus:            bus,
		trackerFactory: trackerFactory,
		logger:         logger,
	}
}

// Execute processes the graph.build task.
func (h *Build) Execute(ctx context.Context, payload map[string]any) error {
	repoID, err := handler.ExtractRepositoryID(payload)
	if err != nil {
		return err
	}

	depth := graph.DefaultAnalysisDepth
	if raw, err := handler.ExtractString(payload, service.PayloadDepth); err == nil {
		if candidate := graph.AnalysisDepth(raw); candidate.IsValid() {
			depth = candidate
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.TimeBudget())
	defer cancel()

	tracker := h.trackerFactory.ForOperation(
		task.OperationBuildGraph,
		task.TrackableTypeGraph,
		repoID.String(),
	)

	repo, err := h.repositories.Get(ctx, repoID)
	if err != nil {
		tracker.Fail(ctx, err.Error())
		return fmt.Errorf("get repository: %w", err)
	}

	build, entityCount, relationshipCount, err := h.run(ctx, repo, depth, tracker)
	if err != nil {
		h.publishFailed(ctx, repoID, err)
		tracker.Fail(ctx, err.Error())
		return err
	}

	if err := h.bus.Publish(ctx, event.NewGraphBuildCompleted(repoID, build.BuildID(), entityCount, relationshipCount)); err != nil {
		h.logger.Warn("failed to publish graph build completed",
			slog.String("repo_id", repoID.String()),
			slog.String("error", err.Error()),
		)
	}

	h.logger.Info("graph build finished",
		slog.String("repo_id", repoID.String()),
		slog.String("depth", string(depth)),
		slog.Int("entities", entityCount),
		slog.Int("relationships", relationshipCount),
	)
	return nil
}

func (h *Build) run(ctx context.Context, repo repository.Repository, depth graph.AnalysisDepth, tracker handler.Tracker) (graph.Build, int, int, error) {
	branch := repo.DefaultBranch()
	tree, err := h.provider.GetTree(ctx, repo.Owner(), repo.Name(), branch, true)
	if err != nil {
		return graph.Build{}, 0, 0, fmt.Errorf("get tree: %w", err)
	}

	var entries []githost.TreeEntry
	for _, entry := range tree.Blobs() {
		if h.filter.SkipPath(entry.Path()) || h.filter.SkipSize(entry.Size()) {
			continue
		}
		entries = append(entries, entry)
	}

	tracker.SetTotal(ctx, len(entries))

	files, err := h.fetchSources(ctx, repo, branch, entries, tracker)
	if err != nil {
		return graph.Build{}, 0, 0, err
	}

	result, err := h.extractor.Extract(ctx, repo.ID(), files, depth)
	if err != nil {
		return graph.Build{}, 0, 0, fmt.Errorf("extract entities: %w", err)
	}
	entities := result.Entities()
	relationships := result.Relationships()

	var detected []graph.Pattern
	if depth.Covers(graph.AnalysisDepthStandard) {
		detected, err = h.registry.Detect(ctx, patterns.NewSnapshot(repo.ID(), entities, relationships))
		if err != nil {
			return graph.Build{}, 0, 0, fmt.Errorf("detect patterns: %w", err)
		}
	}

	build := graph.NewBuild(repo.ID(), depth).
		WithCounts(len(entities), len(relationships), len(detected))
	if err := h.graphs.ReplaceBuild(ctx, build, entities, relationships, detected); err != nil {
		return graph.Build{}, 0, 0, fmt.Errorf("install build: %w", err)
	}

	return build, len(entities), len(relationships), nil
}

// fetchSources downloads source contents with bounded concurrency,
// skipping files whose content cannot be decoded as text.
func (h *Build) fetchSources(ctx context.Context, repo repository.Repository, branch string, entries []githost.TreeEntry, tracker handler.Tracker) ([]extract.SourceFile, error) {
	files := make([]extract.SourceFile, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.FetchConcurrency())

	for i, entry := range entries {
		g.Go(func() error {
			content, err := h.provider.GetFileContent(gctx, repo.Owner(), repo.Name(), entry.Path(), branch)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", entry.Path(), err)
			}
			files[i] = extract.NewSourceFile(entry.Path(), content)
			tracker.SetCurrent(gctx, i+1, fmt.Sprintf("Analyzed %s", entry.Path()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := files[:0]
	for _, f := range files {
		if strings.TrimSpace(f.Content()) == "" {
			continue
		}
		kept = append(kept, f)
	}
	return kept, nil
}

func (h *Build) publishFailed(ctx context.Context, repoID uuid.UUID, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := h.bus.Publish(ctx, event.NewGraphBuildFailed(repoID, cause.Error())); err != nil {
		h.logger.Warn("failed to publish graph build failed", slog.String("error", err.Error()))
	}
}

var _ service.Handler = (*Build)(nil)
