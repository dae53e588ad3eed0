package archie

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/archielabs/archie/application/handler"
	graphhandler "github.com/archielabs/archie/application/handler/graph"
	ingesthandler "github.com/archielabs/archie/application/handler/ingest"
	repohandler "github.com/archielabs/archie/application/handler/repository"
	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/infrastructure/tracking"
)

// registerHandlers registers all task handlers with the worker registry.
func (c *Client) registerHandlers() {
	c.registry.Register(task.OperationRefreshRepository, repohandler.NewRefresh(
		c.Repositories, c.trackerFactory, c.logger,
	))

	// The ingest step completes the indexing run unless an embed step
	// follows it.
	c.registry.Register(task.OperationIngestDocuments, ingesthandler.NewIngest(
		c.repoStore, c.gitProvider, c.documentStore, c.indexStatuses,
		c.keyword, c.vector, c.ingestCfg, c.ingestFilter,
		c.embedder == nil,
		c.eventBus, c.trackerFactory, c.logger,
	))

	// Embedding handler — only when an embedding provider is configured
	if c.embedder != nil {
		c.registry.Register(task.OperationEmbedDocuments, ingesthandler.NewEmbed(
			c.repoStore, c.documentStore, c.indexStatuses,
			c.vector, c.embedder, c.embeddingBudget, c.ingestCfg,
			c.eventBus, c.trackerFactory, c.logger,
		))
	}

	c.registry.Register(task.OperationBuildGraph, graphhandler.NewBuild(
		c.repoStore, c.gitProvider, c.graphStore,
		c.extractor, c.patternRegistry,
		c.ingestCfg, c.ingestFilter,
		c.eventBus, c.trackerFactory, c.logger,
	))

	c.registry.Register(task.OperationDeleteRepository, repohandler.NewDelete(
		c.repoStore, c.documentStore, c.indexStatuses,
		c.keyword, c.vector, c.graphStore, c.taskStatusStore,
		c.logger,
	))

	c.logger.Info("registered task handlers", slog.Int("count", len(c.registry.Operations())))
}

// validateHandlers checks that every prescribed operation has a registered
// handler. Returns an error listing missing operations.
func (c *Client) validateHandlers() error {
	var missing []string
	for _, op := range c.prescribedOps.All() {
		if !c.registry.HasHandler(op) {
			missing = append(missing, op.String())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf(
		"missing handlers for operations: [%s] — configure an embedding provider (WithOpenAI, WithEmbeddingProvider) or use WithSkipProviderValidation to start without one",
		strings.Join(missing, ", "),
	)
}

// trackerFactoryImpl implements handler.TrackerFactory for progress reporting.
type trackerFactoryImpl struct {
	reporters []tracking.Reporter
	logger    *slog.Logger
}

// ForOperation creates a Tracker for the given operation.
func (f *trackerFactoryImpl) ForOperation(operation task.Operation, trackableType task.TrackableType, trackableID string) handler.Tracker {
	tracker := tracking.TrackerForOperation(operation, f.logger, trackableType, trackableID)
	for _, reporter := range f.reporters {
		tracker.Subscribe(reporter)
	}
	return tracker
}

// workerTrackerAdapter adapts trackerFactoryImpl to service.WorkerTrackerFactory.
type workerTrackerAdapter struct {
	factory *trackerFactoryImpl
}

// ForOperation creates a WorkerTracker for the given operation.
func (a *workerTrackerAdapter) ForOperation(operation task.Operation, trackableType task.TrackableType, trackableID string) service.WorkerTracker {
	return a.factory.ForOperation(operation, trackableType, trackableID)
}
