package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
)

// PayloadForce is the payload key marking a full (non-incremental) run.
const PayloadForce = "force"

// Ingestion coordinates repository indexing runs. The heavy work happens
// in queued task handlers; this service validates, records the run as
// started, and enqueues the operation sequence.
type Ingestion struct {
	repositories repository.Store
	documents    document.Store
	statuses     document.StatusStore
	keyword      search.KeywordStore
	vector       search.VectorStore
	queue        *Queue
	prescribed   task.PrescribedOperations
	bus          event.Bus
	logger       *slog.Logger
}

// NewIngestion creates a new Ingestion service.
func NewIngestion(
	repositories repository.Store,
	documents document.Store,
	statuses document.StatusStore,
	keyword search.KeywordStore,
	vector search.VectorStore,
	queue *Queue,
	prescribed task.PrescribedOperations,
	bus event.Bus,
	logger *slog.Logger,
) *Ingestion {
	return &Ingestion{
		repositories: repositories,
		documents:    documents,
		statuses:     statuses,
		keyword:      keyword,
		vector:       vector,
		queue:        queue,
		prescribed:   prescribed,
		bus:          bus,
		logger:       logger,
	}
}

// IndexRepository starts an indexing run and returns promptly with the
// run's InProgress status. A second request while a run is in flight
// returns the existing status without queueing anything new.
func (s *Ingestion) IndexRepository(ctx context.Context, repositoryID uuid.UUID, force bool) (document.IndexStatus, error) {
	repo, err := s.repositories.Get(ctx, repositoryID)
	if err != nil {
		return document.IndexStatus{}, fmt.Errorf("get repository: %w", err)
	}

	current, err := s.statuses.Get(ctx, repositoryID)
	if err != nil {
		return document.IndexStatus{}, fmt.Errorf("get index status: %w", err)
	}
	if current.State() == document.IndexStateInProgress {
		return current, nil
	}

	if !repo.Status().IsIndexable() {
		return document.IndexStatus{}, errs.Newf(errs.KindInvalidState,
			"repository %s is %s and cannot be indexed", repositoryID, repo.Status())
	}

	analyzing, ok := repo.TransitionTo(repository.StatusAnalyzing)
	if !ok {
		return document.IndexStatus{}, errs.Newf(errs.KindInvalidState,
			"repository %s cannot transition from %s to analyzing", repositoryID, repo.Status())
	}
	if err := s.repositories.Save(ctx, analyzing); err != nil {
		return document.IndexStatus{}, fmt.Errorf("save repository: %w", err)
	}

	started, err := s.statuses.Save(ctx, current.Start())
	if err != nil {
		return document.IndexStatus{}, fmt.Errorf("save index status: %w", err)
	}

	payload := map[string]any{
		task.PayloadRepositoryID: repositoryID.String(),
		PayloadForce:             force,
	}
	if err := s.queue.EnqueueOperations(ctx, s.prescribed.IndexRepository(), task.PriorityInteractive, payload); err != nil {
		return document.IndexStatus{}, fmt.Errorf("enqueue indexing: %w", err)
	}

	if err := s.bus.Publish(ctx, event.NewRepositoryAnalysisStarted(repositoryID)); err != nil {
		s.logger.Warn("failed to publish analysis started",
			slog.String("repo_id", repositoryID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("indexing queued",
		slog.String("repo_id", repositoryID.String()),
		slog.Bool("force", force),
	)

	return started, nil
}

// RefreshIndex starts an incremental indexing run. Only files whose blob
// sha changed since the last run are re-fetched.
func (s *Ingestion) RefreshIndex(ctx context.Context, repositoryID uuid.UUID) (document.IndexStatus, error) {
	return s.IndexRepository(ctx, repositoryID, false)
}

// IndexingStatus returns the repository's current index status.
func (s *Ingestion) IndexingStatus(ctx context.Context, repositoryID uuid.UUID) (document.IndexStatus, error) {
	if _, err := s.repositories.Get(ctx, repositoryID); err != nil {
		return document.IndexStatus{}, fmt.Errorf("get repository: %w", err)
	}
	return s.statuses.Get(ctx, repositoryID)
}

// RemoveFromIndex synchronously deletes every indexed document, keyword
// entry and embedding of a repository. Returns true if any documents
// were removed. The repository row itself is kept, reset to unindexed.
func (s *Ingestion) RemoveFromIndex(ctx context.Context, repositoryID uuid.UUID) (bool, error) {
	repo, err := s.repositories.Get(ctx, repositoryID)
	if err != nil {
		return false, fmt.Errorf("get repository: %w", err)
	}

	docs, err := s.documents.Find(ctx, repository.WithRepositoryID(repositoryID))
	if err != nil {
		return false, fmt.Errorf("find documents: %w", err)
	}
	count := len(docs)

	// The keyword and vector indexes key rows on document id alone, so
	// repository-scoped removal resolves ids through the document store.
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID().String()
	}
	if err := s.keyword.DeleteBy(ctx, search.WithDocumentIDs(ids)); err != nil {
		return false, fmt.Errorf("delete keyword index: %w", err)
	}
	if err := s.vector.DeleteBy(ctx, search.WithDocumentIDs(ids)); err != nil {
		return false, fmt.Errorf("delete embeddings: %w", err)
	}
	if err := s.documents.DeleteByRepository(ctx, repositoryID); err != nil {
		return false, fmt.Errorf("delete documents: %w", err)
	}
	if err := s.statuses.Delete(ctx, repositoryID); err != nil {
		return false, fmt.Errorf("delete index status: %w", err)
	}

	reset := repo.WithIndexedCommit("", time.Time{}).WithStatistics(repository.Statistics{})
	if err := s.repositories.Save(ctx, reset); err != nil {
		return false, fmt.Errorf("save repository: %w", err)
	}

	s.logger.Info("repository removed from index",
		slog.String("repo_id", repositoryID.String()),
		slog.Int("documents", count),
	)

	return count > 0, nil
}
