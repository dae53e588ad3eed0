package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/archielabs/archie/application/handler"
	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/internal/config"
	"github.com/archielabs/archie/internal/errs"
)

// Embed handles the document.embed task operation: it computes embedding
// vectors for indexed documents that do not have one yet and completes
// the indexing run.
//
// Embedding failure is not run failure. A batch that exhausts the
// provider's retries is logged and skipped; its documents stay keyword
// searchable and are picked up by the next run.
type Embed struct {
	repositories   repository.Store
	documents      document.Store
	statuses       document.StatusStore
	vector         search.VectorStore
	embedder       search.Embedder
	budget         search.TokenBudget
	cfg            config.IngestConfig
	bus            event.Bus
	trackerFactory handler.TrackerFactory
	logger         *slog.Logger
}

// NewEmbed creates a new Embed handler.
func NewEmbed(
	repositories repository.Store,
	documents document.Store,
	statuses document.StatusStore,
	vector search.VectorStore,
	embedder search.Embedder,
	budget search.TokenBudget,
	cfg config.IngestConfig,
	bus event.Bus,
	trackerFactory handler.TrackerFactory,
	logger *slog.Logger,
) *Embed {
	return &Embed{
		repositories:   repositories,
		documents:      documents,
		statuses:       statuses,
		vector:         vector,
		embedder:       embedder,
		budget:         budget,
		cfg:            cfg,
		bus:            bus,
		trackerFactory: trackerFactory,
		logger:         logger,
	}
}

// Execute processes the document.embed task.
func (h *Embed) Execute(ctx context.Context, payload map[string]any) error {
	repoID, err := handler.ExtractRepositoryID(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.TimeBudget())
	defer cancel()

	tracker := h.trackerFactory.ForOperation(
		task.OperationEmbedDocuments,
		task.TrackableTypeRepository,
		repoID.String(),
	)

	repo, err := h.repositories.Get(ctx, repoID)
	if err != nil {
		tracker.Fail(ctx, err.Error())
		return fmt.Errorf("get repository: %w", err)
	}

	embedded, failed, err := h.embedMissing(ctx, repo, tracker)
	if err != nil {
		h.failRun(ctx, repo, err)
		tracker.Fail(ctx, err.Error())
		return err
	}

	if err := h.completeRun(ctx, repo); err != nil {
		h.failRun(ctx, repo, err)
		tracker.Fail(ctx, err.Error())
		return err
	}

	h.logger.Info("embedding finished",
		slog.String("repo_id", repoID.String()),
		slog.Int("embedded", embedded),
		slog.Int("failed", failed),
	)
	return nil
}

// embedMissing embeds every document without a stored vector, in
// budget-bounded batches with bounded concurrency. Returns the count of
// documents embedded and the count skipped due to provider failures.
func (h *Embed) embedMissing(ctx context.Context, repo repository.Repository, tracker handler.Tracker) (int, int, error) {
	docs, err := h.documents.Find(ctx, repository.WithRepositoryID(repo.ID()))
	if err != nil {
		return 0, 0, fmt.Errorf("find documents: %w", err)
	}

	pending, err := h.pendingDocuments(ctx, docs)
	if err != nil {
		return 0, 0, err
	}
	if len(pending) == 0 {
		tracker.SetTotal(ctx, 0)
		return 0, 0, nil
	}

	byID := make(map[string]document.Document, len(docs))
	for _, d := range docs {
		byID[d.ID().String()] = d
	}

	inputs := make([]search.Document, len(pending))
	for i, d := range pending {
		inputs[i] = search.NewDocument(d.ID().String(), h.budget.Truncate(d.Content()))
	}
	batches := h.budget.Batches(inputs)

	tracker.SetTotal(ctx, len(pending))

	var mu sync.Mutex
	embedded := 0
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.EmbedConcurrency())

	for _, batch := range batches {
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, d := range batch {
				texts[i] = d.Text()
			}

			vectors, err := h.embedder.Embed(gctx, texts)
			if err != nil {
				// Budget or shutdown cancellation fails the run; a
				// provider error only skips the batch.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				h.logger.Warn("embedding batch failed, documents stay keyword-only",
					slog.String("repo_id", repo.ID().String()),
					slog.Int("batch_size", len(batch)),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failed += len(batch)
				mu.Unlock()
				return nil
			}
			if len(vectors) != len(batch) {
				return errs.Newf(errs.KindInternal,
					"embedder returned %d vectors for %d inputs", len(vectors), len(batch))
			}

			embeddings := make([]search.Embedding, len(batch))
			flagged := make([]document.Document, 0, len(batch))
			for i, d := range batch {
				embeddings[i] = search.NewEmbedding(d.DocumentID(), vectors[i])
				if doc, ok := byID[d.DocumentID()]; ok {
					flagged = append(flagged, doc.WithVector(true))
				}
			}

			if err := h.vector.SaveAll(gctx, embeddings); err != nil {
				return fmt.Errorf("save embeddings: %w", err)
			}
			if err := h.documents.Upsert(gctx, flagged); err != nil {
				return fmt.Errorf("flag embedded documents: %w", err)
			}

			mu.Lock()
			embedded += len(batch)
			done := embedded + failed
			mu.Unlock()
			tracker.SetCurrent(gctx, done, fmt.Sprintf("Embedded %d of %d documents", done, len(pending)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return embedded, failed, err
	}
	return embedded, failed, nil
}

// pendingDocuments filters the repository's documents down to those with
// no stored embedding.
func (h *Embed) pendingDocuments(ctx context.Context, docs []document.Document) ([]document.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID().String()
	}
	have, err := h.vector.HasEmbeddings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check embeddings: %w", err)
	}

	var pending []document.Document
	for _, d := range docs {
		if !have[d.ID().String()] {
			pending = append(pending, d)
		}
	}
	return pending, nil
}

// completeRun marks the indexing run finished: status completed,
// repository ready, completion event published.
func (h *Embed) completeRun(ctx context.Context, repo repository.Repository) error {
	status, err := h.statuses.Get(ctx, repo.ID())
	if err != nil {
		return fmt.Errorf("get index status: %w", err)
	}
	if _, err := h.statuses.Save(ctx, status.Complete()); err != nil {
		return fmt.Errorf("save index status: %w", err)
	}

	ready, ok := repo.TransitionTo(repository.StatusReady)
	if !ok {
		return errs.Newf(errs.KindInvalidState,
			"repository %s cannot transition from %s to ready", repo.ID(), repo.Status())
	}
	if err := h.repositories.Save(ctx, ready); err != nil {
		return fmt.Errorf("save repository: %w", err)
	}

	total, err := h.documents.Count(ctx, repository.WithRepositoryID(repo.ID()))
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if err := h.bus.Publish(ctx, event.NewRepositoryAnalysisCompleted(repo.ID(), int(total))); err != nil {
		h.logger.Warn("failed to publish analysis completed",
			slog.String("repo_id", repo.ID().String()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// failRun mirrors the ingest step's failure recording.
func (h *Embed) failRun(ctx context.Context, repo repository.Repository, cause error) {
	ctx = context.WithoutCancel(ctx)

	if status, err := h.statuses.Get(ctx, repo.ID()); err == nil {
		if _, err := h.statuses.Save(ctx, status.Fail(cause.Error())); err != nil {
			h.logger.Error("failed to record index failure", slog.String("error", err.Error()))
		}
	}
	if err := h.repositories.Save(ctx, repo.WithError(cause.Error())); err != nil {
		h.logger.Error("failed to record repository failure", slog.String("error", err.Error()))
	}
	if err := h.bus.Publish(ctx, event.NewRepositoryAnalysisFailed(repo.ID(), cause.Error())); err != nil {
		h.logger.Warn("failed to publish analysis failed", slog.String("error", err.Error()))
	}
}

var _ service.Handler = (*Embed)(nil)
var _ service.Handler = (*Ingest)(nil)
