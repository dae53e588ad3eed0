package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archielabs/archie/application/handler"
	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/internal/errs"
)

// Delete handles the repository.delete task operation. It removes the
// repository record and every piece of derived data: indexed documents,
// keyword and vector index entries, index status, graph builds, and
// recorded step statuses. Conversations keep their repository ids by
// value and are deliberately left alone.
type Delete struct {
	repositories repository.Store
	documents    document.Store
	docStatuses  document.StatusStore
	keyword      search.KeywordStore
	vector       search.VectorStore
	graphs       graph.Store
	statuses     task.StatusStore
	logger       *slog.Logger
}

// NewDelete creates a new Delete handler.
func NewDelete(
	repositories repository.Store,
	documents document.Store,
	docStatuses document.StatusStore,
	keyword search.KeywordStore,
	vector search.VectorStore,
	graphs graph.Store,
	statuses task.StatusStore,
	logger *slog.Logger,
) *Delete {
	return &Delete{
		repositories: repositories,
		documents:    documents,
		docStatuses:  docStatuses,
		keyword:      keyword,
		vector:       vector,
		graphs:       graphs,
		statuses:     statuses,
		logger:       logger,
	}
}

// Execute processes the repository.delete task.
func (h *Delete) Execute(ctx context.Context, payload map[string]any) error {
	repoID, err := handler.ExtractRepositoryID(payload)
	if err != nil {
		return err
	}

	if _, err := h.repositories.Get(ctx, repoID); err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			h.logger.Info("repository already deleted", slog.String("repo_id", repoID.String()))
			return nil
		}
		return fmt.Errorf("get repository: %w", err)
	}

	docs, err := h.documents.Find(ctx, repository.WithRepositoryID(repoID))
	if err != nil {
		return fmt.Errorf("find documents: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID().String()
	}

	if err := h.keyword.DeleteBy(ctx, search.WithDocumentIDs(ids)); err != nil {
		return fmt.Errorf("delete keyword index: %w", err)
	}
	if err := h.vector.DeleteBy(ctx, search.WithDocumentIDs(ids)); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	if err := h.documents.DeleteByRepository(ctx, repoID); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	if err := h.docStatuses.Delete(ctx, repoID); err != nil {
		return fmt.Errorf("delete index status: %w", err)
	}
	if err := h.graphs.DeleteByRepository(ctx, repoID); err != nil {
		return fmt.Errorf("delete graph: %w", err)
	}

	for _, trackable := range []task.TrackableType{task.TrackableTypeRepository, task.TrackableTypeGraph} {
		if err := h.statuses.DeleteByTrackable(ctx, trackable, repoID.String()); err != nil {
			return fmt.Errorf("delete step statuses: %w", err)
		}
	}

	if err := h.repositories.Delete(ctx, repoID); err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}

	h.logger.Info("repository deleted",
		slog.String("repo_id", repoID.String()),
		slog.Int("documents", len(docs)),
	)

	return nil
}
