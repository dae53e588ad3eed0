// Package repository provides task handlers for repository lifecycle operations.
package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archielabs/archie/application/handler"
	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/task"
)

// Refresh handles the repository.refresh task operation. It re-reads
// provider metadata (description, language, default branch, branches)
// onto the repository record before the ingest step runs.
type Refresh struct {
	repositories   *service.Repository
	trackerFactory handler.TrackerFactory
	logger         *slog.Logger
}

// NewRefresh creates a new Refresh handler.
func NewRefresh(
	repositories *service.Repository,
	trackerFactory handler.TrackerFactory,
	logger *slog.Logger,
) *Refresh {
	return &Refresh{
		repositories:   repositories,
		trackerFactory: trackerFactory,
		logger:         logger,
	}
}

// Execute processes the repository.refresh task.
func (h *Refresh) Execute(ctx context.Context, payload map[string]any) error {
	repoID, err := handler.ExtractRepositoryID(payload)
	if err != nil {
		return err
	}

	tracker := h.trackerFactory.ForOperation(
		task.OperationRefreshRepository,
		task.TrackableTypeRepository,
		repoID.String(),
	)

	tracker.SetTotal(ctx, 1)
	tracker.SetCurrent(ctx, 0, "Refreshing provider metadata")

	repo, err := h.repositories.Refresh(ctx, repoID)
	if err != nil {
		tracker.Fail(ctx, err.Error())
		return fmt.Errorf("refresh repository: %w", err)
	}

	h.logger.Info("repository metadata refreshed",
		slog.String("repo_id", repoID.String()),
		slog.String("default_branch", repo.DefaultBranch()),
		slog.Int("branches", len(repo.Branches())),
	)

	return nil
}
