package service

import (
	"context"

	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/infrastructure/tracking"
	"github.com/google/uuid"
)

// Tracking provides read-only access to task status information.
type Tracking struct {
	statuses task.StatusStore
	tasks    task.Store
}

// NewTracking creates a new Tracking service.
func NewTracking(statuses task.StatusStore, tasks task.Store) *Tracking {
	return &Tracking{statuses: statuses, tasks: tasks}
}

// RepositoryStatuses returns all indexing step statuses for a repository.
func (s *Tracking) RepositoryStatuses(ctx context.Context, repositoryID uuid.UUID) ([]task.Status, error) {
	return s.statuses.LoadWithHierarchy(
		ctx,
		task.TrackableTypeRepository,
		repositoryID.String(),
	)
}

// GraphStatuses returns all graph build step statuses for a repository.
func (s *Tracking) GraphStatuses(ctx context.Context, repositoryID uuid.UUID) ([]task.Status, error) {
	return s.statuses.LoadWithHierarchy(
		ctx,
		task.TrackableTypeGraph,
		repositoryID.String(),
	)
}

// StatusSummary returns an aggregated indexing status for a repository,
// folding queued tasks and recorded step statuses into one state.
func (s *Tracking) StatusSummary(ctx context.Context, repositoryID uuid.UUID) (tracking.StatusSummary, error) {
	statuses, err := s.RepositoryStatuses(ctx, repositoryID)
	if err != nil {
		return tracking.StatusSummary{}, err
	}

	pending, err := s.pendingTaskCount(ctx, repositoryID)
	if err != nil {
		return tracking.StatusSummary{}, err
	}

	return tracking.SummaryFromStatuses(statuses, pending), nil
}

// pendingTaskCount counts queued tasks targeting the repository.
func (s *Tracking) pendingTaskCount(ctx context.Context, repositoryID uuid.UUID) (int, error) {
	if s.tasks == nil {
		return 0, nil
	}

	pending, err := s.tasks.FindPending(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	id := repositoryID.String()
	for _, t := range pending {
		if t.RepositoryID() == id {
			count++
		}
	}
	return count, nil
}
