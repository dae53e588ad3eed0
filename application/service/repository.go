package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/githost"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
)

// RepositoryListParams configures repository listing.
type RepositoryListParams struct {
	Status *repository.Status
	Limit  int
	Offset int
}

// Repository provides repository lifecycle operations: connecting a
// hosted repository, listing, and queueing deletion cleanup.
type Repository struct {
	store      repository.Store
	provider   githost.Provider
	queue      *Queue
	prescribed task.PrescribedOperations
	bus        event.Bus
	logger     *slog.Logger
}

// NewRepository creates a new Repository service.
func NewRepository(
	store repository.Store,
	provider githost.Provider,
	queue *Queue,
	prescribed task.PrescribedOperations,
	bus event.Bus,
	logger *slog.Logger,
) *Repository {
	return &Repository{
		store:      store,
		provider:   provider,
		queue:      queue,
		prescribed: prescribed,
		bus:        bus,
		logger:     logger,
	}
}

// Add connects a hosted repository by URL and queues it for indexing.
// Two URLs naming the same repository canonicalize to the same remote,
// so re-adding an existing repository fails with an already-exists error.
func (s *Repository) Add(ctx context.Context, url string) (repository.Repository, error) {
	remote, err := repository.ParseRemote(url)
	if err != nil {
		return repository.Repository{}, errs.Wrap(errs.KindInvalidInput, "parse repository url", err)
	}

	_, err = s.store.GetByURL(ctx, remote.URL())
	if err == nil {
		return repository.Repository{}, errs.Newf(errs.KindAlreadyExists,
			"repository %s already exists", remote.URL())
	}
	if !errs.IsKind(err, errs.KindNotFound) {
		return repository.Repository{}, fmt.Errorf("check existing: %w", err)
	}

	if err := s.provider.ValidateAccess(ctx, remote.Owner(), remote.Name()); err != nil {
		return repository.Repository{}, err
	}

	repo := repository.NewRepository(remote)
	repo, err = s.hydrate(ctx, repo)
	if err != nil {
		return repository.Repository{}, err
	}

	connected, ok := repo.TransitionTo(repository.StatusConnected)
	if !ok {
		return repository.Repository{}, errs.Newf(errs.KindInvalidState,
			"repository %s cannot transition to connected", repo.ID())
	}

	if err := s.store.Save(ctx, connected); err != nil {
		return repository.Repository{}, fmt.Errorf("save repository: %w", err)
	}

	payload := map[string]any{task.PayloadRepositoryID: connected.ID().String()}
	operations := s.prescribed.IndexRepository()

	if err := s.queue.EnqueueOperations(ctx, operations, task.PriorityInteractive, payload); err != nil {
		s.logger.Warn("failed to enqueue indexing",
			slog.String("repo_id", connected.ID().String()),
			slog.String("error", err.Error()),
		)
	}

	if err := s.bus.Publish(ctx, event.NewRepositoryAdded(connected.ID(), connected.URL())); err != nil {
		s.logger.Warn("failed to publish repository added",
			slog.String("repo_id", connected.ID().String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("repository added",
		slog.String("repo_id", connected.ID().String()),
		slog.String("url", connected.URL()),
		slog.String("default_branch", connected.DefaultBranch()),
	)

	return connected, nil
}

// Get returns a repository by id.
func (s *Repository) Get(ctx context.Context, id uuid.UUID) (repository.Repository, error) {
	return s.store.Get(ctx, id)
}

// GetByURL returns a repository by any URL form naming it.
func (s *Repository) GetByURL(ctx context.Context, url string) (repository.Repository, error) {
	remote, err := repository.ParseRemote(url)
	if err != nil {
		return repository.Repository{}, errs.Wrap(errs.KindInvalidInput, "parse repository url", err)
	}
	return s.store.GetByURL(ctx, remote.URL())
}

// List returns repositories matching the given params, newest first.
func (s *Repository) List(ctx context.Context, params *RepositoryListParams) ([]repository.Repository, error) {
	options := []repository.Option{repository.WithOrderDesc("created_at")}

	if params != nil {
		if params.Status != nil {
			options = append(options, repository.WithStatus(*params.Status))
		}
		if params.Limit > 0 {
			options = append(options, repository.WithPagination(params.Limit, params.Offset)...)
		}
	}

	return s.store.Find(ctx, options...)
}

// Delete queues removal of a repository and all derived data. Pending
// indexing tasks are drained first so they do not race the cleanup.
func (s *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return fmt.Errorf("get repository: %w", err)
	}

	drained, err := s.queue.DrainForRepository(ctx, id)
	if err != nil {
		return fmt.Errorf("drain tasks: %w", err)
	}
	if drained > 0 {
		s.logger.Debug("drained pending tasks",
			slog.String("repo_id", id.String()),
			slog.Int("count", drained),
		)
	}

	payload := map[string]any{task.PayloadRepositoryID: id.String()}
	t := task.NewTask(task.OperationDeleteRepository, int(task.PriorityCritical), payload)

	if err := s.queue.Enqueue(ctx, t); err != nil {
		return fmt.Errorf("enqueue delete: %w", err)
	}

	s.logger.Info("delete requested",
		slog.String("repo_id", id.String()),
	)

	return nil
}

// Refresh re-reads provider metadata for a repository and persists it.
// Used by the refresh task handler and available directly for callers
// that want branch data without a full index run.
func (s *Repository) Refresh(ctx context.Context, id uuid.UUID) (repository.Repository, error) {
	repo, err := s.store.Get(ctx, id)
	if err != nil {
		return repository.Repository{}, fmt.Errorf("get repository: %w", err)
	}

	repo, err = s.hydrate(ctx, repo)
	if err != nil {
		return repository.Repository{}, err
	}

	if err := s.store.Save(ctx, repo); err != nil {
		return repository.Repository{}, fmt.Errorf("save repository: %w", err)
	}
	return repo, nil
}

// hydrate pulls metadata and branches from the provider onto the repository.
func (s *Repository) hydrate(ctx context.Context, repo repository.Repository) (repository.Repository, error) {
	info, err := s.provider.GetRepository(ctx, repo.Owner(), repo.Name())
	if err != nil {
		return repository.Repository{}, fmt.Errorf("get repository metadata: %w", err)
	}

	branchInfos, err := s.provider.GetBranches(ctx, repo.Owner(), repo.Name())
	if err != nil {
		return repository.Repository{}, fmt.Errorf("get branches: %w", err)
	}

	branches := make([]repository.Branch, 0, len(branchInfos))
	for _, b := range branchInfos {
		isDefault := b.Name() == info.DefaultBranch()
		commit := repository.NewCommit(b.CommitSHA(), "", repository.Author{}, time.Time{})
		branches = append(branches, repository.NewBranch(b.Name(), isDefault, commit))
	}

	return repo.WithProviderMetadata(
		info.Description(),
		info.Language(),
		info.DefaultBranch(),
		branches,
	), nil
}
