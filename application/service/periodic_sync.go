package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/internal/config"
)

// PeriodicSync re-enqueues indexing for stale repositories on a timer.
// A repository is stale when its last index run finished more than one
// interval ago, or when it has never completed one.
type PeriodicSync struct {
	repositories repository.Store
	queue        *Queue
	prescribed   task.PrescribedOperations
	logger       *slog.Logger
	interval     time.Duration
	enabled      bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPeriodicSync creates a new PeriodicSync from config and dependencies.
func NewPeriodicSync(
	cfg config.PeriodicSyncConfig,
	repositories repository.Store,
	queue *Queue,
	prescribed task.PrescribedOperations,
	logger *slog.Logger,
) *PeriodicSync {
	return &PeriodicSync{
		repositories: repositories,
		queue:        queue,
		prescribed:   prescribed,
		logger:       logger,
		interval:     cfg.Interval(),
		enabled:      cfg.Enabled(),
	}
}

// Start begins periodic sync in a background goroutine.
// If disabled, this is a no-op.
func (p *PeriodicSync) Start(ctx context.Context) {
	if !p.enabled {
		p.logger.Info("periodic sync disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Go(func() {
		p.run(ctx)
	})

	p.logger.Info("periodic sync started", slog.Duration("interval", p.interval))
}

// Stop cancels the background goroutine and waits for it to finish.
func (p *PeriodicSync) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.logger.Info("periodic sync stopped")
}

func (p *PeriodicSync) run(ctx context.Context) {
	// Sync immediately on startup
	p.sync(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sync(ctx)
		}
	}
}

func (p *PeriodicSync) sync(ctx context.Context) {
	repos, err := p.repositories.Find(ctx, repository.WithIndexedBefore(time.Now().Add(-p.interval)))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("periodic sync failed to find repositories",
			slog.String("error", err.Error()),
		)
		return
	}

	operations := p.prescribed.IndexRepository()

	enqueued := 0
	for _, repo := range repos {
		if !repo.Status().IsIndexable() {
			continue
		}
		payload := map[string]any{task.PayloadRepositoryID: repo.ID().String()}
		if err := p.queue.EnqueueOperations(ctx, operations, task.PriorityBackground, payload); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("periodic sync failed to enqueue",
				slog.String("repository_id", repo.ID().String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		enqueued++
	}

	p.logger.Debug("periodic sync enqueued", slog.Int("count", enqueued))
}
