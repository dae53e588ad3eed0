package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/internal/config"
)

func newPeriodicSync(cfg config.PeriodicSyncConfig, repos *fakeRepositoryStore, tasks *fakeTaskStore) *PeriodicSync {
	return NewPeriodicSync(
		cfg,
		repos,
		NewQueue(tasks, testLogger()),
		task.NewPrescribedOperations(true),
		testLogger(),
	)
}

func TestPeriodicSync_EnqueuesStaleRepositories(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	tasks := &fakeTaskStore{}
	cfg := config.NewPeriodicSyncConfig().WithIntervalSeconds(0.01)
	sync := newPeriodicSync(cfg, newFakeRepositoryStore(repo), tasks)

	sync.Start(context.Background())
	defer sync.Stop()

	require.Eventually(t, func() bool {
		return len(tasks.savedTasks()) >= 4
	}, time.Second, 5*time.Millisecond)

	for _, tk := range tasks.savedTasks()[:4] {
		assert.Equal(t, repo.ID().String(), tk.RepositoryID())
		assert.Less(t, tk.Priority(), int(task.PriorityInteractive))
	}
}

func TestPeriodicSync_SkipsUnindexableRepositories(t *testing.T) {
	// Analyzing means a run is already in flight; re-queueing would stack
	// a second run behind it.
	repo := connectedRepository("https://github.com/acme/engine")
	analyzing, ok := repo.TransitionTo(repository.StatusAnalyzing)
	require.True(t, ok)

	tasks := &fakeTaskStore{}
	cfg := config.NewPeriodicSyncConfig().WithIntervalSeconds(0.01)
	sync := newPeriodicSync(cfg, newFakeRepositoryStore(analyzing), tasks)

	sync.Start(context.Background())
	defer sync.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, tasks.savedTasks())
}

func TestPeriodicSync_DisabledDoesNothing(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	tasks := &fakeTaskStore{}
	cfg := config.NewPeriodicSyncConfig().WithEnabled(false).WithIntervalSeconds(0.01)
	sync := newPeriodicSync(cfg, newFakeRepositoryStore(repo), tasks)

	sync.Start(context.Background())
	defer sync.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, tasks.savedTasks())
}

func TestPeriodicSync_StopHaltsEnqueueing(t *testing.T) {
	repo := indexedRepository("https://github.com/acme/engine")
	tasks := &fakeTaskStore{}
	cfg := config.NewPeriodicSyncConfig().WithIntervalSeconds(0.01)
	sync := newPeriodicSync(cfg, newFakeRepositoryStore(repo), tasks)

	sync.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(tasks.savedTasks()) >= 4
	}, time.Second, 5*time.Millisecond)

	sync.Stop()

	// Drain the queue, then verify nothing new arrives.
	require.NoError(t, tasks.DeleteAll(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, tasks.savedTasks())
}
