package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/archielabs/archie/domain/task"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	payloads []map[string]any
	err      error
	panics   bool
}

func (h *recordingHandler) Execute(_ context.Context, payload map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panics {
		panic("handler exploded")
	}
	h.payloads = append(h.payloads, payload)
	return h.err
}

func (h *recordingHandler) executed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.payloads)
}

type recordingTracker struct {
	mu        sync.Mutex
	failures  []string
	completes int
}

func (t *recordingTracker) Fail(_ context.Context, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = append(t.failures, message)
}

func (t *recordingTracker) Complete(_ context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completes++
}

type recordingTrackerFactory struct {
	mu       sync.Mutex
	trackers map[task.Operation]*recordingTracker
	types    map[task.Operation]task.TrackableType
}

func newRecordingTrackerFactory() *recordingTrackerFactory {
	return &recordingTrackerFactory{
		trackers: make(map[task.Operation]*recordingTracker),
		types:    make(map[task.Operation]task.TrackableType),
	}
}

func (f *recordingTrackerFactory) ForOperation(operation task.Operation, trackableType task.TrackableType, _ string) WorkerTracker {
	f.mu.Lock()
	defer f.mu.Unlock()
	tracker, ok := f.trackers[operation]
	if !ok {
		tracker = &recordingTracker{}
		f.trackers[operation] = tracker
	}
	f.types[operation] = trackableType
	return tracker
}

func (f *recordingTrackerFactory) tracker(operation task.Operation) *recordingTracker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trackers[operation]
}

func enqueueTask(t *testing.T, store *fakeTaskStore, operation task.Operation, repositoryID uuid.UUID) {
	t.Helper()
	tsk := task.NewTask(operation, int(task.PriorityInteractive), map[string]any{
		task.PayloadRepositoryID: repositoryID.String(),
	})
	_, err := store.Save(context.Background(), tsk)
	require.NoError(t, err)
}

func TestWorker_ProcessOneExecutesHandler(t *testing.T) {
	store := &fakeTaskStore{}
	registry := NewRegistry()
	handler := &recordingHandler{}
	registry.Register(task.OperationIngestDocuments, handler)
	factory := newRecordingTrackerFactory()

	worker := NewWorker(store, registry, factory, testLogger())
	enqueueTask(t, store, task.OperationIngestDocuments, uuid.New())

	processed, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 1, handler.executed())
	assert.Empty(t, store.savedTasks())
	assert.Equal(t, 1, factory.tracker(task.OperationIngestDocuments).completes)
}

func TestWorker_ProcessOneEmptyQueue(t *testing.T) {
	store := &fakeTaskStore{}
	worker := NewWorker(store, NewRegistry(), nil, testLogger())

	processed, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorker_FailedTaskIsDeletedAndMarked(t *testing.T) {
	store := &fakeTaskStore{}
	registry := NewRegistry()
	registry.Register(task.OperationIngestDocuments, &recordingHandler{err: errors.New("ingest blew up")})
	factory := newRecordingTrackerFactory()

	worker := NewWorker(store, registry, factory, testLogger())
	enqueueTask(t, store, task.OperationIngestDocuments, uuid.New())

	processed, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	// Failed tasks are removed, not retried.
	assert.Empty(t, store.savedTasks())
	require.Len(t, factory.tracker(task.OperationIngestDocuments).failures, 1)
	assert.Contains(t, factory.tracker(task.OperationIngestDocuments).failures[0], "ingest blew up")
}

func TestWorker_RecoversFromHandlerPanic(t *testing.T) {
	store := &fakeTaskStore{}
	registry := NewRegistry()
	registry.Register(task.OperationBuildGraph, &recordingHandler{panics: true})
	factory := newRecordingTrackerFactory()

	worker := NewWorker(store, registry, factory, testLogger())
	enqueueTask(t, store, task.OperationBuildGraph, uuid.New())

	processed, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	require.Len(t, factory.tracker(task.OperationBuildGraph).failures, 1)
	assert.Contains(t, factory.tracker(task.OperationBuildGraph).failures[0], "handler panicked")
}

func TestWorker_GraphOperationsTrackSeparately(t *testing.T) {
	store := &fakeTaskStore{}
	registry := NewRegistry()
	registry.Register(task.OperationBuildGraph, &recordingHandler{})
	registry.Register(task.OperationIngestDocuments, &recordingHandler{})
	factory := newRecordingTrackerFactory()

	worker := NewWorker(store, registry, factory, testLogger())
	enqueueTask(t, store, task.OperationBuildGraph, uuid.New())
	enqueueTask(t, store, task.OperationIngestDocuments, uuid.New())

	for {
		processed, err := worker.ProcessOne(context.Background())
		require.NoError(t, err)
		if !processed {
			break
		}
	}

	assert.Equal(t, task.TrackableTypeGraph, factory.types[task.OperationBuildGraph])
	assert.Equal(t, task.TrackableTypeRepository, factory.types[task.OperationIngestDocuments])
}

func TestWorker_UnknownOperationIsDropped(t *testing.T) {
	store := &fakeTaskStore{}
	worker := NewWorker(store, NewRegistry(), nil, testLogger())
	enqueueTask(t, store, task.OperationIngestDocuments, uuid.New())

	processed, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Empty(t, store.savedTasks())
}

func TestWorker_StartProcessesInBackground(t *testing.T) {
	store := &fakeTaskStore{}
	registry := NewRegistry()
	handler := &recordingHandler{}
	registry.Register(task.OperationIngestDocuments, handler)

	worker := NewWorker(store, registry, nil, testLogger()).WithPollPeriod(5 * time.Millisecond)
	enqueueTask(t, store, task.OperationIngestDocuments, uuid.New())

	worker.Start(context.Background())
	defer worker.Stop()

	require.Eventually(t, func() bool {
		return handler.executed() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestExtractUUID(t *testing.T) {
	id := uuid.New()
	payload := map[string]any{task.PayloadRepositoryID: id.String(), "junk": 42}

	got, ok := ExtractUUID(payload, task.PayloadRepositoryID)
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = ExtractUUID(payload, "junk")
	assert.False(t, ok)

	_, ok = ExtractUUID(payload, "missing")
	assert.False(t, ok)
}
