package ingest

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/archielabs/archie/application/handler"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/githost"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/domain/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeTracker struct{}

func (f *fakeTracker) SetTotal(_ context.Context, _ int)             {}
func (f *fakeTracker) SetCurrent(_ context.Context, _ int, _ string) {}
func (f *fakeTracker) Skip(_ context.Context, _ string)              {}
func (f *fakeTracker) Fail(_ context.Context, _ string)              {}
func (f *fakeTracker) Complete(_ context.Context)                    {}

type fakeTrackerFactory struct{}

func (f *fakeTrackerFactory) ForOperation(_ task.Operation, _ task.TrackableType, _ string) handler.Tracker {
	return &fakeTracker{}
}

// fakeProvider serves a fixed tree and file contents, recording which
// paths were fetched. Unused provider methods panic if called.
type fakeProvider struct {
	mu      sync.Mutex
	tree    githost.Tree
	files   map[string]string
	fetched []string
	treeErr error
	fileErr error
}

func (f *fakeProvider) ValidateAccess(_ context.Context, _, _ string) error {
	panic("unexpected ValidateAccess call")
}

func (f *fakeProvider) GetRepository(_ context.Context, _, _ string) (githost.RepositoryInfo, error) {
	panic("unexpected GetRepository call")
}

func (f *fakeProvider) GetBranches(_ context.Context, _, _ string) ([]githost.BranchInfo, error) {
	panic("unexpected GetBranches call")
}

func (f *fakeProvider) GetTree(_ context.Context, _, _, _ string, _ bool) (githost.Tree, error) {
	if f.treeErr != nil {
		return githost.Tree{}, f.treeErr
	}
	return f.tree, nil
}

func (f *fakeProvider) GetFileContent(_ context.Context, _, _, path, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fileErr != nil {
		return "", f.fileErr
	}
	f.fetched = append(f.fetched, path)
	return f.files[path], nil
}

func (f *fakeProvider) fetchedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func (f *fakeProvider) GetCommitHistory(_ context.Context, _, _, _ string, _ int) ([]repository.Commit, error) {
	panic("unexpected GetCommitHistory call")
}

// fakeKeywordStore records indexed and deleted document ids.
type fakeKeywordStore struct {
	mu      sync.Mutex
	indexed map[string]string
	deleted []string
}

func newFakeKeywordStore() *fakeKeywordStore {
	return &fakeKeywordStore{indexed: make(map[string]string)}
}

func (f *fakeKeywordStore) Index(_ context.Context, request search.IndexRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range request.Documents() {
		f.indexed[d.DocumentID()] = d.Text()
	}
	return nil
}

func (f *fakeKeywordStore) Find(_ context.Context, _ ...repository.Option) ([]search.Result, error) {
	return nil, nil
}

func (f *fakeKeywordStore) DeleteBy(_ context.Context, options ...repository.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range search.DocumentIDsFrom(repository.Build(options...)) {
		delete(f.indexed, id)
		f.deleted = append(f.deleted, id)
	}
	return nil
}

func (f *fakeKeywordStore) indexedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.indexed)
}

// fakeVectorStore records saved embeddings by document id.
type fakeVectorStore struct {
	mu      sync.Mutex
	saved   map[string][]float64
	saveErr error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{saved: make(map[string][]float64)}
}

func (f *fakeVectorStore) SaveAll(_ context.Context, embeddings []search.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	for _, e := range embeddings {
		f.saved[e.DocumentID()] = e.Vector()
	}
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ ...repository.Option) ([]search.Result, error) {
	return nil, nil
}

func (f *fakeVectorStore) HasEmbeddings(_ context.Context, documentIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	have := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		_, ok := f.saved[id]
		have[id] = ok
	}
	return have, nil
}

func (f *fakeVectorStore) DeleteBy(_ context.Context, options ...repository.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range search.DocumentIDsFrom(repository.Build(options...)) {
		delete(f.saved, id)
	}
	return nil
}

func (f *fakeVectorStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// fakeEmbedder returns a fixed vector per input, or fails permanently.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = []float64{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []event.Event
}

func (f *fakeBus) Publish(_ context.Context, e event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeBus) PublishBatch(ctx context.Context, events []event.Event) error {
	for _, e := range events {
		if err := f.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBus) Subscribe(_ event.Kind, _ event.Handler) {}

func (f *fakeBus) kinds() []event.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]event.Kind, 0, len(f.events))
	for _, e := range f.events {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}

func hasKind(t *testing.T, kinds []event.Kind, kind event.Kind) bool {
	t.Helper()
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
