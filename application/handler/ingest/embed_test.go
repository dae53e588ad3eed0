package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/infrastructure/persistence"
	"github.com/archielabs/archie/internal/config"
	"github.com/archielabs/archie/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embedEnv struct {
	repositories persistence.RepositoryStore
	documents    persistence.DocumentStore
	statuses     persistence.IndexStatusStore
	vector       *fakeVectorStore
	embedder     *fakeEmbedder
	bus          *fakeBus
	repo         repository.Repository
}

func newEmbedEnv(t *testing.T) *embedEnv {
	t.Helper()
	db := testdb.New(t)

	env := &embedEnv{
		repositories: persistence.NewRepositoryStore(db),
		documents:    persistence.NewDocumentStore(db),
		statuses:     persistence.NewIndexStatusStore(db),
		vector:       newFakeVectorStore(),
		embedder:     &fakeEmbedder{},
		bus:          &fakeBus{},
	}

	remote, err := repository.ParseRemote("https://github.com/acme/widgets")
	require.NoError(t, err)

	head := repository.NewCommit("beadfeed5678", "tip", repository.NewAuthor("Bob", "b@example.com"), time.Now())
	repo := repository.NewRepository(remote).
		WithProviderMetadata("", "Go", "main", []repository.Branch{
			repository.NewBranch("main", true, head),
		})
	repo, ok := repo.TransitionTo(repository.StatusConnected)
	require.True(t, ok)
	repo, ok = repo.TransitionTo(repository.StatusAnalyzing)
	require.True(t, ok)

	ctx := context.Background()
	require.NoError(t, env.repositories.Save(ctx, repo))
	env.repo = repo

	status, err := env.statuses.Get(ctx, repo.ID())
	require.NoError(t, err)
	_, err = env.statuses.Save(ctx, status.Start())
	require.NoError(t, err)

	return env
}

func (e *embedEnv) handler() *Embed {
	return NewEmbed(
		e.repositories, e.documents, e.statuses,
		e.vector, e.embedder,
		search.DefaultTokenBudget().WithMaxBatchSize(2),
		config.NewIngestConfig().WithEmbedConcurrency(2),
		e.bus, &fakeTrackerFactory{}, testLogger(),
	)
}

func (e *embedEnv) seedDocuments(t *testing.T, contents ...string) []document.Document {
	t.Helper()
	docs := make([]document.Document, len(contents))
	for i, content := range contents {
		docs[i] = document.NewDocument(e.repo.ID(), "main", "main.go", i, content).
			WithLanguage("Go").
			WithBlobSHA("sha-seed")
	}
	require.NoError(t, e.documents.Upsert(context.Background(), docs))
	return docs
}

func (e *embedEnv) payload() map[string]any {
	return map[string]any{"repository_id": e.repo.ID().String()}
}

func TestEmbed_EmbedsPendingDocumentsAndCompletesRun(t *testing.T) {
	ctx := context.Background()
	env := newEmbedEnv(t)
	docs := env.seedDocuments(t, "func A() {}", "func B() {}", "func C() {}")

	require.NoError(t, env.handler().Execute(ctx, env.payload()))

	assert.Equal(t, len(docs), env.vector.savedCount())
	for _, d := range docs {
		got, err := env.documents.Get(ctx, d.ID())
		require.NoError(t, err)
		assert.True(t, got.HasVector(), "document %s should be flagged as embedded", d.Path())
	}

	status, err := env.statuses.Get(ctx, env.repo.ID())
	require.NoError(t, err)
	assert.Equal(t, document.IndexStateCompleted, status.State())

	repo, err := env.repositories.Get(ctx, env.repo.ID())
	require.NoError(t, err)
	assert.Equal(t, repository.StatusReady, repo.Status())
	assert.True(t, hasKind(t, env.bus.kinds(), event.KindRepositoryAnalysisCompleted))
}

func TestEmbed_SkipsDocumentsWithExistingEmbeddings(t *testing.T) {
	ctx := context.Background()
	env := newEmbedEnv(t)
	docs := env.seedDocuments(t, "func A() {}", "func B() {}")

	// The first document already has a stored embedding.
	require.NoError(t, env.vector.SaveAll(ctx, []search.Embedding{
		search.NewEmbedding(docs[0].ID().String(), []float64{0.5}),
	}))

	require.NoError(t, env.handler().Execute(ctx, env.payload()))

	assert.Equal(t, 1, env.embedder.calls, "only the pending document should be embedded")
	assert.Equal(t, len(docs), env.vector.savedCount())
}

func TestEmbed_ProviderFailureKeepsDocumentsKeywordOnly(t *testing.T) {
	ctx := context.Background()
	env := newEmbedEnv(t)
	docs := env.seedDocuments(t, "func A() {}", "func B() {}")
	env.embedder.err = assert.AnError

	require.NoError(t, env.handler().Execute(ctx, env.payload()))

	assert.Zero(t, env.vector.savedCount())
	for _, d := range docs {
		got, err := env.documents.Get(ctx, d.ID())
		require.NoError(t, err)
		assert.False(t, got.HasVector())
	}

	// The run still completes; text search keeps working without vectors.
	status, err := env.statuses.Get(ctx, env.repo.ID())
	require.NoError(t, err)
	assert.Equal(t, document.IndexStateCompleted, status.State())

	repo, err := env.repositories.Get(ctx, env.repo.ID())
	require.NoError(t, err)
	assert.Equal(t, repository.StatusReady, repo.Status())
}

func TestEmbed_NoDocumentsCompletesRun(t *testing.T) {
	ctx := context.Background()
	env := newEmbedEnv(t)

	require.NoError(t, env.handler().Execute(ctx, env.payload()))

	status, err := env.statuses.Get(ctx, env.repo.ID())
	require.NoError(t, err)
	assert.Equal(t, document.IndexStateCompleted, status.State())
	assert.Zero(t, env.embedder.calls)
}
